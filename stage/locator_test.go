package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceURL(t *testing.T) {
	const canisterID = "rrkah-fqaaa-aaaaa-aaaaq-cai"
	tests := map[string]struct {
		env      Environment
		useProxy bool
		name     string
		tokenID  string
		want     string
	}{
		"local proxy token": {
			EnvLocal, true, "Logo.PNG", "BM-0",
			"http://localhost:3000/-/rrkah-fqaaa-aaaaa-aaaaq-cai/-/bm-0/-/logo.png",
		},
		"local proxy collection": {
			EnvLocal, true, "logo.png", "",
			"http://localhost:3000/-/rrkah-fqaaa-aaaaa-aaaaq-cai/collection/-/logo.png",
		},
		"local direct": {
			EnvLocal, false, "wallet", "",
			"http://rrkah-fqaaa-aaaaa-aaaaq-cai.localhost:8080/collection/-/wallet",
		},
		"production ignores proxy": {
			EnvProduction, false, "a.jpg", "bm-1",
			"https://prptl.io/-/rrkah-fqaaa-aaaaa-aaaaq-cai/-/bm-1/-/a.jpg",
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, ResourceURL(tc.env, tc.useProxy, canisterID, tc.name, tc.tokenID))
		})
	}
}

func TestParseEnvironment(t *testing.T) {
	for in, want := range map[string]Environment{
		"":           EnvLocal,
		"local":      EnvLocal,
		"Production": EnvProduction,
		"mainnet":    EnvProduction,
	} {
		env, err := ParseEnvironment(in)
		require.NoError(t, err)
		assert.Equal(t, want, env)
	}
	_, err := ParseEnvironment("staging")
	assert.Error(t, err)
}
