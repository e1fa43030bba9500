package stage

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Environment selects where the canister lives.
type Environment string

const (
	EnvLocal      Environment = "local"
	EnvProduction Environment = "production"
)

// ParseEnvironment accepts "local", "production" and its alias "mainnet".
// The empty string means local.
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "local":
		return EnvLocal, nil
	case "production", "prod", "mainnet":
		return EnvProduction, nil
	}
	return "", errors.Errorf("unknown environment %q", s)
}

// Root URL under which the canister serves its assets.
func (e Environment) Root(useProxy bool, canisterID string) string {
	switch {
	case e == EnvProduction:
		return "https://prptl.io/-/" + canisterID
	case useProxy:
		// Buffering proxy, required for video playback.
		return "http://localhost:3000/-/" + canisterID
	default:
		return fmt.Sprintf("http://%s.localhost:8080", canisterID)
	}
}

// ResourceURL returns the lower-cased address of a staged asset. Assets of a
// token live under the token, others under the collection.
func ResourceURL(env Environment, useProxy bool, canisterID, resourceName, tokenID string) string {
	root := env.Root(useProxy, canisterID)
	if tokenID != "" {
		return strings.ToLower(root + "/-/" + tokenID + "/-/" + resourceName)
	}
	return strings.ToLower(root + "/collection/-/" + resourceName)
}
