package identity

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromText(t *testing.T) {
	id, err := FromText("")
	require.NoError(t, err)
	assert.Equal(t, AnonymousPrincipal, id.Principal())

	id, err = FromText(" 6i6da-t3dfv-vteyg-v5agl-tpgrm-63p4y-t5nmm-gi7nl-o72zu-jd3sc-7qe ")
	require.NoError(t, err)
	assert.Equal(t, "6i6da-t3dfv-vteyg-v5agl-tpgrm-63p4y-t5nmm-gi7nl-o72zu-jd3sc-7qe", id.Principal())

	_, err = FromText("not a principal!")
	assert.Equal(t, ErrInvalidPrincipal, errors.Cause(err))
}
