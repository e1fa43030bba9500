// Package identity supplies the caller identity attached to canister calls.
// Key management and request signing are the transport's concern and are not
// modelled here.
package identity

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// AnonymousPrincipal is the textual form of the anonymous principal.
const AnonymousPrincipal = "2vxsx-fae"

var principalRe = regexp.MustCompile(`^[a-z2-7]{1,5}(-[a-z2-7]{1,5})*$`)

var ErrInvalidPrincipal = errors.New("invalid principal")

// Identity yields the principal that calls are made on behalf of.
type Identity interface {
	Principal() string
}

type static string

func (s static) Principal() string { return string(s) }

// Anonymous returns the anonymous identity.
func Anonymous() Identity {
	return static(AnonymousPrincipal)
}

// FromText returns an identity for the given principal. Empty input yields
// the anonymous identity.
func FromText(principal string) (Identity, error) {
	principal = strings.TrimSpace(strings.ToLower(principal))
	if principal == "" {
		return Anonymous(), nil
	}
	if err := ValidatePrincipal(principal); err != nil {
		return nil, err
	}
	return static(principal), nil
}

// ValidatePrincipal checks the textual shape of a principal (dash separated
// groups of base32 characters). Checksums are not verified.
func ValidatePrincipal(principal string) error {
	if !principalRe.MatchString(principal) {
		return errors.Wrap(ErrInvalidPrincipal, principal)
	}
	return nil
}
