package stage

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ORIGYN-SA/mintgo/canister"
)

// Kinds of configuration errors.
var (
	ErrMissingMimeType   = errors.New("could not find mime type")
	ErrMissingLibraryID  = errors.New("missing library id")
	ErrDuplicateTitle    = errors.New("duplicate title")
	ErrLibraryIDNotFound = errors.New("could not find libraryId")
	ErrMissingProperties = errors.New("unexpected missing properties of resource class")
	ErrInvalidArgs       = errors.New("invalid stage arguments")
)

// ConfigError reports a problem in the staging configuration. It is detected
// before any remote call is made for the affected item.
type ConfigError struct {
	Kind   error
	Detail string
}

func configErrorf(kind error, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Detail
}

// Cause returns the kind so that errors.Cause can be compared with the
// sentinel values.
func (e *ConfigError) Cause() error { return e.Kind }

func (e *ConfigError) Unwrap() error { return e.Kind }

// RegistrationError is returned when the canister declines a metadata
// document. It aborts the run.
type RegistrationError struct {
	TokenID string
	Err     *canister.Error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("stage %q: %v", e.TokenID, e.Err)
}
