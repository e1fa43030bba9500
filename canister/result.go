package canister

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// ErrTextMaxRetriesExceeded is the text of the error reported when a chunk
// could not be delivered within the retry bound.
const ErrTextMaxRetriesExceeded = "MAX_RETRIES_EXCEEDED"

// Result is the answer of a canister call: exactly one of Ok and Err is set.
type Result struct {
	Ok  cbor.RawMessage `cbor:"ok,omitempty" json:"ok,omitempty"`
	Err *Error          `cbor:"err,omitempty" json:"err,omitempty"`
}

// OK returns a successful Result holding v.
func OK(v interface{}) (*Result, error) {
	blob, err := cbor.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Result{Ok: blob}, nil
}

// Failed returns a Result carrying the given error.
func Failed(err *Error) *Result {
	return &Result{Err: err}
}

// Decode decodes the ok payload into v.
func (r *Result) Decode(v interface{}) error {
	if r.Err != nil {
		return r.Err
	}
	if len(r.Ok) == 0 {
		return errors.New("empty result")
	}
	return errors.Wrap(decMode.Unmarshal(r.Ok, v), "cannot decode result")
}

// Error is an error declared by the canister.
type Error struct {
	Number    uint32 `cbor:"number" json:"number"`
	Text      string `cbor:"text" json:"text"`
	Kind      string `cbor:"error" json:"error"`
	FlagPoint string `cbor:"flag_point" json:"flag_point"`
}

func (e *Error) Error() string {
	if e.Kind == "" {
		return e.Text
	}
	return fmt.Sprintf("%s: %s (%d)", e.Kind, e.Text, e.Number)
}

// TransportError is returned when the canister could not be reached or its
// answer could not be understood.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("can't reach canister (%s): %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is, or wraps, a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// DecodeRaw decodes an opaque payload into generic values that can be
// rendered as JSON.
func DecodeRaw(raw cbor.RawMessage) (interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v interface{}
	if err := decMode.Unmarshal(raw, &v); err != nil {
		return nil, errors.Wrap(err, "cannot decode payload")
	}
	return v, nil
}
