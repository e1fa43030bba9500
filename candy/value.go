package candy

// Value is implemented by every kind of metadata value. The set is closed.
type Value interface {
	candy()
}

// Text is a UTF-8 string value.
type Text string

// Nat is a natural number value.
type Nat uint64

// Bool is a boolean value.
type Bool bool

// Principal is a principal in its textual form.
type Principal string

// Array is an ordered list of values (a "thawed" array on the wire).
type Array []Value

// Option is an optional value. A nil Value means none.
type Option struct {
	Value Value
}

// None is the empty option.
var None = Option{}

// Some wraps v in an option.
func Some(v Value) Option {
	return Option{Value: v}
}

func (Text) candy()      {}
func (Nat) candy()       {}
func (Bool) candy()      {}
func (Principal) candy() {}
func (Array) candy()     {}
func (Class) candy()     {}
func (Option) candy()    {}

// Kind returns the wire tag of v.
func Kind(v Value) string {
	switch v.(type) {
	case Text:
		return tagText
	case Nat:
		return tagNat
	case Bool:
		return tagBool
	case Principal:
		return tagPrincipal
	case Array:
		return tagArray
	case Class:
		return tagClass
	case Option:
		return tagOption
	}
	return ""
}
