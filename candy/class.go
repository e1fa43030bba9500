package candy

// Property is a named value. Immutable properties are set once at creation;
// the canister rejects later writes to them.
type Property struct {
	Name      string
	Value     Value
	Immutable bool
}

// Class is an ordered list of properties.
type Class []Property

// Get returns the first property with the given name.
func (c Class) Get(name string) (Property, bool) {
	for _, p := range c {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// Text returns the value of a Text property.
func (c Class) Text(name string) (string, bool) {
	p, ok := c.Get(name)
	if !ok {
		return "", false
	}
	switch v := p.Value.(type) {
	case Text:
		return string(v), true
	}
	return "", false
}

// Nat returns the value of a Nat property.
func (c Class) Nat(name string) (uint64, bool) {
	p, ok := c.Get(name)
	if !ok {
		return 0, false
	}
	switch v := p.Value.(type) {
	case Nat:
		return uint64(v), true
	}
	return 0, false
}

// Bool returns the value of a Bool property.
func (c Class) Bool(name string) (bool, bool) {
	p, ok := c.Get(name)
	if !ok {
		return false, false
	}
	switch v := p.Value.(type) {
	case Bool:
		return bool(v), true
	}
	return false, false
}

// Principal returns the value of a Principal property.
func (c Class) Principal(name string) (string, bool) {
	p, ok := c.Get(name)
	if !ok {
		return "", false
	}
	switch v := p.Value.(type) {
	case Principal:
		return string(v), true
	}
	return "", false
}

// Class returns the value of a nested Class property.
func (c Class) Class(name string) (Class, bool) {
	p, ok := c.Get(name)
	if !ok {
		return nil, false
	}
	switch v := p.Value.(type) {
	case Class:
		return v, true
	}
	return nil, false
}

// Array returns the value of an Array property.
func (c Class) Array(name string) (Array, bool) {
	p, ok := c.Get(name)
	if !ok {
		return nil, false
	}
	switch v := p.Value.(type) {
	case Array:
		return v, true
	}
	return nil, false
}

// Classes returns the Class elements of an Array property, skipping others.
func (c Class) Classes(name string) []Class {
	arr, ok := c.Array(name)
	if !ok {
		return nil
	}
	var classes []Class
	for _, item := range arr {
		if cls, ok := item.(Class); ok {
			classes = append(classes, cls)
		}
	}
	return classes
}

func TextProp(name, value string, immutable bool) Property {
	return Property{Name: name, Value: Text(value), Immutable: immutable}
}

func NatProp(name string, value uint64, immutable bool) Property {
	return Property{Name: name, Value: Nat(value), Immutable: immutable}
}

func BoolProp(name string, value bool, immutable bool) Property {
	return Property{Name: name, Value: Bool(value), Immutable: immutable}
}

func PrincipalProp(name, value string, immutable bool) Property {
	return Property{Name: name, Value: Principal(value), Immutable: immutable}
}

func ArrayProp(name string, value Array, immutable bool) Property {
	return Property{Name: name, Value: value, Immutable: immutable}
}

func ClassProp(name string, value Class, immutable bool) Property {
	return Property{Name: name, Value: value, Immutable: immutable}
}

// ClassArray converts a list of classes into an Array value.
func ClassArray(classes []Class) Array {
	arr := make(Array, 0, len(classes))
	for _, cls := range classes {
		arr = append(arr, cls)
	}
	return arr
}
