package candy

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

const (
	tagText      = "Text"
	tagNat       = "Nat"
	tagBool      = "Bool"
	tagPrincipal = "Principal"
	tagArray     = "Array"
	tagClass     = "Class"
	tagOption    = "Option"

	fieldName      = "name"
	fieldValue     = "value"
	fieldImmutable = "immutable"
	fieldThawed    = "thawed"
	fieldFrozen    = "frozen"
)

// decMode decodes generic CBOR maps as map[string]interface{} so the result
// can be walked the same way as decoded JSON.
var decMode cbor.DecMode

func init() {
	var err error
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]interface{}(nil)),
	}.DecMode()
	if err != nil {
		panic("candy: CBOR decoder initialization failed: " + err.Error())
	}
}

// Encode converts v into its generic wire representation.
func Encode(v Value) interface{} {
	switch v := v.(type) {
	case Text:
		return map[string]interface{}{tagText: string(v)}
	case Nat:
		return map[string]interface{}{tagNat: uint64(v)}
	case Bool:
		return map[string]interface{}{tagBool: bool(v)}
	case Principal:
		return map[string]interface{}{tagPrincipal: string(v)}
	case Array:
		items := make([]interface{}, 0, len(v))
		for _, item := range v {
			items = append(items, Encode(item))
		}
		return map[string]interface{}{tagArray: map[string]interface{}{fieldThawed: items}}
	case Class:
		return map[string]interface{}{tagClass: encodeProperties(v)}
	case Option:
		if v.Value == nil {
			return map[string]interface{}{tagOption: []interface{}{}}
		}
		return map[string]interface{}{tagOption: []interface{}{Encode(v.Value)}}
	}
	return nil
}

func encodeProperties(c Class) []interface{} {
	props := make([]interface{}, 0, len(c))
	for _, p := range c {
		props = append(props, map[string]interface{}{
			fieldName:      p.Name,
			fieldValue:     Encode(p.Value),
			fieldImmutable: p.Immutable,
		})
	}
	return props
}

// Decode converts a generic wire representation (as produced by
// encoding/json or the CBOR decoder) back into a Value.
func Decode(raw interface{}) (Value, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("candy: expected a tagged map, got %T", raw)
	}
	if len(m) != 1 {
		return nil, fmt.Errorf("candy: expected exactly one tag, got %d", len(m))
	}
	for tag, inner := range m {
		switch tag {
		case tagText:
			s, ok := inner.(string)
			if !ok {
				return nil, fmt.Errorf("candy: Text holds %T", inner)
			}
			return Text(s), nil
		case tagNat, "Nat8", "Nat16", "Nat32", "Nat64":
			n, err := cast.ToUint64E(inner)
			if err != nil {
				return nil, errors.Wrapf(err, "candy: %s", tag)
			}
			return Nat(n), nil
		case tagBool:
			b, err := cast.ToBoolE(inner)
			if err != nil {
				return nil, errors.Wrap(err, "candy: Bool")
			}
			return Bool(b), nil
		case tagPrincipal:
			s, ok := inner.(string)
			if !ok {
				return nil, fmt.Errorf("candy: Principal holds %T", inner)
			}
			return Principal(s), nil
		case tagArray:
			return decodeArray(inner)
		case tagClass:
			return decodeProperties(inner)
		case tagOption:
			items, ok := inner.([]interface{})
			if !ok {
				return nil, fmt.Errorf("candy: Option holds %T", inner)
			}
			if len(items) == 0 {
				return None, nil
			}
			v, err := Decode(items[0])
			if err != nil {
				return nil, err
			}
			return Some(v), nil
		default:
			return nil, fmt.Errorf("candy: unsupported tag %q", tag)
		}
	}
	return nil, nil // Unreachable.
}

func decodeArray(raw interface{}) (Array, error) {
	var items []interface{}
	switch v := raw.(type) {
	case []interface{}:
		items = v
	case map[string]interface{}:
		list, ok := v[fieldThawed]
		if !ok {
			list = v[fieldFrozen]
		}
		if items, ok = list.([]interface{}); !ok {
			return nil, fmt.Errorf("candy: Array holds %T", list)
		}
	default:
		return nil, fmt.Errorf("candy: Array holds %T", raw)
	}
	arr := make(Array, 0, len(items))
	for _, item := range items {
		v, err := Decode(item)
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
	return arr, nil
}

func decodeProperties(raw interface{}) (Class, error) {
	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("candy: Class holds %T", raw)
	}
	c := make(Class, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("candy: property holds %T", item)
		}
		name, _ := m[fieldName].(string)
		v, err := Decode(m[fieldValue])
		if err != nil {
			return nil, errors.Wrapf(err, "property %q", name)
		}
		immutable, _ := m[fieldImmutable].(bool)
		c = append(c, Property{Name: name, Value: v, Immutable: immutable})
	}
	return c, nil
}

// DecodeClass is like Decode but requires the value to be a Class.
func DecodeClass(raw interface{}) (Class, error) {
	v, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	c, ok := v.(Class)
	if !ok {
		return nil, fmt.Errorf("candy: expected Class, got %s", Kind(v))
	}
	return c, nil
}

// MarshalJSON implements json.Marshaler.
func (c Class) MarshalJSON() ([]byte, error) {
	return json.Marshal(Encode(c))
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Class) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := DecodeClass(raw)
	if err != nil {
		return err
	}
	*c = decoded
	return nil
}

// MarshalCBOR implements cbor.Marshaler.
func (c Class) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(Encode(c))
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (c *Class) UnmarshalCBOR(data []byte) error {
	var raw interface{}
	if err := decMode.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := DecodeClass(raw)
	if err != nil {
		return err
	}
	*c = decoded
	return nil
}
