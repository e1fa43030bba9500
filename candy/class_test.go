package candy

import (
	"encoding/json"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleClass() Class {
	return Class{
		TextProp("id", "bm-0", true),
		NatProp("sort", 3, true),
		BoolProp("is_soulbound", false, true),
		ArrayProp("library", ClassArray([]Class{
			{TextProp("library_id", "a.png", true)},
			{TextProp("library_id", "b.png", true)},
		}), true),
		ClassProp("write", Class{
			TextProp("type", "allow", false),
			ArrayProp("list", Array{Principal("aaaaa-aa")}, false),
		}, false),
	}
}

func TestClassAccessors(t *testing.T) {
	c := sampleClass()

	id, ok := c.Text("id")
	assert.True(t, ok)
	assert.Equal(t, "bm-0", id)

	sort, ok := c.Nat("sort")
	assert.True(t, ok)
	assert.EqualValues(t, 3, sort)

	// Wrong kind is not coerced.
	_, ok = c.Text("sort")
	assert.False(t, ok)
	_, ok = c.Nat("missing")
	assert.False(t, ok)

	soulbound, ok := c.Bool("is_soulbound")
	assert.True(t, ok)
	assert.False(t, soulbound)

	assert.Len(t, c.Classes("library"), 2)
	assert.Nil(t, c.Classes("id"))

	write, ok := c.Class("write")
	require.True(t, ok)
	list, ok := write.Array("list")
	require.True(t, ok)
	assert.Equal(t, Array{Principal("aaaaa-aa")}, list)
}

func TestEncodeShape(t *testing.T) {
	blob, err := json.Marshal(Class{TextProp("id", "", true)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Class":[{"name":"id","value":{"Text":""},"immutable":true}]}`, string(blob))

	blob, err = json.Marshal(Encode(None))
	require.NoError(t, err)
	assert.JSONEq(t, `{"Option":[]}`, string(blob))

	blob, err = json.Marshal(Encode(Some(Nat(7))))
	require.NoError(t, err)
	assert.JSONEq(t, `{"Option":[{"Nat":7}]}`, string(blob))
}

func TestClassJSON(t *testing.T) {
	want := sampleClass()
	blob, err := json.Marshal(want)
	require.NoError(t, err)

	var have Class
	require.NoError(t, json.Unmarshal(blob, &have))
	assert.Equal(t, want, have)
}

func TestClassCBOR(t *testing.T) {
	want := sampleClass()
	blob, err := cbor.Marshal(want)
	require.NoError(t, err)

	var have Class
	require.NoError(t, cbor.Unmarshal(blob, &have))
	assert.Equal(t, want, have)
}

func TestDecodeErrors(t *testing.T) {
	tests := map[string]interface{}{
		"not a map":      "Text",
		"two tags":       map[string]interface{}{"Text": "a", "Nat": 1},
		"unknown tag":    map[string]interface{}{"Float": 1.5},
		"negative nat":   map[string]interface{}{"Nat": -1},
		"text not text":  map[string]interface{}{"Text": 1},
		"bad array":      map[string]interface{}{"Array": 1},
		"bad class item": map[string]interface{}{"Class": []interface{}{"x"}},
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(raw)
			assert.Error(t, err)
		})
	}

	_, err := DecodeClass(map[string]interface{}{"Text": "a"})
	assert.Error(t, err)
}

func TestDecodeLenientNumbers(t *testing.T) {
	v, err := Decode(map[string]interface{}{"Nat64": "42"})
	require.NoError(t, err)
	assert.Equal(t, Nat(42), v)

	v, err = Decode(map[string]interface{}{"Array": []interface{}{
		map[string]interface{}{"Nat": float64(1)},
	}})
	require.NoError(t, err)
	assert.Equal(t, Array{Nat(1)}, v)
}
