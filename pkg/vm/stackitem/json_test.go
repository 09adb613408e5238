package stackitem

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToFromJSONWithTypes(t *testing.T) {
	var testCases = []struct {
		name   string
		item   Item
		result string
	}{
		{"Null", Null{}, `{"type":"Any"}`},
		{"Integer", NewBigInteger(big.NewInt(42)), `{"type":"Integer","value":"42"}`},
		{"NegativeInteger", NewBigInteger(big.NewInt(-42)), `{"type":"Integer","value":"-42"}`},
		{"ByteString", NewByteArray([]byte{1, 2, 3}), `{"type":"ByteString","value":"0x010203"}`},
		{"EmptyByteString", NewByteArray([]byte{}), `{"type":"ByteString","value":"0x"}`},
		{"Boolean", NewBool(true), `{"type":"Boolean","value":true}`},
		{"Array", NewArray([]Item{Make(1), Make(false)}),
			`{"type":"Array","value":[{"type":"Integer","value":"1"},{"type":"Boolean","value":false}]}`},
		{"EmptyArray", NewArray([]Item{}), `{"type":"Array","value":[]}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			js, err := ToJSONWithTypes(tc.item)
			require.NoError(t, err)
			require.Equal(t, tc.result, string(js))

			item, err := FromJSONWithTypes(js)
			require.NoError(t, err)
			require.True(t, tc.item.Equals(item), "%s != %s", tc.item, item)
		})
	}

	t.Run("invalid", func(t *testing.T) {
		for _, js := range []string{
			`{"type":"Map","value":[]}`,
			`{"type":"Integer","value":42}`,
			`{"type":"Integer","value":"4x2"}`,
			`{"type":"ByteString","value":"zz"}`,
			`{"type":"Boolean","value":"true"}`,
			`{"type":"Array","value":{}}`,
			`[]`,
		} {
			_, err := FromJSONWithTypes([]byte(js))
			require.Error(t, err, js)
		}
	})

	t.Run("too deep", func(t *testing.T) {
		var item Item = Make(1)
		for range MaxJSONDepth + 2 {
			item = NewArray([]Item{item})
		}
		_, err := ToJSONWithTypes(item)
		require.ErrorIs(t, err, ErrTooDeep)
	})
}
