package smartcontract

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/pesto-go/pkg/vm/stackitem"
)

// Parameter represents a smart contract parameter.
type Parameter struct {
	// Type of the parameter.
	Type ParamType `json:"type"`
	// The actual value of the parameter.
	Value any `json:"value"`
}

// NewParameter returns a Parameter with proper initialized Value
// of the given ParamType.
func NewParameter(t ParamType) Parameter {
	return Parameter{
		Type:  t,
		Value: nil,
	}
}

type rawParameter struct {
	Type  ParamType       `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON implements Marshaler interface. Integers are encoded as decimal
// strings and byte strings as 0x-prefixed hex.
func (p Parameter) MarshalJSON() ([]byte, error) {
	var (
		resultRawValue json.RawMessage
		resultErr      error
	)
	if p.Value == nil {
		if _, ok := validParamTypes[p.Type]; ok && p.Type != UnknownType {
			return json.Marshal(rawParameter{Type: p.Type})
		}
		return nil, fmt.Errorf("can't marshal %s", p.Type)
	}
	switch p.Type {
	case BoolType, StringType:
		resultRawValue, resultErr = json.Marshal(p.Value)
	case AddressType:
		val, ok := p.Value.(common.Address)
		if !ok {
			resultErr = errors.New("invalid address value")
			break
		}
		resultRawValue, resultErr = json.Marshal(val.Hex())
	case Uint256Type:
		val, ok := p.Value.(*big.Int)
		if !ok {
			resultErr = errors.New("invalid integer value")
			break
		}
		resultRawValue = json.RawMessage(`"` + val.String() + `"`)
	case BytesType, Bytes32Type, Bytes4Type:
		val, ok := p.Value.([]byte)
		if !ok {
			resultErr = errors.New("invalid bytes value")
			break
		}
		resultRawValue, resultErr = json.Marshal(hexutil.Encode(val))
	case Uint256ArrayType:
		value, ok := p.Value.([]Parameter)
		if !ok {
			resultErr = errors.New("invalid array value")
			break
		}
		if value == nil {
			resultRawValue, resultErr = json.Marshal([]Parameter{})
		} else {
			resultRawValue, resultErr = json.Marshal(value)
		}
	default:
		resultErr = fmt.Errorf("can't marshal %s", p.Type)
	}
	if resultErr != nil {
		return nil, resultErr
	}
	return json.Marshal(rawParameter{
		Type:  p.Type,
		Value: resultRawValue,
	})
}

// UnmarshalJSON implements Unmarshaler interface.
func (p *Parameter) UnmarshalJSON(data []byte) (err error) {
	var (
		s    string
		r    rawParameter
		arr  []Parameter
		bval bool
	)
	if err = json.Unmarshal(data, &r); err != nil {
		return
	}
	p.Type = r.Type
	p.Value = nil
	if len(r.Value) == 0 || string(r.Value) == "null" {
		return
	}
	switch r.Type {
	case BoolType:
		if err = json.Unmarshal(r.Value, &bval); err != nil {
			return
		}
		p.Value = bval
	case StringType:
		if err = json.Unmarshal(r.Value, &s); err != nil {
			return
		}
		if !utf8.ValidString(s) {
			return errors.New("invalid UTF-8 string")
		}
		p.Value = s
	case AddressType, Uint256Type, BytesType, Bytes32Type, Bytes4Type:
		if err = json.Unmarshal(r.Value, &s); err != nil {
			return
		}
		p.Value, err = adjustValToType(r.Type, s)
	case Uint256ArrayType:
		if err = json.Unmarshal(r.Value, &arr); err != nil {
			return
		}
		for i := range arr {
			if arr[i].Type != Uint256Type {
				return fmt.Errorf("element %d: not an %s", i, Uint256Type)
			}
		}
		p.Value = arr
	default:
		return fmt.Errorf("can't unmarshal %s", p.Type)
	}
	return
}

// ToStackItem converts smartcontract parameter to stackitem.Item.
func (p *Parameter) ToStackItem() (stackitem.Item, error) {
	switch p.Type {
	case AnyType, VoidType:
		if p.Value == nil {
			return stackitem.Null{}, nil
		}
		return nil, fmt.Errorf("unexpected %s value", p.Type)
	case Uint256ArrayType:
		arr, ok := p.Value.([]Parameter)
		if !ok {
			return nil, fmt.Errorf("invalid %s value", p.Type)
		}
		items := make([]stackitem.Item, 0, len(arr))
		for i := range arr {
			item, err := arr[i].ToStackItem()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return stackitem.NewArray(items), nil
	}
	var item stackitem.Item
	switch v := p.Value.(type) {
	case bool, *big.Int, []byte, string, common.Address:
		item = stackitem.Make(v)
	default:
		return nil, fmt.Errorf("unsupported %s value %T", p.Type, p.Value)
	}
	if err := p.Type.CheckItem(item); err != nil {
		return nil, err
	}
	return item, nil
}

// NewParameterFromString returns a new Parameter initialized from the given
// string, either 'type:value' or just 'value'. Colons in values
// can be escaped with a backslash. If no type is given, it's inferred from
// the value (see inferParamType).
func NewParameterFromString(in string) (*Parameter, error) {
	var (
		char    rune
		val     string
		err     error
		r       *strings.Reader
		buf     strings.Builder
		escaped bool
		hadType bool
		res     = &Parameter{}
	)
	r = strings.NewReader(in)
	for char, _, err = r.ReadRune(); err == nil && char != utf8.RuneError; char, _, err = r.ReadRune() {
		if char == '\\' && !escaped {
			escaped = true
			continue
		}
		if char == ':' && !escaped && !hadType {
			res.Type, err = ParseParamType(buf.String())
			if err != nil {
				return nil, err
			}
			if res.Type == VoidType || res.Type == AnyType {
				return nil, fmt.Errorf("unsupported parameter type %s", res.Type)
			}
			buf.Reset()
			hadType = true
			continue
		}
		escaped = false
		// We don't care about length and it never fails.
		_, _ = buf.WriteRune(char)
	}
	if char == utf8.RuneError {
		return nil, errors.New("bad UTF-8 string")
	}
	// The only other error `ReadRune` returns is io.EOF, which is fine and
	// expected, so we don't check err here.

	val = buf.String()
	if !hadType {
		res.Type = inferParamType(val)
	}
	res.Value, err = adjustValToType(res.Type, val)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// NewParameterFromValue infers Parameter type from the value given and adjusts
// the value if needed. It does not copy the value if it can avoid doing so.
// All regular integers are converted to *big.Int, arrays of integers are
// converted to Uint256ArrayType parameters.
func NewParameterFromValue(value any) (Parameter, error) {
	var result = Parameter{
		Value: value,
	}

	switch v := value.(type) {
	case []byte:
		result.Type = BytesType
	case string:
		result.Type = StringType
	case bool:
		result.Type = BoolType
	case *big.Int:
		if v == nil || v.Sign() < 0 || stackitem.CheckIntegerSize(v) != nil {
			return result, fmt.Errorf("invalid uint256 value %v", v)
		}
		result.Type = Uint256Type
	case big.Int:
		return NewParameterFromValue(&v)
	case *uint256.Int:
		if v == nil {
			return result, errors.New("nil uint256 value")
		}
		result.Type = Uint256Type
		result.Value = v.ToBig()
	case int:
		return NewParameterFromValue(big.NewInt(int64(v)))
	case int64:
		return NewParameterFromValue(big.NewInt(v))
	case uint32:
		return NewParameterFromValue(new(big.Int).SetUint64(uint64(v)))
	case uint64:
		return NewParameterFromValue(new(big.Int).SetUint64(v))
	case common.Address:
		result.Type = AddressType
	case *common.Address:
		if v == nil {
			return result, errors.New("nil address value")
		}
		result.Type = AddressType
		result.Value = *v
	case common.Hash:
		result.Type = Bytes32Type
		result.Value = v.Bytes()
	case [4]byte:
		result.Type = Bytes4Type
		result.Value = v[:]
	case Parameter:
		result = v
	case []*big.Int, []*uint256.Int, []int, []uint64:
		arr, err := newUint256Array(v)
		if err != nil {
			return result, err
		}
		result.Type = Uint256ArrayType
		result.Value = arr
	case nil:
		result.Type = AnyType
	default:
		return result, fmt.Errorf("unsupported parameter %T", value)
	}

	return result, nil
}

func newUint256Array(values any) ([]Parameter, error) {
	var elems []any
	switch v := values.(type) {
	case []*big.Int:
		for i := range v {
			elems = append(elems, v[i])
		}
	case []*uint256.Int:
		for i := range v {
			elems = append(elems, v[i])
		}
	case []int:
		for i := range v {
			elems = append(elems, v[i])
		}
	case []uint64:
		for i := range v {
			elems = append(elems, v[i])
		}
	}
	res := make([]Parameter, 0, len(elems))
	for i := range elems {
		p, err := NewParameterFromValue(elems[i])
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, nil
}

// NewParametersFromValues is similar to NewParameterFromValue except that it
// works with multiple values and returns a simple slice of Parameter.
func NewParametersFromValues(values ...any) ([]Parameter, error) {
	res := make([]Parameter, 0, len(values))
	for i := range values {
		elem, err := NewParameterFromValue(values[i])
		if err != nil {
			return nil, err
		}
		res = append(res, elem)
	}
	return res, nil
}

// ToStackItems converts a set of parameters to stack items.
func ToStackItems(params []Parameter) ([]stackitem.Item, error) {
	res := make([]stackitem.Item, 0, len(params))
	for i := range params {
		item, err := params[i].ToStackItem()
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		res = append(res, item)
	}
	return res, nil
}
