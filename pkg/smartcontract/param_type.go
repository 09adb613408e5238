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
	"github.com/nspcc-dev/pesto-go/pkg/vm/stackitem"
)

// ParamType represents the Type of the smart contract parameter.
type ParamType int

// A list of supported smart contract parameter types.
const (
	UnknownType      ParamType = -1
	AnyType          ParamType = 0x00
	BoolType         ParamType = 0x10
	Uint256Type      ParamType = 0x11
	BytesType        ParamType = 0x12
	StringType       ParamType = 0x13
	AddressType      ParamType = 0x14
	Bytes32Type      ParamType = 0x15
	Bytes4Type       ParamType = 0x16
	Uint256ArrayType ParamType = 0x20
	VoidType         ParamType = 0xff
)

// validParamTypes contains a map of known ParamTypes.
var validParamTypes = map[ParamType]bool{
	UnknownType:      true,
	AnyType:          true,
	BoolType:         true,
	Uint256Type:      true,
	BytesType:        true,
	StringType:       true,
	AddressType:      true,
	Bytes32Type:      true,
	Bytes4Type:       true,
	Uint256ArrayType: true,
	VoidType:         true,
}

// String implements the stringer interface. It returns canonical ABI type
// names used in method signatures.
func (pt ParamType) String() string {
	switch pt {
	case BoolType:
		return "bool"
	case Uint256Type:
		return "uint256"
	case BytesType:
		return "bytes"
	case StringType:
		return "string"
	case AddressType:
		return "address"
	case Bytes32Type:
		return "bytes32"
	case Bytes4Type:
		return "bytes4"
	case Uint256ArrayType:
		return "uint256[]"
	case VoidType:
		return "void"
	case AnyType:
		return "any"
	default:
		return ""
	}
}

// MarshalJSON implements the json.Marshaler interface.
func (pt ParamType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + pt.String() + `"`), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (pt *ParamType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	p, err := ParseParamType(s)
	if err != nil {
		return err
	}

	*pt = p
	return nil
}

// MarshalYAML implements the YAML Marshaler interface.
func (pt ParamType) MarshalYAML() (any, error) {
	return pt.String(), nil
}

// ParseParamType is a user-friendly string to ParamType converter, it's
// case-insensitive and makes the following conversions:
//
//	bool, boolean -> BoolType
//	uint, uint256, int, integer -> Uint256Type
//	bytes, bytearray -> BytesType
//	string -> StringType
//	address, hash160 -> AddressType
//	bytes32, hash256 -> Bytes32Type
//	bytes4, selector -> Bytes4Type
//	uint256[] -> Uint256ArrayType
//	void -> VoidType
//	any -> AnyType
//
// anything else generates an error.
func ParseParamType(typ string) (ParamType, error) {
	switch strings.ToLower(typ) {
	case "bool", "boolean":
		return BoolType, nil
	case "uint", "uint256", "int", "integer":
		return Uint256Type, nil
	case "bytes", "bytearray":
		return BytesType, nil
	case "string":
		return StringType, nil
	case "address", "hash160":
		return AddressType, nil
	case "bytes32", "hash256":
		return Bytes32Type, nil
	case "bytes4", "selector":
		return Bytes4Type, nil
	case "uint256[]":
		return Uint256ArrayType, nil
	case "void":
		return VoidType, nil
	case "any":
		return AnyType, nil
	default:
		return UnknownType, fmt.Errorf("bad parameter type: %s", typ)
	}
}

// ConvertToParamType converts the provided value to the parameter type if it's a valid type.
func ConvertToParamType(val int) (ParamType, error) {
	if validParamTypes[ParamType(val)] {
		return ParamType(val), nil
	}
	return UnknownType, errors.New("unknown parameter type")
}

// ConvertToStackitemType converts ParamType to corresponding Stackitem.Type.
func (pt ParamType) ConvertToStackitemType() stackitem.Type {
	switch pt {
	case BoolType:
		return stackitem.BooleanT
	case Uint256Type:
		return stackitem.IntegerT
	case BytesType, StringType, AddressType, Bytes32Type, Bytes4Type:
		return stackitem.ByteArrayT
	case Uint256ArrayType:
		return stackitem.ArrayT
	case VoidType, AnyType:
		return stackitem.AnyT
	default:
		panic(fmt.Sprintf("unknown param type %d", pt))
	}
}

// fixedSize returns the required length of byte string types, 0 means any.
func (pt ParamType) fixedSize() int {
	switch pt {
	case AddressType:
		return common.AddressLength
	case Bytes32Type:
		return common.HashLength
	case Bytes4Type:
		return 4
	default:
		return 0
	}
}

// CheckItem checks whether the given stack item is a valid value of the
// parameter type.
func (pt ParamType) CheckItem(item stackitem.Item) error {
	if item == nil {
		return errors.New("nil item")
	}
	switch pt {
	case AnyType:
		return nil
	case VoidType:
		if item.Type() != stackitem.AnyT {
			return fmt.Errorf("expected void, got %s", item.Type())
		}
		return nil
	case Uint256Type:
		_, err := stackitem.ToUint256(item)
		if err != nil || item.Type() != stackitem.IntegerT {
			return fmt.Errorf("expected %s, got %s", pt, item.Type())
		}
		return nil
	case Uint256ArrayType:
		arr, ok := item.(*stackitem.Array)
		if !ok {
			return fmt.Errorf("expected %s, got %s", pt, item.Type())
		}
		for i, elem := range arr.Value().([]stackitem.Item) {
			if err := Uint256Type.CheckItem(elem); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		return nil
	}
	if item.Type() != pt.ConvertToStackitemType() {
		return fmt.Errorf("expected %s, got %s", pt, item.Type())
	}
	if item.Type() == stackitem.ByteArrayT {
		b, _ := item.TryBytes()
		if sz := pt.fixedSize(); sz != 0 && len(b) != sz {
			return fmt.Errorf("expected %s, got %d bytes", pt, len(b))
		}
		if pt == StringType && !utf8.Valid(b) {
			return fmt.Errorf("expected %s, got invalid UTF-8", pt)
		}
	}
	return nil
}

// adjustValToType is a value type-checker and converter.
func adjustValToType(typ ParamType, val string) (any, error) {
	switch typ {
	case BoolType:
		switch val {
		case "true":
			return true, nil
		case "false":
			return false, nil
		default:
			return nil, errors.New("invalid boolean value")
		}
	case Uint256Type:
		bi, err := parseUint256(val)
		if err != nil {
			return nil, err
		}
		return bi, nil
	case AddressType:
		if !common.IsHexAddress(val) {
			return nil, errors.New("invalid address value")
		}
		return common.HexToAddress(val), nil
	case BytesType, Bytes32Type, Bytes4Type:
		if !strings.HasPrefix(val, "0x") && !strings.HasPrefix(val, "0X") {
			val = "0x" + val
		}
		b, err := hexutil.Decode(val)
		if err != nil {
			return nil, err
		}
		if sz := typ.fixedSize(); sz != 0 && len(b) != sz {
			return nil, fmt.Errorf("invalid %s length %d", typ, len(b))
		}
		return b, nil
	case StringType:
		return val, nil
	case Uint256ArrayType:
		var res = []Parameter{}
		if val == "" {
			return res, nil
		}
		for _, s := range strings.Split(val, ",") {
			bi, err := parseUint256(strings.TrimSpace(s))
			if err != nil {
				return nil, err
			}
			res = append(res, Parameter{Type: Uint256Type, Value: bi})
		}
		return res, nil
	default:
		return nil, errors.New("unsupported parameter type")
	}
}

// parseUint256 parses decimal or 0x-prefixed hexadecimal unsigned 256-bit
// integer.
func parseUint256(val string) (*big.Int, error) {
	var (
		bi = new(big.Int)
		ok bool
	)
	if strings.HasPrefix(val, "0x") || strings.HasPrefix(val, "0X") {
		_, ok = bi.SetString(val[2:], 16)
	} else {
		_, ok = bi.SetString(val, 10)
	}
	if !ok || bi.Sign() < 0 || stackitem.CheckIntegerSize(bi) != nil {
		return nil, errors.New("invalid integer value")
	}
	return bi, nil
}

// inferParamType tries to infer the value type from its contents. It returns
// Uint256Type for anything that looks like a non-negative decimal integer,
// BoolType for true and false values, AddressType for 0x-prefixed 20-byte hex
// strings, Bytes32Type and Bytes4Type for 0x-prefixed 32 and 4 byte hex
// strings, BytesType for any other valid 0x-prefixed hex and StringType for
// anything else.
func inferParamType(val string) ParamType {
	bi, ok := new(big.Int).SetString(val, 10)
	if ok && bi.Sign() >= 0 && stackitem.CheckIntegerSize(bi) == nil {
		return Uint256Type
	}

	if val == "true" || val == "false" {
		return BoolType
	}

	unhexed, err := hexutil.Decode(val)
	if err == nil {
		switch len(unhexed) {
		case common.AddressLength:
			return AddressType
		case common.HashLength:
			return Bytes32Type
		case 4:
			return Bytes4Type
		default:
			return BytesType
		}
	}
	// Anything can be a string.
	return StringType
}
