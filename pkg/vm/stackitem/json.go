package stackitem

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// MaxJSONDepth is the maximum allowed nesting level of an encoded/decoded JSON.
const MaxJSONDepth = 10

// ErrTooDeep is returned for items nested deeper than MaxJSONDepth.
var ErrTooDeep = errors.New("too deep")

// ToJSONWithTypes serializes any stackitem to JSON in a lossless way.
// Integers are encoded as decimal strings, byte strings as 0x-prefixed hex.
func ToJSONWithTypes(item Item) ([]byte, error) {
	result, err := toJSONWithTypes(item, 0)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

func toJSONWithTypes(item Item, depth int) (any, error) {
	if depth > MaxJSONDepth {
		return "", ErrTooDeep
	}
	var value any
	switch it := item.(type) {
	case *Array:
		arr := []any{}
		for _, elem := range it.value {
			s, err := toJSONWithTypes(elem, depth+1)
			if err != nil {
				return "", err
			}
			arr = append(arr, s)
		}
		value = arr
	case Bool:
		value = bool(it)
	case *ByteArray:
		value = hexutil.Encode(*it)
	case *BigInteger:
		value = it.Big().String()
	case Null:
	case nil:
		return "", fmt.Errorf("%w: nil", ErrInvalidType)
	}
	result := map[string]any{
		"type": item.Type().String(),
	}
	if value != nil {
		result["value"] = value
	}
	return result, nil
}

type rawItem struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

func mkErrValue(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidValue, err)
}

// FromJSONWithTypes deserializes an item from typed-json representation.
func FromJSONWithTypes(data []byte) (Item, error) {
	return fromJSONWithTypes(data, 0)
}

func fromJSONWithTypes(data []byte, depth int) (Item, error) {
	if depth > MaxJSONDepth {
		return nil, ErrTooDeep
	}
	raw := new(rawItem)
	if err := json.Unmarshal(data, raw); err != nil {
		return nil, err
	}
	typ, err := FromString(raw.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidType, raw.Type)
	}
	switch typ {
	case AnyT:
		return Null{}, nil
	case BooleanT:
		var b bool
		if err := json.Unmarshal(raw.Value, &b); err != nil {
			return nil, mkErrValue(err)
		}
		return NewBool(b), nil
	case IntegerT:
		var s string
		if err := json.Unmarshal(raw.Value, &s); err != nil {
			return nil, mkErrValue(err)
		}
		val, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, mkErrValue(errors.New("not an integer"))
		}
		if err := CheckIntegerSize(val); err != nil {
			return nil, err
		}
		return NewBigInteger(val), nil
	case ByteArrayT:
		var s string
		if err := json.Unmarshal(raw.Value, &s); err != nil {
			return nil, mkErrValue(err)
		}
		val, err := hexutil.Decode(s)
		if err != nil {
			return nil, mkErrValue(err)
		}
		return NewByteArray(val), nil
	case ArrayT:
		var arr []json.RawMessage
		if err := json.Unmarshal(raw.Value, &arr); err != nil {
			return nil, mkErrValue(err)
		}
		if len(arr) > MaxArraySize {
			return nil, errTooBigElements
		}
		items := make([]Item, len(arr))
		for i := range arr {
			it, err := fromJSONWithTypes(arr[i], depth+1)
			if err != nil {
				return nil, err
			}
			items[i] = it
		}
		return NewArray(items), nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidType, typ)
	}
}
