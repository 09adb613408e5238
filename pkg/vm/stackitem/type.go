package stackitem

import "errors"

// Type represents type of the stack item.
type Type byte

// This block defines all known stack item types.
const (
	AnyT       Type = 0x00
	BooleanT   Type = 0x20
	IntegerT   Type = 0x21
	ByteArrayT Type = 0x28
	ArrayT     Type = 0x40
	InvalidT   Type = 0xFF
)

// String implements fmt.Stringer interface.
func (t Type) String() string {
	switch t {
	case AnyT:
		return "Any"
	case BooleanT:
		return "Boolean"
	case IntegerT:
		return "Integer"
	case ByteArrayT:
		return "ByteString"
	case ArrayT:
		return "Array"
	default:
		return "INVALID"
	}
}

// IsValid checks if s is a well defined stack item type.
func (t Type) IsValid() bool {
	switch t {
	case AnyT, BooleanT, IntegerT, ByteArrayT, ArrayT:
		return true
	default:
		return false
	}
}

// FromString returns stackitem type from string.
func FromString(s string) (Type, error) {
	switch s {
	case "Any":
		return AnyT, nil
	case "Boolean":
		return BooleanT, nil
	case "Integer":
		return IntegerT, nil
	case "ByteString":
		return ByteArrayT, nil
	case "Array":
		return ArrayT, nil
	default:
		return InvalidT, errors.New("invalid type")
	}
}
