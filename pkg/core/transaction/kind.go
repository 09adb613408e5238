package transaction

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is the kind of action transaction performs.
type Kind byte

// Supported transaction kinds.
const (
	// DeployKind creates a new contract instance from the named factory.
	DeployKind Kind = 0x01
	// InvokeKind calls a method of a deployed contract.
	InvokeKind Kind = 0x02
)

// String implements the fmt.Stringer interface.
func (k Kind) String() string {
	switch k {
	case DeployKind:
		return "deploy"
	case InvokeKind:
		return "invoke"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

// KindFromString converts string to Kind.
func KindFromString(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "deploy":
		return DeployKind, nil
	case "invoke":
		return InvokeKind, nil
	default:
		return 0, fmt.Errorf("unknown transaction kind %q", s)
	}
}

// MarshalJSON implements the json.Marshaler interface.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	kind, err := KindFromString(s)
	if err != nil {
		return err
	}
	*k = kind
	return nil
}
