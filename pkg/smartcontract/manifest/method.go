package manifest

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract"
)

// Method represents method's metadata.
type Method struct {
	Name       string                  `json:"name"`
	Parameters []Parameter             `json:"parameters"`
	ReturnType smartcontract.ParamType `json:"returntype"`
	Safe       bool                    `json:"safe"`
}

// Signature returns canonical method signature like "transfer(address,uint256)".
func (m *Method) Signature() string {
	return signature(m.Name, m.Parameters)
}

// Selector returns the first four bytes of the Keccak-256 hash of the method
// signature.
func (m *Method) Selector() [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(m.Signature())))
	return sel
}

// IsValid checks Method consistency and correctness.
func (m *Method) IsValid() error {
	if m.Name == "" {
		return errors.New("empty or absent name")
	}
	if m.ReturnType.String() == "" {
		return errors.New("invalid return type")
	}
	return Parameters(m.Parameters).AreValid()
}

func signature(name string, params []Parameter) string {
	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteByte('(')
	for i := range params {
		if i != 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(params[i].Type.String())
	}
	sb.WriteByte(')')
	return sb.String()
}
