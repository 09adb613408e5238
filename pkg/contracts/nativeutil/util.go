// Package nativeutil contains helpers shared by Go-native contract
// implementations.
package nativeutil

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/pesto-go/pkg/core/interop"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/pesto-go/pkg/vm/stackitem"
)

// Execution prices of contract methods.
const (
	PriceRead  int64 = 1 << 10
	PriceWrite int64 = 1 << 15
)

// NewDescriptor returns a method descriptor.
func NewDescriptor(name string, ret smartcontract.ParamType, ps ...manifest.Parameter) *manifest.Method {
	if len(ps) == 0 {
		ps = []manifest.Parameter{}
	}
	return &manifest.Method{
		Name:       name,
		Parameters: ps,
		ReturnType: ret,
	}
}

// NewSafeDescriptor returns a descriptor of a method not changing state.
func NewSafeDescriptor(name string, ret smartcontract.ParamType, ps ...manifest.Parameter) *manifest.Method {
	desc := NewDescriptor(name, ret, ps...)
	desc.Safe = true
	return desc
}

// NewMethodAndPrice returns a method with the given price.
func NewMethodAndPrice(f interop.Method, price int64) *interop.MethodAndPrice {
	return &interop.MethodAndPrice{
		Func:  f,
		Price: price,
	}
}

// ToAddress converts an argument to an address, arguments are type-checked
// before the call so it never fails for AddressType parameters.
func ToAddress(s stackitem.Item) common.Address {
	addr, err := stackitem.ToAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// ToUint256 converts an argument to a 256-bit integer.
func ToUint256(s stackitem.Item) *uint256.Int {
	u, err := stackitem.ToUint256(s)
	if err != nil {
		panic(err)
	}
	return u
}

// ToBool converts an argument to a boolean.
func ToBool(s stackitem.Item) bool {
	b, err := s.TryBool()
	if err != nil {
		panic(err)
	}
	return b
}

// ToBytes converts an argument to a byte slice.
func ToBytes(s stackitem.Item) []byte {
	b, err := s.TryBytes()
	if err != nil {
		panic(err)
	}
	return b
}

// ToString converts an argument to a string.
func ToString(s stackitem.Item) string {
	str, err := stackitem.ToString(s)
	if err != nil {
		panic(err)
	}
	return str
}

// TokenKey returns a 32-byte storage key part for the token id.
func TokenKey(id *uint256.Int) []byte {
	b := id.Bytes32()
	return b[:]
}

// Add returns a+b reverting on overflow.
func Add(a, b *uint256.Int) *uint256.Int {
	res, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		interop.Revert("arithmetic overflow")
	}
	return res
}

// Sub returns a-b reverting on underflow.
func Sub(a, b *uint256.Int) *uint256.Int {
	res, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		interop.Revert("arithmetic underflow")
	}
	return res
}

// Mul returns a*b reverting on overflow.
func Mul(a, b *uint256.Int) *uint256.Int {
	res, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		interop.Revert("arithmetic overflow")
	}
	return res
}

// IsZero checks whether the address is a zero one.
func IsZero(addr common.Address) bool {
	return addr == (common.Address{})
}
