package flags

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli"
)

// ErrInvalidAddress is returned for strings that are not 0x-prefixed
// 20-byte hex addresses.
var ErrInvalidAddress = errors.New("invalid address")

// Address is a wrapper for a common.Address with flag.Value methods.
type Address struct {
	IsSet bool
	Value common.Address
}

// AddressFlag is a flag with type common.Address.
type AddressFlag struct {
	Name     string
	Usage    string
	Value    Address
	Required bool
}

var (
	_ flag.Value       = (*Address)(nil)
	_ cli.Flag         = AddressFlag{}
	_ cli.RequiredFlag = AddressFlag{}
)

// String implements the fmt.Stringer interface.
func (a Address) String() string {
	return a.Value.Hex()
}

// Set implements the flag.Value interface.
func (a *Address) Set(s string) error {
	addr, err := ParseAddress(s)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	a.IsSet = true
	a.Value = addr
	return nil
}

// Address returns the address value.
func (a *Address) Address() common.Address {
	if !a.IsSet {
		// It is a programmer error to call this method without
		// checking if the value was provided.
		panic("address was not set")
	}
	return a.Value
}

// IsSet checks if flag was set to a non-default value.
func (f AddressFlag) IsSet() bool {
	return f.Value.IsSet
}

// String returns a readable representation of this value
// (for usage defaults).
func (f AddressFlag) String() string {
	var names []string
	eachName(f.Name, func(name string) {
		names = append(names, getNameHelp(name))
	})
	return strings.Join(names, ", ") + "\t" + f.Usage
}

func getNameHelp(name string) string {
	if len(name) == 1 {
		return fmt.Sprintf("-%s value", name)
	}
	return fmt.Sprintf("--%s value", name)
}

// GetName returns the name of the flag.
func (f AddressFlag) GetName() string {
	return f.Name
}

// IsRequired returns whether the flag is required.
func (f AddressFlag) IsRequired() bool {
	return f.Required
}

// Apply populates the flag given the flag set and environment.
// Ignores errors.
func (f AddressFlag) Apply(set *flag.FlagSet) {
	_ = f.ApplyWithError(set)
}

// ApplyWithError populates the flag given the flag set and environment. Every
// application gets its own copy of the value.
func (f AddressFlag) ApplyWithError(set *flag.FlagSet) error {
	eachName(f.Name, func(name string) {
		set.Var(&f.Value, name, f.Usage)
	})
	return nil
}

// GetAddress returns the address flag value from the context. It returns
// false if there is no such flag or it was not set.
func GetAddress(ctx *cli.Context, name string) (common.Address, bool) {
	a, ok := ctx.Generic(name).(*Address)
	if !ok || !a.IsSet {
		return common.Address{}, false
	}
	return a.Value, true
}

// ParseAddress parses a 0x-prefixed hex-encoded address.
func ParseAddress(s string) (common.Address, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") || !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}
