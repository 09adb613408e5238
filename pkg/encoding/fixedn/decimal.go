// Package fixedn implements conversions between human-readable decimal
// amounts and integer token base units.
package fixedn

import (
	"errors"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// MaxDecimals is the maximum precision supported by the conversion routines.
const MaxDecimals = 77

var (
	errInvalidString    = errors.New("fixed-point number must have a <int>.<frac> format")
	errInvalidPrecision = errors.New("invalid precision")
	errOverflow         = errors.New("value doesn't fit into 256 bits")
)

var pow10 []*big.Int

func init() {
	var p = big.NewInt(1)
	for range MaxDecimals + 1 {
		pow10 = append(pow10, p)
		p = new(big.Int).Mul(p, big.NewInt(10))
	}
}

// ToString converts a big decimal with the specified precision to a string.
func ToString(bi *big.Int, precision int) string {
	var (
		abs    = new(big.Int).Abs(bi)
		dp, fp big.Int
		sb     strings.Builder
	)
	dp.QuoRem(abs, pow10[precision], &fp)
	if bi.Sign() < 0 {
		sb.WriteByte('-')
	}
	sb.WriteString(dp.String())
	if fp.Sign() != 0 {
		fs := fp.String()
		sb.WriteByte('.')
		sb.WriteString(strings.Repeat("0", precision-len(fs)))
		sb.WriteString(strings.TrimRight(fs, "0"))
	}
	return sb.String()
}

// FromString converts a string to a big decimal with the specified precision.
func FromString(s string, precision int) (*big.Int, error) {
	if precision < 0 || precision > MaxDecimals {
		return nil, errInvalidPrecision
	}
	parts := strings.SplitN(s, ".", 2)
	bi, ok := new(big.Int).SetString(parts[0], 10)
	if !ok {
		return nil, errInvalidString
	}
	bi.Mul(bi, pow10[precision])
	if len(parts) == 1 {
		return bi, nil
	}

	if len(parts[1]) == 0 || len(parts[1]) > precision {
		return nil, errInvalidString
	}
	fp, ok := new(big.Int).SetString(parts[1], 10)
	if !ok || fp.Sign() < 0 {
		return nil, errInvalidString
	}
	fp.Mul(fp, pow10[precision-len(parts[1])])
	if bi.Sign() == -1 || strings.HasPrefix(parts[0], "-") {
		return bi.Sub(bi, fp), nil
	}
	return bi.Add(bi, fp), nil
}

// ParseUnits converts a decimal amount like "1000000" or "0.5" to the
// number of base units of a token with the given decimals.
func ParseUnits(s string, decimals int) (*uint256.Int, error) {
	bi, err := FromString(s, decimals)
	if err != nil {
		return nil, err
	}
	if bi.Sign() < 0 {
		return nil, errors.New("negative amount")
	}
	u, overflow := uint256.FromBig(bi)
	if overflow {
		return nil, errOverflow
	}
	return u, nil
}

// MustParseUnits is like ParseUnits, but panics on error.
func MustParseUnits(s string, decimals int) *uint256.Int {
	u, err := ParseUnits(s, decimals)
	if err != nil {
		panic(err)
	}
	return u
}

// FormatUnits converts the number of token base units to a decimal string.
func FormatUnits(u *uint256.Int, decimals int) string {
	return ToString(u.ToBig(), decimals)
}
