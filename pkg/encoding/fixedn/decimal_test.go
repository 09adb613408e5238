package fixedn

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestDecimalFromStringGood(t *testing.T) {
	var testCases = []struct {
		bi   *big.Int
		prec int
		s    string
	}{
		{big.NewInt(123), 2, "1.23"},
		{big.NewInt(12300), 2, "123"},
		{big.NewInt(1234500000), 8, "12.345"},
		{big.NewInt(-12345), 3, "-12.345"},
		{big.NewInt(35), 8, "0.00000035"},
		{big.NewInt(-35), 8, "-0.00000035"},
	}
	for _, tc := range testCases {
		t.Run(tc.s, func(t *testing.T) {
			s := ToString(tc.bi, tc.prec)
			require.Equal(t, tc.s, s)

			bi, err := FromString(s, tc.prec)
			require.NoError(t, err)
			require.Equal(t, tc.bi, bi)
		})
	}
}

func TestDecimalFromStringBad(t *testing.T) {
	var errCases = []struct {
		s    string
		prec int
	}{
		{"", 0},
		{"", 1},
		{"12A", 1},
		{"12.345", 2},
		{"12.34.5", 2},
		{"12.", 2},
		{"1.-5", 3},
		{"1", -1},
		{"1", MaxDecimals + 1},
	}
	for _, tc := range errCases {
		t.Run(tc.s, func(t *testing.T) {
			_, err := FromString(tc.s, tc.prec)
			require.Error(t, err)
		})
	}
}

func TestParseUnits(t *testing.T) {
	u, err := ParseUnits("1000000", 18)
	require.NoError(t, err)
	expected, err := uint256.FromDecimal("1000000000000000000000000")
	require.NoError(t, err)
	require.Equal(t, expected, u)
	require.Equal(t, "1000000", FormatUnits(u, 18))

	u, err = ParseUnits("0.5", 18)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(500000000000000000), u)
	require.Equal(t, "0.5", FormatUnits(u, 18))

	_, err = ParseUnits("-1", 18)
	require.Error(t, err)

	// 2^256 does not fit.
	_, err = ParseUnits("115792089237316195423570985008687907853269984665640564039457584007913129639936", 0)
	require.Error(t, err)

	require.Panics(t, func() { MustParseUnits("abc", 18) })
	require.Equal(t, uint256.NewInt(100000), MustParseUnits("100000", 0))
}
