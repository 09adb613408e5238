package stackitem

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var makeStackItemTestCases = []struct {
	input  any
	result Item
}{
	{
		input:  int64(3),
		result: (*BigInteger)(big.NewInt(3)),
	},
	{
		input:  int16(3),
		result: (*BigInteger)(big.NewInt(3)),
	},
	{
		input:  3,
		result: (*BigInteger)(big.NewInt(3)),
	},
	{
		input:  uint64(3),
		result: (*BigInteger)(big.NewInt(3)),
	},
	{
		input:  big.NewInt(3),
		result: (*BigInteger)(big.NewInt(3)),
	},
	{
		input:  uint256.NewInt(3),
		result: (*BigInteger)(big.NewInt(3)),
	},
	{
		input:  []byte{1, 2, 3, 4},
		result: NewByteArray([]byte{1, 2, 3, 4}),
	},
	{
		input:  "bla",
		result: NewByteArray([]byte("bla")),
	},
	{
		input:  true,
		result: Bool(true),
	},
	{
		input:  common.HexToAddress("0x12970e6868f88f6557b76120662c1b3e50a646bf"),
		result: NewByteArray(common.FromHex("0x12970e6868f88f6557b76120662c1b3e50a646bf")),
	},
	{
		input:  []Item{(*BigInteger)(big.NewInt(3)), NewByteArray([]byte{1, 2, 3})},
		result: NewArray([]Item{(*BigInteger)(big.NewInt(3)), NewByteArray([]byte{1, 2, 3})}),
	},
	{
		input:  []int{1, 2},
		result: NewArray([]Item{(*BigInteger)(big.NewInt(1)), (*BigInteger)(big.NewInt(2))}),
	},
	{
		input:  nil,
		result: Null{},
	},
	{
		input:  (*common.Address)(nil),
		result: Null{},
	},
}

var makeStackItemErrorCases = []struct {
	input any
}{
	{
		input: map[int]int{1: 2},
	},
}

func TestMakeStackItem(t *testing.T) {
	for _, testCase := range makeStackItemTestCases {
		assert.Equal(t, testCase.result, Make(testCase.input))
	}
	for _, errorCase := range makeStackItemErrorCases {
		assert.Panics(t, func() { Make(errorCase.input) })
	}
}

func TestBigIntegerLimits(t *testing.T) {
	maxU256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	require.NotPanics(t, func() { NewBigInteger(maxU256) })
	require.Panics(t, func() { NewBigInteger(new(big.Int).Lsh(big.NewInt(1), 256)) })

	b, err := Make(1).TryBytes()
	require.NoError(t, err)
	require.Len(t, b, 32)
	require.Equal(t, byte(1), b[31])

	_, err = Make(-1).TryBytes()
	require.ErrorIs(t, err, ErrInvalidConversion)
}

func TestToUint256(t *testing.T) {
	u, err := ToUint256(Make(42))
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(42), u)

	_, err = ToUint256(Make(-42))
	require.ErrorIs(t, err, ErrInvalidValue)

	_, err = ToUint256(NewArray(nil))
	require.ErrorIs(t, err, ErrInvalidConversion)
}

func TestToAddress(t *testing.T) {
	addr := common.HexToAddress("0xcd3b766ccdd6ae721141f452c550ca635964ce71")
	actual, err := ToAddress(Make(addr))
	require.NoError(t, err)
	require.Equal(t, addr, actual)

	_, err = ToAddress(Make([]byte{1, 2, 3}))
	require.ErrorIs(t, err, ErrInvalidValue)

	_, err = ToAddress(Make(1))
	require.ErrorIs(t, err, ErrInvalidConversion)
}

func TestToString(t *testing.T) {
	s, err := ToString(Make("PESTO"))
	require.NoError(t, err)
	require.Equal(t, "PESTO", s)

	_, err = ToString(Make([]byte{0xff, 0xfe}))
	require.ErrorIs(t, err, ErrInvalidValue)
}

func TestEquals(t *testing.T) {
	require.True(t, Make(1).Equals(Make(1)))
	require.False(t, Make(1).Equals(Make(2)))
	require.False(t, Make(1).Equals(Make(true)))
	require.True(t, Make([]int{1, 2}).Equals(Make([]int{1, 2})))
	require.False(t, Make([]int{1, 2}).Equals(Make([]int{1})))
	require.True(t, Null{}.Equals(Null{}))
	require.True(t, Make("a").Equals(Make([]byte("a"))))
}

func TestTryBool(t *testing.T) {
	for _, tc := range []struct {
		item     Item
		expected bool
	}{
		{Make(0), false},
		{Make(7), true},
		{Make([]byte{0, 0}), false},
		{Make([]byte{0, 1}), true},
		{Null{}, false},
		{NewArray(nil), true},
	} {
		b, err := tc.item.TryBool()
		require.NoError(t, err)
		require.Equal(t, tc.expected, b)
	}
}

func TestTypeFromString(t *testing.T) {
	for _, typ := range []Type{AnyT, BooleanT, IntegerT, ByteArrayT, ArrayT} {
		actual, err := FromString(typ.String())
		require.NoError(t, err)
		require.Equal(t, typ, actual)
		require.True(t, typ.IsValid())
	}
	_, err := FromString("Map")
	require.Error(t, err)
	require.False(t, InvalidT.IsValid())
}
