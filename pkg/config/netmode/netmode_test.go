package netmode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMagicString(t *testing.T) {
	require.Equal(t, "devnet", DevNet.String())
	require.Equal(t, "unit_testnet", UnitTestNet.String())
	require.Equal(t, "net 0x10", Magic(16).String())
}
