package chain

import (
	"testing"

	"github.com/nspcc-dev/pesto-go/pkg/config"
	"github.com/nspcc-dev/pesto-go/pkg/contracts/pesto"
	"github.com/nspcc-dev/pesto-go/pkg/neotest"
	"github.com/stretchr/testify/require"
)

// TestNewSingle checks that dev accounts are able to send transactions.
func TestNewSingle(t *testing.T) {
	bc, signers := NewSingle(t)
	require.Len(t, signers, config.DefaultDevAccountsCount)
	require.NotEqual(t, signers[0].Address(), signers[1].Address())

	e := neotest.NewExecutor(t, bc, signers...)
	h := e.DeployContract(t, pesto.FactoryName)
	c := e.NewInvoker(h)
	c.Invoke(t, true, "transfer", signers[1].Address(), 1000)
	require.Equal(t, uint32(2), bc.BlockHeight())
}

func TestSignersDeterministic(t *testing.T) {
	cfg := config.Default().Blockchain()
	s1 := Signers(t, cfg)
	s2 := Signers(t, cfg)
	require.Equal(t, neotest.Addresses(s1...), neotest.Addresses(s2...))

	cfg.DevAccounts.Count = 2
	require.Len(t, Signers(t, cfg), 2)
}
