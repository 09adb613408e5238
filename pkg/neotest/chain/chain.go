// Package chain contains functions creating new test blockchain instances.
// Chains use the unit test network configuration and dev accounts derived
// from its seed, so account addresses are stable across runs.
package chain

import (
	"testing"

	"github.com/nspcc-dev/pesto-go/pkg/config"
	"github.com/nspcc-dev/pesto-go/pkg/contracts"
	"github.com/nspcc-dev/pesto-go/pkg/core"
	"github.com/nspcc-dev/pesto-go/pkg/core/storage"
	"github.com/nspcc-dev/pesto-go/pkg/neotest"
	"github.com/nspcc-dev/pesto-go/pkg/wallet"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// NewSingle creates a new blockchain instance with in-memory storage and
// returns it along with dev account signers. The chain is closed on test
// cleanup.
func NewSingle(t testing.TB) (*core.Blockchain, []neotest.Signer) {
	return NewSingleWithCustomConfig(t, nil)
}

// NewSingleWithCustomConfig is similar to NewSingle, but allows to override
// the default configuration.
func NewSingleWithCustomConfig(t testing.TB, f func(*config.Blockchain)) (*core.Blockchain, []neotest.Signer) {
	return NewSingleWithCustomConfigAndStore(t, f, nil, true)
}

// NewSingleWithCustomConfigAndStore is similar to NewSingleWithCustomConfig,
// but allows to also override the default storage (in-memory by default). If
// run is true the chain loop is started and the chain is closed on cleanup.
func NewSingleWithCustomConfigAndStore(t testing.TB, f func(*config.Blockchain), st storage.Store, run bool) (*core.Blockchain, []neotest.Signer) {
	cfg := config.Default().Blockchain()
	if f != nil {
		f(&cfg)
	}
	if st == nil {
		st = storage.NewMemoryStore()
	}
	bc, err := core.NewBlockchain(st, cfg, contracts.NewDefault(), zaptest.NewLogger(t))
	require.NoError(t, err)
	if run {
		go bc.Run()
		t.Cleanup(bc.Close)
	}
	return bc, Signers(t, cfg)
}

// Signers returns dev account signers of the configuration.
func Signers(t testing.TB, cfg config.Blockchain) []neotest.Signer {
	accs, err := wallet.DevAccounts(cfg.DevAccounts.Seed, cfg.DevAccounts.Count)
	require.NoError(t, err)
	signers := make([]neotest.Signer, len(accs))
	for i := range accs {
		signers[i] = neotest.NewSingleSigner(accs[i])
	}
	return signers
}
