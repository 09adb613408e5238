package neotest

import (
	"testing"

	"github.com/nspcc-dev/pesto-go/pkg/wallet"
	"github.com/stretchr/testify/require"
)

// NewAccount returns a signer for a new random account.
func NewAccount(t testing.TB) Signer {
	acc, err := wallet.NewAccount()
	require.NoError(t, err)
	return NewSingleSigner(acc)
}
