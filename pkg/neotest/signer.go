package neotest

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/pesto-go/pkg/core/transaction"
	"github.com/nspcc-dev/pesto-go/pkg/wallet"
)

// Signer is an account that can send transactions.
type Signer interface {
	// Address returns the signer address.
	Address() common.Address
	// SignTx signs a transaction.
	SignTx(tx *transaction.Transaction) error
	// Account returns the underlying wallet account.
	Account() *wallet.Account
}

// signer represents simple-signature signer.
type signer struct {
	acc *wallet.Account
}

// NewSingleSigner returns a signer for the provided account, the account
// must have a private key.
func NewSingleSigner(acc *wallet.Account) Signer {
	if !acc.CanSign() {
		panic("account must have a private key")
	}
	return &signer{acc: acc}
}

// Address implements Signer interface.
func (s *signer) Address() common.Address {
	return s.acc.Address
}

// SignTx implements Signer interface.
func (s *signer) SignTx(tx *transaction.Transaction) error {
	return s.acc.SignTx(tx)
}

// Account implements Signer interface.
func (s *signer) Account() *wallet.Account {
	return s.acc
}

// Addresses returns addresses of the signers.
func Addresses(signers ...Signer) []common.Address {
	res := make([]common.Address, len(signers))
	for i := range signers {
		res[i] = signers[i].Address()
	}
	return res
}
