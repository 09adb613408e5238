// Package wallet provides signing accounts backed by secp256k1 keys.
package wallet

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/nspcc-dev/pesto-go/pkg/core/transaction"
)

// Account represents an externally owned account. It holds the private key
// along with some metadata.
type Account struct {
	privateKey *ecdsa.PrivateKey

	// Address is the account address derived from its public key.
	Address common.Address `json:"address"`

	// Label is a label the user had made for this account.
	Label string `json:"label,omitempty"`
}

// ErrNoPrivateKey is returned when trying to sign with a watch-only account.
var ErrNoPrivateKey = errors.New("account has no private key")

// NewAccount creates a new Account with a random generated private key.
func NewAccount() (*Account, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return NewAccountFromPrivateKey(priv), nil
}

// NewAccountFromPrivateKey creates a wallet account from the given private key.
func NewAccountFromPrivateKey(p *ecdsa.PrivateKey) *Account {
	return &Account{
		privateKey: p,
		Address:    crypto.PubkeyToAddress(p.PublicKey),
	}
}

// NewAccountFromHex creates an Account from a hex-encoded private key
// (with or without 0x prefix).
func NewAccountFromHex(s string) (*Account, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}
	priv, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return NewAccountFromPrivateKey(priv), nil
}

// NewWatchOnlyAccount creates an Account that can't sign anything.
func NewWatchOnlyAccount(addr common.Address) *Account {
	return &Account{Address: addr}
}

// PrivateKey returns the underlying private key, it's nil for watch-only
// accounts.
func (a *Account) PrivateKey() *ecdsa.PrivateKey {
	return a.privateKey
}

// CanSign returns true when account is not locked and has a private key.
func (a *Account) CanSign() bool {
	return a.privateKey != nil
}

// SignHash signs 32-byte hash producing a 65-byte [R || S || V] signature.
func (a *Account) SignHash(h common.Hash) ([]byte, error) {
	if !a.CanSign() {
		return nil, ErrNoPrivateKey
	}
	return crypto.Sign(h.Bytes(), a.privateKey)
}

// SignTx signs transaction hash and sets its Signature. Transaction sender
// must match the account address.
func (a *Account) SignTx(t *transaction.Transaction) error {
	if t.Sender != a.Address {
		return fmt.Errorf("transaction sender %s doesn't match account %s", t.Sender, a.Address)
	}
	sig, err := a.SignHash(t.Hash())
	if err != nil {
		return err
	}
	t.Signature = sig
	return nil
}

// PrivateKeyHex returns a hex-encoded private key without 0x prefix.
func (a *Account) PrivateKeyHex() string {
	if a.privateKey == nil {
		return ""
	}
	return hex.EncodeToString(crypto.FromECDSA(a.privateKey))
}

// RecoverSigner returns an address of the key used to produce sig for h.
func RecoverSigner(h common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length %d", len(sig))
	}
	pub, err := crypto.SigToPub(h.Bytes(), sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
