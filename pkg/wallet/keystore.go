package wallet

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/google/uuid"
	"github.com/nspcc-dev/pesto-go/pkg/io"
)

// ScryptParams define the key derivation parameters used by SaveKeystore.
type ScryptParams struct {
	N int
	P int
}

// Scrypt parameter presets.
var (
	StandardScrypt = ScryptParams{N: keystore.StandardScryptN, P: keystore.StandardScryptP}
	LightScrypt    = ScryptParams{N: keystore.LightScryptN, P: keystore.LightScryptP}
)

// NewAccountFromKeystore decrypts a Web3 Secret Storage (V3) key file.
func NewAccountFromKeystore(path string, password string) (*Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewAccountFromKeystoreJSON(data, password)
}

// NewAccountFromKeystoreJSON decrypts a V3 key file contents.
func NewAccountFromKeystoreJSON(data []byte, password string) (*Account, error) {
	k, err := keystore.DecryptKey(data, password)
	if err != nil {
		return nil, fmt.Errorf("can't decrypt keystore: %w", err)
	}
	return NewAccountFromPrivateKey(k.PrivateKey), nil
}

// SaveKeystore encrypts account key with the password and writes it to the
// path as a V3 key file.
func (a *Account) SaveKeystore(path string, password string, params ScryptParams) error {
	if !a.CanSign() {
		return ErrNoPrivateKey
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return err
	}
	k := &keystore.Key{
		Id:         id,
		Address:    a.Address,
		PrivateKey: a.privateKey,
	}
	data, err := keystore.EncryptKey(k, password, params.N, params.P)
	if err != nil {
		return err
	}
	if err := io.MakeDirForFile(path, "keystore"); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
