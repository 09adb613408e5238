package wallet

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// DevAccounts derives count deterministic accounts from the seed. The key of
// account i is Keccak-256(seed || BE32(i)), rehashed until it's a valid
// secp256k1 scalar. Accounts are labeled "dev#i".
func DevAccounts(seed string, count int) ([]*Account, error) {
	if count <= 0 {
		return nil, errors.New("positive account count expected")
	}
	var (
		res = make([]*Account, 0, count)
		idx [4]byte
	)
	for i := range count {
		binary.BigEndian.PutUint32(idx[:], uint32(i))
		key := crypto.Keccak256([]byte(seed), idx[:])
		for {
			priv, err := crypto.ToECDSA(key)
			if err == nil {
				acc := NewAccountFromPrivateKey(priv)
				acc.Label = fmt.Sprintf("dev#%d", i)
				res = append(res, acc)
				break
			}
			key = crypto.Keccak256(key)
		}
	}
	return res, nil
}
