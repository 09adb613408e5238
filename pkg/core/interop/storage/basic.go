// Package storage provides access to the storage of the executing contract.
package storage

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/pesto-go/pkg/core/interop"
	"github.com/nspcc-dev/pesto-go/pkg/core/storage"
)

func checkWrite(ic *interop.Context, key []byte) {
	if ic.ReadOnly() {
		interop.Revert("storage is read only")
	}
	if len(key) > storage.MaxStorageKeyLen {
		interop.Revert("key is too big")
	}
}

// Get returns the value stored by the executing contract under the key, nil
// for missing items.
func Get(ic *interop.Context, key []byte) []byte {
	return ic.DAO.GetStorageItem(ic.Self(), key)
}

// Put stores the value under the key, empty value deletes the item.
func Put(ic *interop.Context, key []byte, value []byte) {
	checkWrite(ic, key)
	if len(value) > storage.MaxStorageValueLen {
		interop.Revert("value is too big")
	}
	if len(value) == 0 {
		ic.DAO.DeleteStorageItem(ic.Self(), key)
		return
	}
	ic.DAO.PutStorageItem(ic.Self(), key, value)
}

// Delete removes the item stored under the key.
func Delete(ic *interop.Context, key []byte) {
	checkWrite(ic, key)
	ic.DAO.DeleteStorageItem(ic.Self(), key)
}

// Find iterates over items which keys start with the prefix, keys passed to
// f have the prefix stripped.
func Find(ic *interop.Context, prefix []byte, f func(k, v []byte) bool) {
	ic.DAO.SeekStorage(ic.Self(), prefix, f)
}

// GetUint256 returns a stored 256-bit integer, zero for missing items.
func GetUint256(ic *interop.Context, key []byte) *uint256.Int {
	return new(uint256.Int).SetBytes(Get(ic, key))
}

// PutUint256 stores a 256-bit integer, zero values are deleted.
func PutUint256(ic *interop.Context, key []byte, v *uint256.Int) {
	if v.IsZero() {
		Delete(ic, key)
		return
	}
	Put(ic, key, v.Bytes())
}

// GetAddress returns a stored address, zero address for missing items.
func GetAddress(ic *interop.Context, key []byte) common.Address {
	return common.BytesToAddress(Get(ic, key))
}

// PutAddress stores an address, zero address is deleted.
func PutAddress(ic *interop.Context, key []byte, addr common.Address) {
	if addr == (common.Address{}) {
		Delete(ic, key)
		return
	}
	Put(ic, key, addr.Bytes())
}

// GetBool returns a stored flag.
func GetBool(ic *interop.Context, key []byte) bool {
	return len(Get(ic, key)) != 0
}

// PutBool stores a flag, false is deleted.
func PutBool(ic *interop.Context, key []byte, v bool) {
	if !v {
		Delete(ic, key)
		return
	}
	Put(ic, key, []byte{1})
}

// Key concatenates key parts.
func Key(parts ...[]byte) []byte {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	k := make([]byte, 0, n)
	for _, p := range parts {
		k = append(k, p...)
	}
	return k
}
