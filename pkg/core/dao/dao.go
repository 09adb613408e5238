// Package dao provides typed access to the chain data stored in a
// storage.Store.
package dao

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/pesto-go/pkg/config/netmode"
	"github.com/nspcc-dev/pesto-go/pkg/core/block"
	"github.com/nspcc-dev/pesto-go/pkg/core/state"
	"github.com/nspcc-dev/pesto-go/pkg/core/storage"
	"github.com/nspcc-dev/pesto-go/pkg/core/transaction"
	"github.com/nspcc-dev/pesto-go/pkg/io"
)

// ErrAlreadyExists is returned when the transaction exists in dao.
var ErrAlreadyExists = errors.New("transaction already exists")

// Simple is memCached wrapper around DB, simple DAO implementation.
type Simple struct {
	Version Version
	Store   *storage.MemCachedStore
}

// Version represents the current dao version.
type Version struct {
	Magic uint32
	Value string
}

// NewSimple creates new simple dao using provided backend store.
func NewSimple(backend storage.Store) *Simple {
	return &Simple{Store: storage.NewMemCachedStore(backend)}
}

// GetWrapped returns a new DAO instance with another layer of wrapped
// MemCachedStore around the current DAO Store.
func (dao *Simple) GetWrapped() *Simple {
	d := NewSimple(dao.Store)
	d.Version = dao.Version
	return d
}

// GetAndDecode performs get operation and decoding with serializable structures.
func (dao *Simple) GetAndDecode(entity io.Serializable, key []byte) error {
	entityBytes, err := dao.Store.Get(key)
	if err != nil {
		return err
	}
	reader := io.NewBinReaderFromBuf(entityBytes)
	entity.DecodeBinary(reader)
	return reader.Err
}

// putWithBuffer performs put operation using buf as a pre-allocated buffer for serialization.
func (dao *Simple) putWithBuffer(entity io.Serializable, key []byte, buf *io.BufBinWriter) error {
	entity.EncodeBinary(buf.BinWriter)
	if buf.Err != nil {
		return buf.Err
	}
	dao.Store.Put(key, buf.Bytes())
	return nil
}

// -- start contracts.

func makeContractKey(addr common.Address) []byte {
	return append([]byte{byte(storage.STContract)}, addr[:]...)
}

// GetContractState returns contract state as recorded in the given
// store by the given address.
func (dao *Simple) GetContractState(addr common.Address) (*state.Contract, error) {
	cs := new(state.Contract)
	if err := dao.GetAndDecode(cs, makeContractKey(addr)); err != nil {
		return nil, err
	}
	return cs, nil
}

// PutContractState puts the given contract state into the given store.
func (dao *Simple) PutContractState(cs *state.Contract) error {
	return dao.putWithBuffer(cs, makeContractKey(cs.Address), io.NewBufBinWriter())
}

// SeekContracts iterates over all deployed contracts in the address order
// until f returns false.
func (dao *Simple) SeekContracts(f func(cs *state.Contract) bool) error {
	var err error
	dao.Store.Seek(storage.SeekRange{Prefix: storage.STContract.Bytes()}, func(k, v []byte) bool {
		cs := new(state.Contract)
		if err = io.FromByteArray(cs, v); err != nil {
			err = fmt.Errorf("contract %x: %w", k[1:], err)
			return false
		}
		return f(cs)
	})
	return err
}

// -- end contracts.

// -- start nonces.

func makeNonceKey(addr common.Address) []byte {
	return append([]byte{byte(storage.STNonce)}, addr[:]...)
}

// GetNonce returns the next nonce of the account, it's zero for unknown
// accounts.
func (dao *Simple) GetNonce(addr common.Address) uint64 {
	b, err := dao.Store.Get(makeNonceKey(addr))
	if err != nil || len(b) != 8 {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// PutNonce stores the next nonce of the account.
func (dao *Simple) PutNonce(addr common.Address, nonce uint64) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, nonce)
	dao.Store.Put(makeNonceKey(addr), b)
}

// -- end nonces.

// -- start storage item.

func makeStorageItemKey(addr common.Address, key []byte) []byte {
	k := make([]byte, 1+common.AddressLength+len(key))
	k[0] = byte(storage.STStorage)
	copy(k[1:], addr[:])
	copy(k[1+common.AddressLength:], key)
	return k
}

// GetStorageItem returns the storage value of the contract for the given key,
// nil is returned for missing items.
func (dao *Simple) GetStorageItem(addr common.Address, key []byte) []byte {
	b, err := dao.Store.Get(makeStorageItemKey(addr, key))
	if err != nil {
		return nil
	}
	return b
}

// PutStorageItem puts the given value for the given contract and key into
// the store.
func (dao *Simple) PutStorageItem(addr common.Address, key []byte, value []byte) {
	dao.Store.Put(makeStorageItemKey(addr, key), value)
}

// DeleteStorageItem drops a storage item for the given contract and key.
func (dao *Simple) DeleteStorageItem(addr common.Address, key []byte) {
	dao.Store.Delete(makeStorageItemKey(addr, key))
}

// SeekStorage iterates over contract storage items with the given key prefix,
// keys passed to f are stripped of the contract address and the prefix.
func (dao *Simple) SeekStorage(addr common.Address, prefix []byte, f func(k, v []byte) bool) {
	rng := storage.SeekRange{Prefix: makeStorageItemKey(addr, prefix)}
	dao.Store.Seek(rng, func(k, v []byte) bool {
		return f(k[len(rng.Prefix):], v)
	})
}

// -- end storage item.

// -- start blocks.

func makeBlockKey(h common.Hash) []byte {
	return append([]byte{byte(storage.DataBlock)}, h[:]...)
}

func makeBlockIndexKey(index uint32) []byte {
	k := make([]byte, 5)
	k[0] = byte(storage.IXBlockHash)
	binary.BigEndian.PutUint32(k[1:], index)
	return k
}

// StoreAsBlock stores the trimmed block and its index record.
func (dao *Simple) StoreAsBlock(b *block.Block) error {
	data, err := b.Trim()
	if err != nil {
		return err
	}
	h := b.Hash()
	dao.Store.Put(makeBlockKey(h), data)
	dao.Store.Put(makeBlockIndexKey(b.Index), h.Bytes())
	return nil
}

// GetBlockHash returns the hash of the block with the given index.
func (dao *Simple) GetBlockHash(index uint32) (common.Hash, error) {
	b, err := dao.Store.Get(makeBlockIndexKey(index))
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(b), nil
}

// GetHeader returns the header of the block with the given hash and its
// transaction hashes.
func (dao *Simple) GetHeader(h common.Hash) (*block.Header, []common.Hash, error) {
	data, err := dao.Store.Get(makeBlockKey(h))
	if err != nil {
		return nil, nil, err
	}
	return block.NewTrimmedFromBytes(data)
}

// GetBlock returns the full block with the given hash.
func (dao *Simple) GetBlock(h common.Hash) (*block.Block, error) {
	hdr, hashes, err := dao.GetHeader(h)
	if err != nil {
		return nil, err
	}
	b := &block.Block{
		Header:       *hdr,
		Transactions: make([]*transaction.Transaction, 0, len(hashes)),
	}
	for _, th := range hashes {
		tx, _, err := dao.GetTransaction(th)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", th, err)
		}
		b.Transactions = append(b.Transactions, tx)
	}
	return b, nil
}

// StoreAsCurrentBlock stores the hash and the index of the given block as
// the chain tip.
func (dao *Simple) StoreAsCurrentBlock(b *block.Block) {
	buf := make([]byte, common.HashLength+4)
	h := b.Hash()
	copy(buf, h[:])
	binary.LittleEndian.PutUint32(buf[common.HashLength:], b.Index)
	dao.Store.Put(storage.SYSCurrentBlock.Bytes(), buf)
}

// GetCurrentBlockHeight returns the current block height and hash found in
// the underlying store.
func (dao *Simple) GetCurrentBlockHeight() (uint32, common.Hash, error) {
	b, err := dao.Store.Get(storage.SYSCurrentBlock.Bytes())
	if err != nil {
		return 0, common.Hash{}, err
	}
	if len(b) != common.HashLength+4 {
		return 0, common.Hash{}, errors.New("bad current block record")
	}
	return binary.LittleEndian.Uint32(b[common.HashLength:]), common.BytesToHash(b[:common.HashLength]), nil
}

// -- end blocks.

// -- start transactions.

func makeTxKey(h common.Hash) []byte {
	return append([]byte{byte(storage.DataTransaction)}, h[:]...)
}

// StoreAsTransaction stores the given transaction along with its execution
// result and the index of the block including it.
func (dao *Simple) StoreAsTransaction(tx *transaction.Transaction, index uint32, aer *state.AppExecResult) error {
	buf := io.NewBufBinWriter()
	buf.WriteU32LE(index)
	tx.EncodeBinary(buf.BinWriter)
	if aer != nil {
		aer.EncodeBinary(buf.BinWriter)
	}
	if buf.Err != nil {
		return buf.Err
	}
	dao.Store.Put(makeTxKey(tx.Hash()), buf.Bytes())
	return nil
}

// GetTransaction returns Transaction and its height by the given hash
// if it exists in the store.
func (dao *Simple) GetTransaction(h common.Hash) (*transaction.Transaction, uint32, error) {
	b, err := dao.Store.Get(makeTxKey(h))
	if err != nil {
		return nil, 0, err
	}
	r := io.NewBinReaderFromBuf(b)
	index := r.ReadU32LE()
	tx := new(transaction.Transaction)
	tx.DecodeBinary(r)
	if r.Err != nil {
		return nil, 0, r.Err
	}
	return tx, index, nil
}

// GetAppExecResult gets application execution result of the transaction
// with the given hash from the store.
func (dao *Simple) GetAppExecResult(h common.Hash) (*state.AppExecResult, error) {
	b, err := dao.Store.Get(makeTxKey(h))
	if err != nil {
		return nil, err
	}
	r := io.NewBinReaderFromBuf(b)
	_ = r.ReadU32LE()
	tx := new(transaction.Transaction)
	tx.DecodeBinary(r)
	aer := new(state.AppExecResult)
	aer.DecodeBinary(r)
	if r.Err != nil {
		return nil, r.Err
	}
	return aer, nil
}

// HasTransaction returns an error if the store contains the given transaction
// hash.
func (dao *Simple) HasTransaction(h common.Hash) error {
	if _, err := dao.Store.Get(makeTxKey(h)); err == nil {
		return ErrAlreadyExists
	}
	return nil
}

// -- end transactions.

// GetVersion attempts to get the current version stored in the
// underlying store.
func (dao *Simple) GetVersion() (Version, error) {
	var version Version
	data, err := dao.Store.Get(storage.SYSVersion.Bytes())
	if err != nil {
		return version, err
	}
	r := io.NewBinReaderFromBuf(data)
	version.Magic = r.ReadU32LE()
	version.Value = r.ReadString()
	return version, r.Err
}

// PutVersion stores the given version in the underlying store.
func (dao *Simple) PutVersion(v Version) {
	buf := io.NewBufBinWriter()
	buf.WriteU32LE(v.Magic)
	buf.WriteString(v.Value)
	dao.Version = v
	dao.Store.Put(storage.SYSVersion.Bytes(), buf.Bytes())
}

// CheckVersion compares the stored version with the expected one.
func (dao *Simple) CheckVersion(expected Version) error {
	v, err := dao.GetVersion()
	if err != nil {
		return err
	}
	if v.Magic != expected.Magic {
		return fmt.Errorf("storage belongs to %s network, %s expected", netmode.Magic(v.Magic), netmode.Magic(expected.Magic))
	}
	if v.Value != expected.Value {
		return fmt.Errorf("storage version mismatch: %s vs %s", v.Value, expected.Value)
	}
	dao.Version = v
	return nil
}

// Persist flushes all the changes made into the (supposedly) persistent
// underlying store. It doesn't block accesses to DAO from other threads.
func (dao *Simple) Persist() (int, error) {
	return dao.Store.Persist()
}
