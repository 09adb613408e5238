// Package block contains block and header definitions of the development
// chain.
package block

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/nspcc-dev/pesto-go/pkg/core/transaction"
	"github.com/nspcc-dev/pesto-go/pkg/io"
)

// MaxTransactionsPerBlock is the maximum number of transactions per block.
const MaxTransactionsPerBlock = 0xffff

// Block represents one block in the chain.
type Block struct {
	Header

	// Transaction list.
	Transactions []*transaction.Transaction `json:"tx"`
}

// New creates a new block with the given parent.
func New(index uint32, prev common.Hash, timestamp uint64, txes []*transaction.Transaction) *Block {
	b := &Block{
		Header: Header{
			Index:     index,
			PrevHash:  prev,
			Timestamp: timestamp,
		},
		Transactions: txes,
	}
	b.RebuildTxRoot()
	return b
}

// ComputeTxRoot computes the hash of transaction hashes list.
func ComputeTxRoot(txes []*transaction.Transaction) common.Hash {
	if len(txes) == 0 {
		return common.Hash{}
	}
	data := make([]byte, 0, len(txes)*common.HashLength)
	for _, tx := range txes {
		h := tx.Hash()
		data = append(data, h[:]...)
	}
	return crypto.Keccak256Hash(data)
}

// RebuildTxRoot recalculates TxRoot of the block.
func (b *Block) RebuildTxRoot() {
	b.TxRoot = ComputeTxRoot(b.Transactions)
	b.Invalidate()
}

// Verify checks block integrity.
func (b *Block) Verify() error {
	if len(b.Transactions) > MaxTransactionsPerBlock {
		return fmt.Errorf("too many transactions: %d", len(b.Transactions))
	}
	seen := make(map[common.Hash]bool, len(b.Transactions))
	for _, tx := range b.Transactions {
		if seen[tx.Hash()] {
			return errors.New("transaction duplication is not allowed")
		}
		seen[tx.Hash()] = true
	}
	if ComputeTxRoot(b.Transactions) != b.TxRoot {
		return errors.New("TxRoot mismatch")
	}
	return nil
}

// Trim returns a subset of the block data to save up space in storage:
// the header and transaction hashes only.
func (b *Block) Trim() ([]byte, error) {
	buf := io.NewBufBinWriter()
	b.Header.EncodeBinary(buf.BinWriter)
	buf.WriteVarUint(uint64(len(b.Transactions)))
	for _, tx := range b.Transactions {
		h := tx.Hash()
		buf.WriteBytes(h[:])
	}
	if buf.Err != nil {
		return nil, buf.Err
	}
	return buf.Bytes(), nil
}

// NewTrimmedFromBytes decodes the header and transaction hashes of a trimmed
// block.
func NewTrimmedFromBytes(data []byte) (*Header, []common.Hash, error) {
	var (
		h = new(Header)
		r = io.NewBinReaderFromBuf(data)
	)
	h.DecodeBinary(r)
	n := r.ReadVarUint()
	if r.Err == nil && n > MaxTransactionsPerBlock {
		return nil, nil, fmt.Errorf("too many transactions: %d", n)
	}
	var hashes = make([]common.Hash, 0, n)
	for i := uint64(0); i < n && r.Err == nil; i++ {
		var th common.Hash
		r.ReadBytes(th[:])
		hashes = append(hashes, th)
	}
	if r.Err != nil {
		return nil, nil, r.Err
	}
	return h, hashes, nil
}

// EncodeBinary implements the io.Serializable interface.
func (b *Block) EncodeBinary(w *io.BinWriter) {
	b.Header.EncodeBinary(w)
	w.WriteVarUint(uint64(len(b.Transactions)))
	for _, tx := range b.Transactions {
		tx.EncodeBinary(w)
	}
}

// DecodeBinary implements the io.Serializable interface.
func (b *Block) DecodeBinary(r *io.BinReader) {
	b.Header.DecodeBinary(r)
	n := r.ReadVarUint()
	if r.Err != nil {
		return
	}
	if n > MaxTransactionsPerBlock {
		r.Err = fmt.Errorf("too many transactions: %d", n)
		return
	}
	b.Transactions = make([]*transaction.Transaction, n)
	for i := range b.Transactions {
		tx := new(transaction.Transaction)
		tx.DecodeBinary(r)
		b.Transactions[i] = tx
	}
	if r.Err != nil {
		return
	}
	r.Err = b.Verify()
}

// blockJSON is used for JSON i/o.
type blockJSON struct {
	Hash common.Hash `json:"hash"`
	*Header
	Transactions []*transaction.Transaction `json:"tx"`
}

// MarshalJSON implements the json.Marshaler interface.
func (b *Block) MarshalJSON() ([]byte, error) {
	txes := b.Transactions
	if txes == nil {
		txes = []*transaction.Transaction{}
	}
	return json.Marshal(blockJSON{
		Hash:         b.Hash(),
		Header:       &b.Header,
		Transactions: txes,
	})
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (b *Block) UnmarshalJSON(data []byte) error {
	aux := blockJSON{Header: new(Header)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	b.Header = *aux.Header
	b.Header.Invalidate()
	if len(aux.Transactions) != 0 {
		b.Transactions = aux.Transactions
	}
	if b.Hash() != aux.Hash {
		return errors.New("block hash mismatch")
	}
	return b.Verify()
}
