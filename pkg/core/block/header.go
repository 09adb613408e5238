package block

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/nspcc-dev/pesto-go/pkg/io"
)

// Header holds the base info of a block.
type Header struct {
	// Index is the height of the block.
	Index uint32 `json:"index"`
	// PrevHash is the hash of the previous block.
	PrevHash common.Hash `json:"previousblockhash"`
	// Timestamp is a millisecond-precision Unix time of block creation.
	Timestamp uint64 `json:"time"`
	// TxRoot is the hash of the block transaction hashes.
	TxRoot common.Hash `json:"txroot"`
	// Bloom filters notifications emitted in the block.
	Bloom Bloom `json:"bloom"`

	hash   common.Hash
	hashed bool
}

// Hash returns the hash of the block header.
func (h *Header) Hash() common.Hash {
	if !h.hashed {
		buf := io.NewBufBinWriter()
		h.EncodeBinary(buf.BinWriter)
		h.hash = crypto.Keccak256Hash(buf.Bytes())
		h.hashed = true
	}
	return h.hash
}

// Invalidate resets cached hash.
func (h *Header) Invalidate() {
	h.hashed = false
}

// EncodeBinary implements the io.Serializable interface.
func (h *Header) EncodeBinary(w *io.BinWriter) {
	w.WriteU32LE(h.Index)
	w.WriteBytes(h.PrevHash[:])
	w.WriteU64LE(h.Timestamp)
	w.WriteBytes(h.TxRoot[:])
	w.WriteBytes(h.Bloom[:])
}

// DecodeBinary implements the io.Serializable interface.
func (h *Header) DecodeBinary(r *io.BinReader) {
	h.Index = r.ReadU32LE()
	r.ReadBytes(h.PrevHash[:])
	h.Timestamp = r.ReadU64LE()
	r.ReadBytes(h.TxRoot[:])
	r.ReadBytes(h.Bloom[:])
	h.hashed = false
}
