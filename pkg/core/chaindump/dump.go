// Package chaindump implements chain export to a stream of blocks and chain
// restoration from it.
package chaindump

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/pesto-go/pkg/core/block"
	"github.com/nspcc-dev/pesto-go/pkg/io"
)

// DumperRestorer is an interface to get/add blocks from/to.
type DumperRestorer interface {
	GetBlock(hash common.Hash) (*block.Block, error)
	GetHeaderHash(index uint32) (common.Hash, error)
	RestoreBlock(b *block.Block) error
}

// Dump writes count blocks from start to the provided writer.
// Note: header needs to be written separately by a client.
func Dump(bc DumperRestorer, w *io.BinWriter, start, count uint32) error {
	for i := start; i < start+count; i++ {
		bh, err := bc.GetHeaderHash(i)
		if err != nil {
			return err
		}
		b, err := bc.GetBlock(bh)
		if err != nil {
			return err
		}
		buf := io.NewBufBinWriter()
		b.EncodeBinary(buf.BinWriter)
		bytes := buf.Bytes()
		w.WriteU32LE(uint32(len(bytes)))
		w.WriteBytes(bytes)
		if w.Err != nil {
			return w.Err
		}
	}
	return nil
}

// Restore restores blocks from the provided reader. The genesis block is
// checked against the chain one instead of being added.
// f is called after addition of every block.
func Restore(bc DumperRestorer, r *io.BinReader, skip, count uint32, f func(b *block.Block) error) error {
	readBlock := func(r *io.BinReader) ([]byte, error) {
		var size = r.ReadU32LE()
		buf := make([]byte, size)
		r.ReadBytes(buf)
		return buf, r.Err
	}

	i := uint32(0)
	for ; i < skip; i++ {
		_, err := readBlock(r)
		if err != nil {
			return err
		}
	}

	for ; i < skip+count; i++ {
		buf, err := readBlock(r)
		if err != nil {
			return err
		}
		b := new(block.Block)
		r := io.NewBinReaderFromBuf(buf)
		b.DecodeBinary(r)
		if r.Err != nil {
			return r.Err
		}
		if b.Index == 0 {
			genesis, err := bc.GetHeaderHash(0)
			if err != nil {
				return err
			}
			if genesis != b.Hash() {
				return fmt.Errorf("genesis block mismatch: %s vs %s", b.Hash(), genesis)
			}
		} else {
			err = bc.RestoreBlock(b)
			if err != nil {
				return fmt.Errorf("failed to add block %d: %w", i, err)
			}
		}
		if f != nil {
			if err := f(b); err != nil {
				return err
			}
		}
	}
	return nil
}
