package block

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/twmb/murmur3"
)

const (
	// BloomByteLength is the size of block notification filter.
	BloomByteLength = 256

	bloomBits   = BloomByteLength * 8
	bloomHashes = 3
)

// Bloom is a filter of contracts and event names of notifications emitted by
// block transactions. False positives are possible, false negatives are not.
type Bloom [BloomByteLength]byte

// Add puts data into the filter.
func (b *Bloom) Add(data []byte) {
	for i := range bloomHashes {
		n := murmur3.SeedSum32(uint32(i), data) % bloomBits
		b[n/8] |= 1 << (n % 8)
	}
}

// Test checks whether data may be in the filter.
func (b *Bloom) Test(data []byte) bool {
	for i := range bloomHashes {
		n := murmur3.SeedSum32(uint32(i), data) % bloomBits
		if b[n/8]&(1<<(n%8)) == 0 {
			return false
		}
	}
	return true
}

// AddNotification puts notification emitter and event name into the filter.
func (b *Bloom) AddNotification(contract common.Address, name string) {
	b.Add(contract[:])
	b.Add([]byte(name))
}

// MayContain checks whether a notification matching the given contract and
// name may be emitted in the block. Nil contract or empty name match anything.
func (b *Bloom) MayContain(contract *common.Address, name string) bool {
	if contract != nil && !b.Test(contract[:]) {
		return false
	}
	return name == "" || b.Test([]byte(name))
}

// MarshalJSON implements the json.Marshaler interface.
func (b Bloom) MarshalJSON() ([]byte, error) {
	return json.Marshal(hexutil.Bytes(b[:]))
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (b *Bloom) UnmarshalJSON(data []byte) error {
	var raw hexutil.Bytes
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != BloomByteLength {
		return fmt.Errorf("invalid bloom length %d", len(raw))
	}
	copy(b[:], raw)
	return nil
}
