package storage

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"github.com/nspcc-dev/pesto-go/pkg/core/storage/dbconfig"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// KeyPrefix constants.
const (
	// DataBlock is used for trimmed blocks stored by hash.
	DataBlock KeyPrefix = 0x01
	// DataTransaction is used for transactions stored by hash along with
	// their execution results.
	DataTransaction KeyPrefix = 0x02
	// STContract is used for deployed contract states.
	STContract KeyPrefix = 0x50
	// STNonce is used for account nonces.
	STNonce KeyPrefix = 0x52
	// STStorage is used for contract storage items, keys are prefixed with
	// the contract address.
	STStorage KeyPrefix = 0x70
	// IXBlockHash maps block indexes to block hashes.
	IXBlockHash     KeyPrefix = 0x80
	SYSCurrentBlock KeyPrefix = 0xc0
	SYSVersion      KeyPrefix = 0xf0
)

const (
	// MaxStorageKeyLen is the maximum length of a key for storage items.
	MaxStorageKeyLen = 64
	// MaxStorageValueLen is the maximum length of a value for storage items.
	// It is set to be the maximum value for uint16.
	MaxStorageValueLen = 65535
)

// SeekRange represents options for Store.Seek operation.
type SeekRange struct {
	// Prefix denotes the Seek's lookup key.
	// Empty Prefix means seeking through all keys in the DB.
	Prefix []byte
	// Start denotes value appended to the Prefix to start Seek from.
	// Seeking starting from some key includes this key to the result;
	// if no matching key was found then next suitable key is picked up.
	// Empty Start means seeking through all keys in the DB with matching
	// Prefix.
	Start []byte
	// Backwards denotes whether Seek direction should be reversed, i.e.
	// whether seeking should be performed in a descending way.
	// Backwards can be safely combined with Prefix and Start.
	Backwards bool
}

// ErrKeyNotFound is an error returned by Store implementations
// when a certain key is not found.
var ErrKeyNotFound = errors.New("key not found")

type (
	// Store is the underlying KV backend for the blockchain data, it's
	// not intended to be used directly, you wrap it with some memory cache
	// layer most of the time.
	Store interface {
		Get([]byte) ([]byte, error)
		// PutChangeSet allows to push prepared changeset to the Store. Nil
		// values mean deletion.
		PutChangeSet(puts map[string][]byte, stor map[string][]byte) error
		// Seek can guarantee that provided key (k) and value (v) are the only valid until the next call to f.
		// Seek continues iteration until false is returned from f.
		// Key and value slices should not be modified.
		// Seek can guarantee that key-value items are sorted by key in ascending way.
		Seek(rng SeekRange, f func(k, v []byte) bool)
		// SeekGC is similar to Seek, but the function should return true if current
		// KV pair should be kept and false if it's to be deleted; there is no way to
		// do an early exit here. SeekGC only works with the current Store, it won't
		// go down to layers below and it takes a full write lock, so use it carefully.
		SeekGC(rng SeekRange, keep func(k, v []byte) bool) error
		Close() error
	}

	// KeyPrefix is a constant byte added as a prefix for each key
	// stored.
	KeyPrefix uint8

	// KeyValue represents key-value pair.
	KeyValue struct {
		Key   []byte
		Value []byte
	}
)

// Bytes returns the bytes representation of KeyPrefix.
func (k KeyPrefix) Bytes() []byte {
	return []byte{byte(k)}
}

func seekRangeToPrefixes(sr SeekRange) *util.Range {
	var (
		rang  *util.Range
		start = make([]byte, len(sr.Prefix)+len(sr.Start))
	)
	copy(start, sr.Prefix)
	copy(start[len(sr.Prefix):], sr.Start)

	if !sr.Backwards {
		rang = util.BytesPrefix(sr.Prefix)
		rang.Start = start
	} else {
		rang = util.BytesPrefix(start)
		rang.Start = sr.Prefix
	}
	return rang
}

// getCmpFunc returns a key comparator for the given seek direction.
func getCmpFunc(backwards bool) func(a, b []byte) int {
	if !backwards {
		return bytes.Compare
	}
	return func(a, b []byte) int {
		return -bytes.Compare(a, b)
	}
}

// filterKVs picks the pairs from m matching rng and sorts them in the seek
// order. Nil values (deletion markers) are only included if withDeleted is set.
func filterKVs(m map[string][]byte, rng SeekRange, withDeleted bool) []KeyValue {
	var (
		full = slices.Concat(rng.Prefix, rng.Start)
		res  []KeyValue
	)
	for k, v := range m {
		key := []byte(k)
		if v == nil && !withDeleted || !bytes.HasPrefix(key, rng.Prefix) {
			continue
		}
		if len(rng.Start) != 0 {
			c := bytes.Compare(key, full)
			if !rng.Backwards && c < 0 || rng.Backwards && c > 0 && !bytes.HasPrefix(key, full) {
				continue
			}
		}
		res = append(res, KeyValue{Key: key, Value: v})
	}
	cmp := getCmpFunc(rng.Backwards)
	slices.SortFunc(res, func(a, b KeyValue) int {
		return cmp(a.Key, b.Key)
	})
	return res
}

// NewStore creates storage with preselected in configuration database type.
func NewStore(cfg dbconfig.DBConfiguration) (Store, error) {
	var store Store
	var err error
	switch cfg.Type {
	case dbconfig.LevelDB:
		store, err = NewLevelDBStore(cfg.LevelDBOptions)
	case dbconfig.InMemoryDB:
		store = NewMemoryStore()
	case dbconfig.BoltDB:
		store, err = NewBoltDBStore(cfg.BoltDBOptions)
	default:
		return nil, fmt.Errorf("unknown storage: %s", cfg.Type)
	}
	return store, err
}
