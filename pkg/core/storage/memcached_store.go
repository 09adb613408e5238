package storage

import (
	"bytes"
	"sync"
)

// MemCachedStore is a wrapper around persistent store that caches all changes
// being made for them to be later flushed in one batch.
type MemCachedStore struct {
	MemoryStore

	// plock protects Persist from double entrance.
	plock sync.Mutex
	// Persistent Store.
	ps Store
}

// NewMemCachedStore creates a new MemCachedStore object.
func NewMemCachedStore(lower Store) *MemCachedStore {
	return &MemCachedStore{
		MemoryStore: *NewMemoryStore(),
		ps:          lower,
	}
}

// Get implements the Store interface.
func (s *MemCachedStore) Get(key []byte) ([]byte, error) {
	s.mut.RLock()
	defer s.mut.RUnlock()
	m := s.chooseMap(key)
	if val, ok := m[string(key)]; ok {
		if val == nil {
			return nil, ErrKeyNotFound
		}
		return val, nil
	}
	return s.ps.Get(key)
}

// Put puts new KV pair into the store.
func (s *MemCachedStore) Put(key, value []byte) {
	s.mut.Lock()
	s.chooseMap(key)[string(key)] = value
	s.mut.Unlock()
}

// Delete drops KV pair from the store. Never returns an error.
func (s *MemCachedStore) Delete(key []byte) {
	s.mut.Lock()
	s.chooseMap(key)[string(key)] = nil
	s.mut.Unlock()
}

// PutChangeSet implements the Store interface, deletions are kept as markers
// until the next Persist.
func (s *MemCachedStore) PutChangeSet(puts map[string][]byte, stores map[string][]byte) error {
	s.mut.Lock()
	for _, m := range []map[string][]byte{puts, stores} {
		for k, v := range m {
			s.chooseMap([]byte(k))[k] = v
		}
	}
	s.mut.Unlock()
	return nil
}

// Seek implements the Store interface. Cached changes take precedence over
// the data of the lower Store.
func (s *MemCachedStore) Seek(rng SeekRange, f func(k, v []byte) bool) {
	s.mut.RLock()
	defer s.mut.RUnlock()

	var (
		cmp  = getCmpFunc(rng.Backwards)
		mem  = s.list(rng, true)
		i    int
		done bool
		emit = func(kv KeyValue) bool {
			if kv.Value == nil {
				return true
			}
			done = !f(kv.Key, kv.Value)
			return !done
		}
	)
	s.ps.Seek(rng, func(k, v []byte) bool {
		for ; i < len(mem) && cmp(mem[i].Key, k) < 0; i++ {
			if !emit(mem[i]) {
				return false
			}
		}
		if i < len(mem) && bytes.Equal(mem[i].Key, k) {
			i++
			return emit(mem[i-1])
		}
		return emit(KeyValue{Key: k, Value: v})
	})
	for ; !done && i < len(mem); i++ {
		emit(mem[i])
	}
}

// Persist flushes all the changes made into the lower Store and returns the
// number of keys flushed.
func (s *MemCachedStore) Persist() (int, error) {
	s.plock.Lock()
	defer s.plock.Unlock()
	s.mut.Lock()
	defer s.mut.Unlock()

	keys := len(s.mem) + len(s.stor)
	if keys == 0 {
		return 0, nil
	}
	err := s.ps.PutChangeSet(s.mem, s.stor)
	if err != nil {
		return 0, err
	}
	s.mem = make(map[string][]byte)
	s.stor = make(map[string][]byte)
	return keys, nil
}

// Close implements Store interface, clears up memory and closes the lower layer
// Store.
func (s *MemCachedStore) Close() error {
	// It's always successful.
	_ = s.MemoryStore.Close()
	return s.ps.Close()
}
