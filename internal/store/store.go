// Package store contains the core logic for the in-memory key-value store.
// It is designed to be thread-safe for concurrent access.
package store

import (
	"sync"
	"sync/atomic"
)

// DefaultShards is the shard count used when none is configured.
const DefaultShards = 32

// shard owns a disjoint slice of the key space behind its own lock.
type shard struct {
	mu      sync.RWMutex
	entries map[int64]Entry
}

// Store is a thread-safe in-memory key-value store with per-entry versions.
// Keys are spread over a fixed set of shards; every operation runs its
// check-then-act sequence under the lock of the key's shard, so operations
// on the same key are linearized while unrelated keys proceed in parallel.
type Store struct {
	shards []*shard
	mask   uint64
	rev    atomic.Int64
}

// NewStore initializes and returns a new empty Store with DefaultShards shards.
func NewStore() *Store {
	return NewStoreWithShards(DefaultShards)
}

// NewStoreWithShards returns an empty Store. n is rounded up to a power of two.
func NewStoreWithShards(n int) *Store {
	size := 1
	for size < n {
		size <<= 1
	}
	s := &Store{
		shards: make([]*shard, size),
		mask:   uint64(size - 1),
	}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[int64]Entry)}
	}
	return s
}

// shardFor maps a key to its shard with a splitmix64 finalizer so that
// sequential keys do not pile onto neighbouring shards.
func (s *Store) shardFor(key int64) *shard {
	h := uint64(key)
	h ^= h >> 30
	h *= 0xbf58476d1ce4e5b9
	h ^= h >> 27
	h *= 0x94d049bb133111eb
	h ^= h >> 31
	return s.shards[h&s.mask]
}

// Insert creates a new entry at version 1.
// If the key is already present the stored entry is left untouched and a
// *ConflictError wrapping ErrKeyAlreadyExists is returned.
func (s *Store) Insert(key, timestamp int64, data []byte) (Entry, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if current, ok := sh.entries[key]; ok {
		return Entry{}, &ConflictError{Key: key, Current: current.clone(), Err: ErrKeyAlreadyExists}
	}
	e := Entry{Version: 1, Revision: s.rev.Add(1), Timestamp: timestamp, Data: data}.clone()
	sh.entries[key] = e
	return e.clone(), nil
}

// Get returns the entry stored under key, or ErrKeyNotFound.
func (s *Store) Get(key int64) (Entry, error) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	e, ok := sh.entries[key]
	if !ok {
		return Entry{}, ErrKeyNotFound
	}
	return e.clone(), nil
}

// CompareAndUpdate replaces the entry under key only if its current version
// equals expected. On success the new entry carries version expected+1.
// A stale version yields a *ConflictError wrapping ErrVersionConflict.
func (s *Store) CompareAndUpdate(key, expected, timestamp int64, data []byte) (Entry, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	current, ok := sh.entries[key]
	if !ok {
		return Entry{}, ErrKeyNotFound
	}
	if current.Version != expected {
		return Entry{}, &ConflictError{Key: key, Current: current.clone(), Err: ErrVersionConflict}
	}
	e := Entry{Version: current.Version + 1, Revision: s.rev.Add(1), Timestamp: timestamp, Data: data}.clone()
	sh.entries[key] = e
	return e.clone(), nil
}

// Delete removes the entry under key regardless of its version. It returns
// the removed entry stamped with the revision of the delete itself.
func (s *Store) Delete(key int64) (Entry, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	removed, ok := sh.entries[key]
	if !ok {
		return Entry{}, ErrKeyNotFound
	}
	delete(sh.entries, key)
	removed.Revision = s.rev.Add(1)
	return removed, nil
}

// Revision returns the revision of the most recent mutation.
func (s *Store) Revision() int64 {
	return s.rev.Load()
}

// Len returns the number of stored keys.
// Shards are counted one after another, so the total is only exact when no
// writes run concurrently.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

// Snapshot returns a deep copy of every entry.
func (s *Store) Snapshot() map[int64]Entry {
	out := make(map[int64]Entry)
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k, e := range sh.entries {
			out[k] = e.clone()
		}
		sh.mu.RUnlock()
	}
	return out
}

// Restore discards the current contents and loads entries in their place.
// The revision counter is raised to the highest restored revision and never
// moves backwards.
func (s *Store) Restore(entries map[int64]Entry) {
	for _, sh := range s.shards {
		sh.mu.Lock()
	}
	defer func() {
		for _, sh := range s.shards {
			sh.mu.Unlock()
		}
	}()

	for _, sh := range s.shards {
		sh.entries = make(map[int64]Entry)
	}
	var maxRev int64
	for k, e := range entries {
		s.shardFor(k).entries[k] = e.clone()
		if e.Revision > maxRev {
			maxRev = e.Revision
		}
	}
	if maxRev > s.rev.Load() {
		s.rev.Store(maxRev)
	}
}
