// Package memory provides an in-process cache store for single-instance deployments and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kailas-cloud/neuromatch/internal/db"
)

// DefaultCapacity bounds the number of keys kept when no capacity is configured.
const DefaultCapacity = 10000

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
	seq       uint64    // identifies the write that produced the entry
}

// Store is a bounded LRU key-value store with per-key expiry checked on read.
// Expired keys are never swept in the background; they are dropped when read or evicted.
type Store struct {
	// mu orders writes against the removal of expired entries.
	mu     sync.Mutex
	cache  *lru.Cache[string, entry]
	now    func() time.Time
	seq    atomic.Uint64
	closed atomic.Bool
}

// NewStore creates an in-process store holding at most capacity keys.
func NewStore(capacity int) (*Store, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c, err := lru.New[string, entry](capacity)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Store{cache: c, now: time.Now}, nil
}

// WithClock overrides the time source (tests).
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Ping reports whether the store is open.
func (s *Store) Ping(_ context.Context) error {
	if s.closed.Load() {
		return &db.Error{Op: db.OpPing, Err: db.ErrClosed}
	}
	return nil
}

// WaitForReady returns immediately; an in-process store is always ready.
func (s *Store) WaitForReady(ctx context.Context, _ time.Duration) error {
	return s.Ping(ctx)
}

// Close drops all keys.
func (s *Store) Close() {
	s.closed.Store(true)
	s.cache.Purge()
}

// Get returns the value for key, treating expired entries as absent.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, &db.Error{Op: db.OpGet, Err: db.ErrClosed}
	}
	e, ok := s.cache.Get(key)
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		s.removeIfUnchanged(key, e.seq)
		return nil, db.ErrKeyNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores value without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL stores a copy of value that expires ttl after now. ttl <= 0 means no expiry.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if s.closed.Load() {
		return &db.Error{Op: db.OpSet, Err: db.ErrClosed}
	}
	e := entry{value: make([]byte, len(value))}
	copy(e.value, value)
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	e.seq = s.seq.Add(1)
	s.cache.Add(key, e)
	s.mu.Unlock()
	return nil
}

// removeIfUnchanged drops an expired entry unless a newer write replaced it.
func (s *Store) removeIfUnchanged(key string, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.cache.Peek(key); ok && cur.seq == seq {
		s.cache.Remove(key)
	}
}

// Del removes key.
func (s *Store) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(key)
	return nil
}

// Len returns the number of stored keys, including expired ones not yet read.
func (s *Store) Len() int {
	return s.cache.Len()
}
