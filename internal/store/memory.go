package store

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero = never
}

// MemoryStore is a concurrency-safe in-memory key/value store.
type MemoryStore struct {
	mu sync.RWMutex

	data map[string]memoryEntry

	// retention configuration
	maxEntries int // 0 = unlimited
	now        func() time.Time
}

// NewMemoryStore creates a new MemoryStore.
// If maxEntries is <= 0, it is treated as unlimited.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]memoryEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the value stored under key. Entries past their store-level
// TTL are reported as absent.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[key]
	if !ok || s.expired(e) {
		return "", false, nil
	}
	return e.value, true, nil
}

// Set stores value under key, replacing any previous value. A ttl <= 0
// keeps the entry until it is deleted or evicted.
func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.data[key] = e

	// Enforce retention by count.
	if s.maxEntries > 0 && len(s.data) > s.maxEntries {
		s.evict(key)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *MemoryStore) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}

// evict drops expired entries, then the entry closest to expiry, until the
// store is back within maxEntries. keep is never evicted.
func (s *MemoryStore) evict(keep string) {
	for k, e := range s.data {
		if k != keep && s.expired(e) {
			delete(s.data, k)
		}
	}
	for len(s.data) > s.maxEntries {
		var (
			victim string
			found  bool
		)
		for k, e := range s.data {
			if k == keep {
				continue
			}
			if !found || expiresBefore(e, s.data[victim]) {
				victim, found = k, true
			}
		}
		if !found {
			return
		}
		delete(s.data, victim)
	}
}

// expiresBefore orders entries by expiry; entries without one sort last.
func expiresBefore(a, b memoryEntry) bool {
	if a.expiresAt.IsZero() {
		return false
	}
	return b.expiresAt.IsZero() || a.expiresAt.Before(b.expiresAt)
}
