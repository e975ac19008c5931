// internal/transient/store.go
package transient

import (
	"context"
	"sync"
	"time"

	"github.com/bigdiamond/atelier-backend/internal/clock"
)

// Store is a key/value store whose entries expire after a TTL.
type Store interface {
	// Get returns ok=false for absent and expired keys.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Increment adds one to a counter. A new or expired counter starts at 1
	// and expires after ttl; later increments keep the original expiry.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type memoryEntry struct {
	value     []byte
	counter   int64
	expiresAt time.Time
}

type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clock   clock.Clock
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		clock:   clk,
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.live(key)
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	s.mu.Lock()
	s.entries[key] = memoryEntry{value: stored, expiresAt: s.clock.Now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.live(key)
	if !ok {
		entry = memoryEntry{expiresAt: s.clock.Now().Add(ttl)}
	}
	entry.counter++
	entry.value = []byte(formatCounter(entry.counter))
	s.entries[key] = entry
	return entry.counter, nil
}

// live must be called with s.mu held.
func (s *MemoryStore) live(key string) (memoryEntry, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !s.clock.Now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}
