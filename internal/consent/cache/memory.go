package cache

import (
	"context"
	"sync"
	"time"

	"concur/internal/consent/models"
)

type memoryEntry struct {
	projection models.Projection
	expiresAt  time.Time
}

// Memory is an in-process projection cache with per-entry expiry. Expired
// entries are dropped lazily on read.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	clock   func() time.Time
}

// MemoryOption configures a Memory cache.
type MemoryOption func(*Memory)

// WithMemoryClock sets the clock function for testability.
func WithMemoryClock(clock func() time.Time) MemoryOption {
	return func(m *Memory) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// NewMemory constructs an empty in-process cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]memoryEntry),
		clock:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

func (m *Memory) Get(_ context.Context, principalID, fiduciaryID string) (models.Projection, bool, error) {
	k := key(principalID, fiduciaryID)

	m.mu.RLock()
	entry, ok := m.entries[k]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if m.clock().After(entry.expiresAt) {
		m.mu.Lock()
		if cur, ok := m.entries[k]; ok && cur.expiresAt.Equal(entry.expiresAt) {
			delete(m.entries, k)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return entry.projection.Clone(), true, nil
}

func (m *Memory) Set(_ context.Context, principalID, fiduciaryID string, projection models.Projection, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key(principalID, fiduciaryID)] = memoryEntry{
		projection: projection.Clone(),
		expiresAt:  m.clock().Add(ttl),
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, principalID, fiduciaryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key(principalID, fiduciaryID))
	return nil
}
