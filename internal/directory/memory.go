package directory

import (
	"context"
	"sync"

	"concur/pkg/platform/sentinel"
)

// Memory is an in-memory Directory backed by a fixed set of collection
// points. Used in tests and for seed-file-backed development runs.
type Memory struct {
	mu     sync.RWMutex
	points map[string]CollectionPoint
}

// NewMemory builds a Memory directory from the given collection points.
func NewMemory(points ...CollectionPoint) *Memory {
	m := &Memory{points: make(map[string]CollectionPoint, len(points))}
	for _, cp := range points {
		m.points[cp.ID] = cp
	}
	return m
}

// Put adds or replaces a collection point.
func (m *Memory) Put(cp CollectionPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[cp.ID] = cp
}

func (m *Memory) CollectionPoint(_ context.Context, cpID, applicationID string) (*CollectionPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp, ok := m.points[cpID]
	if !ok || cp.ApplicationID != applicationID {
		return nil, sentinel.ErrNotFound
	}
	out := cp
	return &out, nil
}
