package store

import (
	"context"
	"sync"

	"concur/internal/consent/models"
	"concur/pkg/platform/sentinel"
)

// Memory keeps artifact versions per pair in insertion order. Values are
// cloned on the way in and out so callers never alias stored state.
type Memory struct {
	mu       sync.RWMutex
	versions map[string][]*models.ConsentArtifact
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{versions: make(map[string][]*models.ConsentArtifact)}
}

func pairKey(principalID, fiduciaryID string) string {
	return principalID + "|" + fiduciaryID
}

func (m *Memory) GetActive(_ context.Context, principalID, fiduciaryID string) (*models.ConsentArtifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.versions[pairKey(principalID, fiduciaryID)] {
		if a.Active {
			return a.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (m *Memory) ListVersions(_ context.Context, principalID, fiduciaryID string) ([]*models.ConsentArtifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored := m.versions[pairKey(principalID, fiduciaryID)]
	out := make([]*models.ConsentArtifact, len(stored))
	for i, a := range stored {
		out[i] = a.Clone()
	}
	return out, nil
}

func (m *Memory) Upsert(_ context.Context, artifact *models.ConsentArtifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey(artifact.PrincipalID, artifact.FiduciaryID)
	for i, a := range m.versions[key] {
		if a.Active {
			m.versions[key][i] = artifact.Clone()
			return nil
		}
	}
	m.versions[key] = append(m.versions[key], artifact.Clone())
	return nil
}

func (m *Memory) Fork(_ context.Context, prevAgreementID string, next *models.ConsentArtifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey(next.PrincipalID, next.FiduciaryID)
	for _, a := range m.versions[key] {
		if a.AgreementID == prevAgreementID {
			if !a.Active {
				return sentinel.ErrConflict
			}
			a.Active = false
			m.versions[key] = append(m.versions[key], next.Clone())
			return nil
		}
	}
	return sentinel.ErrNotFound
}
