package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"concur/internal/consent/models"
	"concur/internal/consent/store"
	"concur/pkg/platform/sentinel"
)

func artifactFixture(agreementID string, active bool) *models.ConsentArtifact {
	return &models.ConsentArtifact{
		PrincipalID:       "dp-1",
		FiduciaryID:       "df-1",
		CollectionPointID: "cp-1",
		AgreementID:       agreementID,
		AgreementHash:     "hash-" + agreementID,
		CreatedAt:         time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Active:            active,
		Scope: []models.ConsentScopeEntry{
			{
				DataElementID: "email",
				Records: []models.ConsentRecord{
					{PurposeID: "marketing", Granted: true, Processors: []string{"acme"}},
				},
			},
		},
	}
}

func TestMemoryGetActive(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	_, err := s.GetActive(ctx, "dp-1", "df-1")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, s.Upsert(ctx, artifactFixture("agr-1", true)))

	got, err := s.GetActive(ctx, "dp-1", "df-1")
	require.NoError(t, err)
	assert.Equal(t, "agr-1", got.AgreementID)
	assert.True(t, got.Active)

	_, err = s.GetActive(ctx, "dp-1", "df-other")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMemoryUpsertReplacesActiveInPlace(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	require.NoError(t, s.Upsert(ctx, artifactFixture("agr-1", true)))
	require.NoError(t, s.Upsert(ctx, artifactFixture("agr-2", true)))

	got, err := s.GetActive(ctx, "dp-1", "df-1")
	require.NoError(t, err)
	assert.Equal(t, "agr-2", got.AgreementID)

	versions, err := s.ListVersions(ctx, "dp-1", "df-1")
	require.NoError(t, err)
	assert.Len(t, versions, 1, "upsert must not grow the version history")
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	original := artifactFixture("agr-1", true)
	require.NoError(t, s.Upsert(ctx, original))
	original.Scope[0].Records[0].Granted = false

	got, err := s.GetActive(ctx, "dp-1", "df-1")
	require.NoError(t, err)
	assert.True(t, got.Scope[0].Records[0].Granted, "stored state must not alias caller memory")

	got.AgreementHash = "mutated"
	again, err := s.GetActive(ctx, "dp-1", "df-1")
	require.NoError(t, err)
	assert.Equal(t, "hash-agr-1", again.AgreementHash)
}

func TestMemoryFork(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	require.NoError(t, s.Upsert(ctx, artifactFixture("agr-1", true)))

	next := artifactFixture("agr-2", true)
	next.LinkedAgreement = "agr-1"
	require.NoError(t, s.Fork(ctx, "agr-1", next))

	got, err := s.GetActive(ctx, "dp-1", "df-1")
	require.NoError(t, err)
	assert.Equal(t, "agr-2", got.AgreementID)
	assert.Equal(t, "agr-1", got.LinkedAgreement)

	versions, err := s.ListVersions(ctx, "dp-1", "df-1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.False(t, versions[0].Active)
	assert.True(t, versions[1].Active)
}

func TestMemoryForkUnknownPredecessor(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	err := s.Fork(ctx, "agr-missing", artifactFixture("agr-2", true))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMemoryForkDemotedPredecessorConflicts(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	require.NoError(t, s.Upsert(ctx, artifactFixture("agr-1", true)))
	require.NoError(t, s.Fork(ctx, "agr-1", artifactFixture("agr-2", true)))

	err := s.Fork(ctx, "agr-1", artifactFixture("agr-3", true))
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestMemoryForkConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	require.NoError(t, s.Upsert(ctx, artifactFixture("agr-1", true)))

	const attempts = 20
	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			next := artifactFixture("agr-next-"+string(rune('a'+n)), true)
			if err := s.Fork(ctx, "agr-1", next); err == nil {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "exactly one fork may demote the predecessor")

	versions, err := s.ListVersions(ctx, "dp-1", "df-1")
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}
