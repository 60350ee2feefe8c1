package hash

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"concur/internal/consent/models"
)

func TestDigest_Deterministic(t *testing.T) {
	a := map[string]any{"b": 2, "a": 1, "nested": map[string]any{"y": "v", "x": "u"}}
	b := map[string]any{"nested": map[string]any{"x": "u", "y": "v"}, "a": 1, "b": 2}

	da, err := Digest(a)
	require.NoError(t, err)
	db, err := Digest(b)
	require.NoError(t, err)
	assert.Equal(t, da, db, "structurally equal documents must digest identically")
}

func TestDigest_Stable(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	artifact := &models.ConsentArtifact{
		PrincipalID:       "DP1",
		FiduciaryID:       "DF1",
		CollectionPointID: "cp1",
		CreatedAt:         ts,
		Scope: []models.ConsentScopeEntry{
			{
				DataElementID: "email",
				Records: []models.ConsentRecord{
					{PurposeID: "p1", Granted: true, ConsentedAt: ts, ExpiresAt: ts.AddDate(0, 0, 30)},
				},
			},
		},
		Active: true,
	}

	first, err := Digest(artifact)
	require.NoError(t, err)
	second, err := Digest(artifact)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64, "hex sha-256")
}

func TestDigest_SensitiveToContent(t *testing.T) {
	d1, err := Digest(map[string]any{"a": 1})
	require.NoError(t, err)
	d2, err := Digest(map[string]any{"a": 2})
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)
}

func TestNewAgreementID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewAgreementID()
		assert.NotEmpty(t, id)
		assert.False(t, seen[id], "agreement ids must be unique")
		seen[id] = true
	}
}
