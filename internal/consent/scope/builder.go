// Package scope validates a caller's consent submission against the
// collection-point directory and assembles the nested consent scope.
package scope

import (
	"context"
	"errors"
	"time"

	"concur/internal/consent/models"
	"concur/internal/directory"
	dErrors "concur/pkg/domain-errors"
	"concur/pkg/platform/sentinel"
)

// Mode selects how an undeclared purpose is handled. The two collaborating
// flows differ on purpose drift and must choose intentionally: submissions
// are validated strictly, while rebuild paths tolerate purposes the
// directory no longer declares.
type Mode int

const (
	// ModeStrict rejects any purpose the data element does not declare.
	ModeStrict Mode = iota
	// ModeApplyDefaults accepts undeclared purposes with caller-declared
	// flags and zero retention/expiry windows.
	ModeApplyDefaults
)

// Builder resolves submissions through the directory. It is pure: no writes,
// no retained state beyond the directory handle.
type Builder struct {
	dir directory.Directory
}

// NewBuilder constructs a Builder.
func NewBuilder(dir directory.Directory) *Builder {
	return &Builder{dir: dir}
}

// Build validates subs against the collection point and returns the resolved
// collection point together with the assembled scope entries. Submission
// order of elements, and of purposes within an element, is preserved.
func (b *Builder) Build(
	ctx context.Context,
	cpID, applicationID string,
	subs []models.ElementSubmission,
	now time.Time,
	mode Mode,
) (*directory.CollectionPoint, []models.ConsentScopeEntry, error) {
	cp, err := b.dir.CollectionPoint(ctx, cpID, applicationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.Newf(dErrors.CodeNotFound, "collection point %s not found", cpID)
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "resolve collection point")
	}

	entries := make([]models.ConsentScopeEntry, 0, len(subs))
	for _, sub := range subs {
		element, ok := cp.Element(sub.DataElementID)
		if !ok {
			return nil, nil, dErrors.Newf(dErrors.CodeInvalidReference,
				"data element %s is not declared on collection point %s", sub.DataElementID, cpID)
		}

		records := make([]models.ConsentRecord, 0, len(sub.Consents))
		for _, consent := range sub.Consents {
			purpose, declared := element.Purpose(consent.PurposeID)
			if !declared && mode == ModeStrict {
				return nil, nil, dErrors.Newf(dErrors.CodeInvalidReference,
					"purpose %s is not declared under data element %s", consent.PurposeID, sub.DataElementID)
			}

			rec := models.ConsentRecord{
				PurposeID:   consent.PurposeID,
				Granted:     consent.Granted,
				Shared:      consent.Shared,
				Processors:  consent.Processors,
				CrossBorder: consent.CrossBorder,
				ConsentedAt: now,
			}
			if declared {
				rec.ExpiresAt = windowEnd(now, element.ExpiryFor(purpose))
				rec.RetainUntil = windowEnd(now, element.RetentionFor(purpose))
			}
			records = append(records, rec)
		}

		entries = append(entries, models.ConsentScopeEntry{
			DataElementID: sub.DataElementID,
			Records:       records,
		})
	}
	return cp, entries, nil
}

// windowEnd derives a window boundary; a zero period yields the zero time,
// meaning no bound was declared.
func windowEnd(now time.Time, days int) time.Time {
	if days <= 0 {
		return time.Time{}
	}
	return now.AddDate(0, 0, days)
}
