// Package models defines the consent artifact and its surrounding types.
// The artifact is the unit of durability: one immutable, hash-stamped
// version of a data principal's consent toward one data fiduciary.
package models

import "time"

// ConsentRecord captures the principal's decision for one purpose under one
// data element, together with the derived expiry and retention windows.
type ConsentRecord struct {
	PurposeID   string     `json:"purpose_id"`
	Granted     bool       `json:"consent_status"`
	Shared      bool       `json:"shared"`
	Processors  []string   `json:"data_processors"`
	CrossBorder bool       `json:"cross_border"`
	ConsentedAt time.Time  `json:"consent_timestamp"`
	ExpiresAt   time.Time  `json:"expiry_date"`
	RetainUntil time.Time  `json:"retention_date"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

// ConsentScopeEntry groups the consent records submitted for one data
// element, in submission order.
type ConsentScopeEntry struct {
	DataElementID string          `json:"data_element"`
	Records       []ConsentRecord `json:"consents"`
}

// ConsentArtifact is one version of the consent relationship between a
// principal and a fiduciary. At most one version per pair is active; the
// rest are immutable history chained through LinkedAgreement.
type ConsentArtifact struct {
	PrincipalID         string              `json:"dp_id"`
	FiduciaryID         string              `json:"df_id"`
	ApplicationID       string              `json:"application_id"`
	CollectionPointID   string              `json:"cp_id"`
	CollectionPointName string              `json:"cp_name"`
	Language            string              `json:"consent_language"`
	LinkedAgreement     string              `json:"linked_agreement,omitempty"`
	AgreementID         string              `json:"agreement_id"`
	AgreementHash       string              `json:"agreement_hash"`
	CreatedAt           time.Time           `json:"created_at"`
	Scope               []ConsentScopeEntry `json:"consent_scope"`
	Active              bool                `json:"active"`
}

// Record returns the consent record for purposeID wherever it sits in the
// scope, along with its enclosing element id.
func (a *ConsentArtifact) Record(purposeID string) (elementID string, rec *ConsentRecord, ok bool) {
	for i := range a.Scope {
		for j := range a.Scope[i].Records {
			if a.Scope[i].Records[j].PurposeID == purposeID {
				return a.Scope[i].DataElementID, &a.Scope[i].Records[j], true
			}
		}
	}
	return "", nil, false
}

// Clone deep-copies the artifact. Lifecycle transitions build a new value
// and replace the stored artifact wholesale rather than mutating shared
// state in place.
func (a *ConsentArtifact) Clone() *ConsentArtifact {
	out := *a
	out.Scope = make([]ConsentScopeEntry, len(a.Scope))
	for i, entry := range a.Scope {
		records := make([]ConsentRecord, len(entry.Records))
		for j, rec := range entry.Records {
			if rec.RevokedAt != nil {
				ts := *rec.RevokedAt
				rec.RevokedAt = &ts
			}
			if rec.Processors != nil {
				rec.Processors = append([]string(nil), rec.Processors...)
			}
			records[j] = rec
		}
		out.Scope[i] = ConsentScopeEntry{DataElementID: entry.DataElementID, Records: records}
	}
	return &out
}

// PurposeView is one display-ready consent descriptor inside a projection.
type PurposeView struct {
	PurposeDescription string     `json:"purpose_description"`
	ConsentedAt        time.Time  `json:"consent_timestamp"`
	ExpiresAt          time.Time  `json:"expiry_date"`
	RetainUntil        time.Time  `json:"retention_date"`
	AgreementID        string     `json:"agreement_id"`
	Granted            bool       `json:"consent_status"`
	RevokedAt          *time.Time `json:"revoked_at,omitempty"`
}

// Projection is the denormalized read model for one (principal, fiduciary)
// pair, keyed by data-element title.
type Projection map[string][]PurposeView

// Clone deep-copies the projection.
func (p Projection) Clone() Projection {
	if p == nil {
		return nil
	}
	out := make(Projection, len(p))
	for title, views := range p {
		copied := make([]PurposeView, len(views))
		for i, view := range views {
			if view.RevokedAt != nil {
				ts := *view.RevokedAt
				view.RevokedAt = &ts
			}
			copied[i] = view
		}
		out[title] = copied
	}
	return out
}
