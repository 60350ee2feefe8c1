// Package audit records consent lifecycle transitions for compliance review.
// Emission is best-effort: a failed publish is logged by the caller and never
// blocks or fails the transition it describes.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Action identifies the lifecycle transition an event describes.
type Action string

const (
	ActionSubmitted Action = "consent_submitted"
	ActionRevoked   Action = "consent_revoked"
	ActionRegranted Action = "consent_regranted"
)

// Event is one audit trail entry.
type Event struct {
	ID          string    `json:"id"`
	Action      Action    `json:"action"`
	PrincipalID string    `json:"principal_id"`
	FiduciaryID string    `json:"fiduciary_id"`
	AgreementID string    `json:"agreement_id"`
	PurposeID   string    `json:"purpose_id,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewEvent constructs an event with a fresh id.
func NewEvent(action Action, principalID, fiduciaryID, agreementID string) Event {
	return Event{
		ID:          uuid.NewString(),
		Action:      action,
		PrincipalID: principalID,
		FiduciaryID: fiduciaryID,
		AgreementID: agreementID,
		Timestamp:   time.Now().UTC(),
	}
}

// Sink receives audit events.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// MemoryStore keeps events in memory. Used by tests and as the dev sink.
type MemoryStore struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryStore constructs an empty in-memory sink.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Publish(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a snapshot of everything published so far.
func (s *MemoryStore) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}
