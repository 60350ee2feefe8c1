package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, caches, and directory
// adapters return these (optionally wrapped) so the lifecycle engine can
// translate them into coded domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: row, key, or collection point does not exist
// - ErrConflict: concurrent writer won; the caller's view is stale
// - ErrInvalidState: row is in the wrong state for the requested transition
// - ErrUnavailable: backing service temporarily unreachable
//
// For validation errors (bad input, undeclared references), use
// pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
