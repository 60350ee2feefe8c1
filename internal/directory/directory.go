// Package directory exposes the collection-point directory: the external
// source of truth for which data elements and purposes a collection surface
// declares, and the retention/expiry policy attached to each.
package directory

import "context"

// Directory resolves collection points. Implementations return
// sentinel.ErrNotFound when the (collection point, application) pair does
// not resolve.
type Directory interface {
	CollectionPoint(ctx context.Context, cpID, applicationID string) (*CollectionPoint, error)
}
