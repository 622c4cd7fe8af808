package domain

import "context"

// Resolver turns a free-text address into coordinates. A nil result with a
// nil error means the address is currently unresolvable; callers skip marker
// placement rather than fail.
type Resolver interface {
	Resolve(ctx context.Context, address string) (*Coordinates, error)
}

// Marker is the view handed to a projection: a record together with its
// resolved coordinates. Projections never receive an unresolved record.
type Marker struct {
	Key    string
	Record ProviderRecord
	Coord  Coordinates
}

// MarkerProjection renders visual pins. UpsertMarker replaces any existing
// marker for the same key, so the projection never holds duplicates or stale
// coordinates. FitBounds is invoked only when records are genuinely added,
// never on modification or removal.
type MarkerProjection interface {
	UpsertMarker(m Marker)
	RemoveMarker(key string)
	FitBounds()
}
