package location

import (
	"context"

	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
)

// Repository defines persistence for locations.
type Repository interface {
	Create(ctx context.Context, l *Location) error

	GetByID(ctx context.Context, locationID id.ID) (*Location, error)

	GetByCode(ctx context.Context, code string) (*Location, error)

	GetByName(ctx context.Context, name string) (*Location, error)

	// Update persists mutable fields with an optimistic version check.
	Update(ctx context.Context, l *Location) error

	// Delete removes a location. Callers must verify it is unoccupied first.
	Delete(ctx context.Context, locationID id.ID) error

	List(ctx context.Context, activeOnly bool) ([]Location, error)
}

// OccupancyReader reports how much ledger stock currently sits at a location.
// Implemented by the ledger repository; declared here to keep the dependency
// pointing from ledger to location only.
type OccupancyReader interface {
	// TotalAtLocation sums total quantity (onHand+onShelf) over every ledger
	// assigned to the location, excluding excludeBatch when non-nil.
	TotalAtLocation(ctx context.Context, locationID id.ID, excludeBatch *id.ID) (types.Quantity, error)
}
