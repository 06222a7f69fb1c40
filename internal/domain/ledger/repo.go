package ledger

import (
	"context"

	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
)

// ProductSums is the element-wise sum of every ledger counter for one
// product. The aggregate inventory is rederived from this.
type ProductSums struct {
	ProductID id.ID          `db:"product_id"`
	OnHand    types.Quantity `db:"on_hand"`
	OnShelf   types.Quantity `db:"on_shelf"`
	Reserved  types.Quantity `db:"reserved"`
}

// Repository defines persistence for ledgers.
type Repository interface {
	Create(ctx context.Context, l *Ledger) error

	GetByBatch(ctx context.Context, batchID id.ID) (*Ledger, error)

	// GetByBatchForUpdate retrieves a ledger with a row lock. Every mutating
	// operation serializes through this: two concurrent operations against
	// the same ledger must never interleave their read-modify-write.
	GetByBatchForUpdate(ctx context.Context, batchID id.ID) (*Ledger, error)

	// Update persists counters with an optimistic version check on top of
	// the row lock. Returns OperationConflict when the stored version moved.
	Update(ctx context.Context, l *Ledger) error

	// Delete removes a ledger. Callers must verify IsEmpty first.
	Delete(ctx context.Context, ledgerID id.ID) error

	ListByProduct(ctx context.Context, productID id.ID) ([]Ledger, error)

	// SumByProduct computes the counter sums the aggregate is derived from.
	SumByProduct(ctx context.Context, productID id.ID) (ProductSums, error)

	// ListProductIDs returns every product that has at least one ledger.
	// The reconciliation job walks this.
	ListProductIDs(ctx context.Context) ([]id.ID, error)

	// TotalAtLocation sums total quantity over ledgers assigned to a
	// location, excluding excludeBatch when non-nil. Satisfies
	// location.OccupancyReader.
	TotalAtLocation(ctx context.Context, locationID id.ID, excludeBatch *id.ID) (types.Quantity, error)
}
