package inventory

import (
	"context"

	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/ledger"
)

// Repository defines persistence for aggregates.
type Repository interface {
	GetByProduct(ctx context.Context, productID id.ID) (*Aggregate, error)

	// Upsert writes the recomputed rollup for a product, creating the row on
	// first sight. Reconciliation and live resync both funnel through this,
	// which is what makes them idempotent.
	Upsert(ctx context.Context, a *Aggregate) error

	// SetReorderPoint updates the only operator-editable field.
	SetReorderPoint(ctx context.Context, productID id.ID, point types.Quantity) error

	// ListNeedingReorder returns aggregates with available <= reorder point.
	ListNeedingReorder(ctx context.Context) ([]Aggregate, error)

	List(ctx context.Context, limit, offset int) ([]Aggregate, error)
}

// LedgerSummer provides the counter sums an aggregate derives from.
// Satisfied by the ledger repository.
type LedgerSummer interface {
	SumByProduct(ctx context.Context, productID id.ID) (ledger.ProductSums, error)
	ListProductIDs(ctx context.Context) ([]id.ID, error)
}
