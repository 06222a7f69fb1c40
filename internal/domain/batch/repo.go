package batch

import (
	"context"
	"time"

	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
)

// SaleCandidate pairs a batch with the shelf stock its ledger currently
// holds. This is the FEFO selector's read model.
type SaleCandidate struct {
	BatchID         id.ID          `db:"batch_id"`
	Code            string         `db:"code"`
	Status          Status         `db:"status"`
	ExpiryDate      *time.Time     `db:"expiry_date"`
	Promotion       Promotion      `db:"promotion"`
	DiscountPercent types.Percent  `db:"discount_percent"`
	OnShelf         types.Quantity `db:"on_shelf"`
}

// ListFilter narrows batch listings.
type ListFilter struct {
	ProductID *id.ID
	Status    *Status
	Limit     int
	Offset    int
}

// Repository defines persistence for the batch catalog.
type Repository interface {
	Create(ctx context.Context, b *Batch) error

	GetByID(ctx context.Context, batchID id.ID) (*Batch, error)

	GetByCode(ctx context.Context, code string) (*Batch, error)

	// GetForUpdate retrieves a batch with a row lock for status transitions.
	GetForUpdate(ctx context.Context, batchID id.ID) (*Batch, error)

	// Update persists mutable fields with an optimistic version check.
	// Returns OperationConflict when the stored version moved.
	Update(ctx context.Context, b *Batch) error

	List(ctx context.Context, filter ListFilter) ([]Batch, error)

	// ListExpiredActive returns active batches whose expiry date has passed
	// as of cutoff. The auto-expire sweep feeds on this.
	ListExpiredActive(ctx context.Context, cutoff time.Time) ([]Batch, error)

	// ListSaleCandidates joins batches with their ledgers for one product,
	// in batch-id order so FEFO tie-breaks stay deterministic.
	ListSaleCandidates(ctx context.Context, productID id.ID) ([]SaleCandidate, error)
}
