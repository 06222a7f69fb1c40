// Package inventory provides the per-product aggregate inventory.
// An aggregate is a materialized rollup of every ledger belonging to the
// product's batches. It is never mutated directly - always rederived from
// ledgers - so it can be rebuilt from scratch at any time. That self-healing
// property stands in for cross-document transactions.
package inventory

import (
	"time"

	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
)

// Aggregate is the per-product inventory rollup sales and reordering read.
type Aggregate struct {
	ID        id.ID `db:"id" json:"id"`
	ProductID id.ID `db:"product_id" json:"productId"`

	QuantityOnHand   types.Quantity `db:"quantity_on_hand" json:"quantityOnHand"`
	QuantityOnShelf  types.Quantity `db:"quantity_on_shelf" json:"quantityOnShelf"`
	QuantityReserved types.Quantity `db:"quantity_reserved" json:"quantityReserved"`

	// ReorderPoint triggers replenishment when available stock falls to it.
	ReorderPoint types.Quantity `db:"reorder_point" json:"reorderPoint"`

	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// New creates an empty aggregate for a product.
func New(productID id.ID) *Aggregate {
	now := time.Now().UTC()
	return &Aggregate{
		ID:        id.New(),
		ProductID: productID,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Available is what the storefront may still sell.
func (a *Aggregate) Available() types.Quantity {
	avail := a.QuantityOnHand + a.QuantityOnShelf - a.QuantityReserved
	if avail < 0 {
		return 0
	}
	return avail
}

// Total is all physical stock across the product's batches.
func (a *Aggregate) Total() types.Quantity {
	return a.QuantityOnHand + a.QuantityOnShelf
}

// NeedsReorder reports whether available stock has fallen to the reorder point.
func (a *Aggregate) NeedsReorder() bool {
	return a.Available() <= a.ReorderPoint
}
