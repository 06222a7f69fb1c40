package movement

import (
	"context"
	"time"

	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
)

// Filter narrows movement history queries.
type Filter struct {
	BatchID  *id.ID
	Type     *Type
	FromDate *time.Time
	ToDate   *time.Time
	Limit    int
	Offset   int
}

// Turnover summarizes inbound and outbound flow for a product over a period.
type Turnover struct {
	ProductID id.ID          `json:"productId"`
	Inbound   types.Quantity `json:"inbound"`
	Outbound  types.Quantity `json:"outbound"`
}

// Repository defines persistence for the movement log.
type Repository interface {
	// Create appends movements. Must be called within a transaction so the
	// log stays atomic with the ledger mutation it records.
	Create(ctx context.Context, movements ...Movement) error

	// ListByProduct returns movement history for a product, newest first.
	ListByProduct(ctx context.Context, productID id.ID, filter Filter) ([]Movement, error)

	// ListByReference returns every movement tied to an order or purchase
	// order, oldest first. Refund restoration reads this.
	ListByReference(ctx context.Context, ref Reference) ([]Movement, error)

	// GetTurnover sums inbound (positive) and outbound (negative) quantities
	// for a product in [from, to).
	GetTurnover(ctx context.Context, productID id.ID, from, to time.Time) (Turnover, error)
}

// OutboundByBatch sums the quantity that physically left stock for the given
// reference, grouped by batch. Used to restore exact quantities on refund:
// the result is what was actually sold, which may differ from the order line
// quantity under partial fulfillment or mixed-batch sales.
func OutboundByBatch(movements []Movement) map[id.ID]types.Quantity {
	restore := make(map[id.ID]types.Quantity)
	for _, m := range movements {
		if m.Type != TypeSale && m.Type != TypeOut {
			continue
		}
		if !m.Quantity.IsNegative() {
			continue
		}
		restore[m.BatchID] += m.Quantity.Abs()
	}
	return restore
}
