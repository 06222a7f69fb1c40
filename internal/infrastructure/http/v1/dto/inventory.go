package dto

import (
	"time"

	"lotkeeper/internal/domain/inventory"
)

// --- Request DTOs ---

// SetReorderPointRequest updates a product's replenishment threshold.
type SetReorderPointRequest struct {
	ReorderPoint float64 `json:"reorderPoint" binding:"min=0"`
}

// --- Response DTOs ---

// AggregateResponse represents per-product inventory totals.
type AggregateResponse struct {
	ProductID string `json:"productId"`

	QuantityOnHand   float64 `json:"quantityOnHand"`
	QuantityOnShelf  float64 `json:"quantityOnShelf"`
	QuantityReserved float64 `json:"quantityReserved"`
	Available        float64 `json:"available"`

	ReorderPoint float64 `json:"reorderPoint"`
	NeedsReorder bool    `json:"needsReorder"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// FromAggregate converts entity to response DTO.
func FromAggregate(a *inventory.Aggregate) AggregateResponse {
	return AggregateResponse{
		ProductID:        a.ProductID.String(),
		QuantityOnHand:   a.QuantityOnHand.Float64(),
		QuantityOnShelf:  a.QuantityOnShelf.Float64(),
		QuantityReserved: a.QuantityReserved.Float64(),
		Available:        a.Available().Float64(),
		ReorderPoint:     a.ReorderPoint.Float64(),
		NeedsReorder:     a.NeedsReorder(),
		UpdatedAt:        a.UpdatedAt,
	}
}

// FromAggregates converts an aggregate slice.
func FromAggregates(aggregates []inventory.Aggregate) []AggregateResponse {
	out := make([]AggregateResponse, 0, len(aggregates))
	for i := range aggregates {
		out = append(out, FromAggregate(&aggregates[i]))
	}
	return out
}
