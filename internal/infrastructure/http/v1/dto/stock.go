package dto

import (
	"time"

	"lotkeeper/internal/domain/ledger"
)

// --- Request DTOs for ledger operations ---

// QuantityRequest carries the amount for a single-quantity stock operation.
type QuantityRequest struct {
	Quantity float64 `json:"quantity" binding:"required,gt=0"`
	Reason   string  `json:"reason"`
}

// ReceiveStockRequest books delivered stock into the warehouse.
type ReceiveStockRequest struct {
	Quantity        float64 `json:"quantity" binding:"required,gt=0"`
	PurchaseOrderID *string `json:"purchaseOrderId"`
	Reason          string  `json:"reason"`
}

// ReserveStockRequest commits stock to an unpaid order.
type ReserveStockRequest struct {
	Quantity float64 `json:"quantity" binding:"required,gt=0"`
	OrderID  string  `json:"orderId" binding:"required"`
	Reason   string  `json:"reason"`
}

// ReleaseStockRequest returns reserved stock after a cancellation.
type ReleaseStockRequest struct {
	Quantity      float64 `json:"quantity" binding:"required,gt=0"`
	OrderID       string  `json:"orderId" binding:"required"`
	ReturnToShelf bool    `json:"returnToShelf"`
	Reason        string  `json:"reason"`
}

// CompleteDeliveryRequest finalizes a reservation on payment success.
type CompleteDeliveryRequest struct {
	Quantity float64 `json:"quantity" binding:"required,gt=0"`
	OrderID  string  `json:"orderId" binding:"required"`
	Reason   string  `json:"reason"`
}

// AdjustStockRequest applies a manual correction.
type AdjustStockRequest struct {
	Quantity  float64 `json:"quantity" binding:"required,gt=0"`
	Direction string  `json:"direction" binding:"required,oneof=in out"`
	Reason    string  `json:"reason" binding:"required"`
}

// AssignLocationRequest places a batch in a storage slot.
type AssignLocationRequest struct {
	LocationID string `json:"locationId" binding:"required"`
}

// RefundRestoreRequest restores sold stock for a refunded order.
type RefundRestoreRequest struct {
	OrderID string `json:"orderId" binding:"required"`
	Reason  string `json:"reason"`
}

// --- Response DTOs ---

// LedgerResponse represents a batch's ledger in API responses.
type LedgerResponse struct {
	BatchID   string `json:"batchId"`
	ProductID string `json:"productId"`

	OnHand    float64 `json:"onHand"`
	OnShelf   float64 `json:"onShelf"`
	Reserved  float64 `json:"reserved"`
	Total     float64 `json:"total"`
	Available float64 `json:"available"`

	LocationID *string `json:"locationId,omitempty"`

	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FromLedger converts entity to response DTO.
func FromLedger(l *ledger.Ledger) LedgerResponse {
	resp := LedgerResponse{
		BatchID:   l.BatchID.String(),
		ProductID: l.ProductID.String(),
		OnHand:    l.OnHand.Float64(),
		OnShelf:   l.OnShelf.Float64(),
		Reserved:  l.Reserved.Float64(),
		Total:     l.Total().Float64(),
		Available: l.Available().Float64(),
		Version:   l.Version,
		UpdatedAt: l.UpdatedAt,
	}
	if l.LocationID != nil {
		s := l.LocationID.String()
		resp.LocationID = &s
	}
	return resp
}

// FromLedgers converts a ledger slice.
func FromLedgers(ledgers []ledger.Ledger) []LedgerResponse {
	out := make([]LedgerResponse, 0, len(ledgers))
	for i := range ledgers {
		out = append(out, FromLedger(&ledgers[i]))
	}
	return out
}

// RefundRestoreResponse reports how much stock a refund restored.
type RefundRestoreResponse struct {
	OrderID  string  `json:"orderId"`
	Restored float64 `json:"restored"`
}
