package dto

import (
	"time"

	"lotkeeper/internal/domain/batch"
)

// --- Request DTOs ---

// CreateBatchRequest registers a newly delivered batch.
type CreateBatchRequest struct {
	ProductID string `json:"productId" binding:"required"`

	// Code is optional; a sequential code is generated when empty.
	Code string `json:"code"`

	ManufactureDate time.Time  `json:"manufactureDate" binding:"required"`
	ExpiryDate      *time.Time `json:"expiryDate"`

	DeclaredQuantity float64 `json:"declaredQuantity" binding:"omitempty,gt=0"`

	// ReceiveStock books DeclaredQuantity into the warehouse in the same
	// transaction, tied to PurchaseOrderID.
	ReceiveStock    bool    `json:"receiveStock"`
	PurchaseOrderID *string `json:"purchaseOrderId"`
}

// SetDiscountRequest attaches a discount promotion to a batch.
type SetDiscountRequest struct {
	DiscountPercent float64 `json:"discountPercent" binding:"required,gt=0,lte=100"`
}

// DisposeBatchRequest retires a batch and writes off its stock.
type DisposeBatchRequest struct {
	Reason string `json:"reason"`
}

// ListBatchesRequest filters batch listings.
type ListBatchesRequest struct {
	PaginationRequest
	ProductID string `form:"productId"`
	Status    string `form:"status" binding:"omitempty,oneof=active expired disposed"`
}

// --- Response DTOs ---

// BatchResponse represents a batch in API responses.
type BatchResponse struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Code      string `json:"code"`

	ManufactureDate time.Time  `json:"manufactureDate"`
	ExpiryDate      *time.Time `json:"expiryDate,omitempty"`

	DeclaredQuantity float64 `json:"declaredQuantity"`

	Status          string  `json:"status"`
	Promotion       string  `json:"promotion"`
	DiscountPercent float64 `json:"discountPercent"`

	DisposalReason *string `json:"disposalReason,omitempty"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FromBatch converts entity to response DTO.
func FromBatch(b *batch.Batch) BatchResponse {
	return BatchResponse{
		ID:               b.ID.String(),
		ProductID:        b.ProductID.String(),
		Code:             b.Code,
		ManufactureDate:  b.ManufactureDate,
		ExpiryDate:       b.ExpiryDate,
		DeclaredQuantity: b.DeclaredQuantity.Float64(),
		Status:           string(b.Status),
		Promotion:        string(b.Promotion),
		DiscountPercent:  b.DiscountPercent.InexactFloat64(),
		DisposalReason:   b.DisposalReason,
		Version:          b.Version,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

// FromBatches converts a batch slice.
func FromBatches(batches []batch.Batch) []BatchResponse {
	out := make([]BatchResponse, 0, len(batches))
	for i := range batches {
		out = append(out, FromBatch(&batches[i]))
	}
	return out
}

// SaleBatchResponse is the FEFO selection answer for the storefront.
type SaleBatchResponse struct {
	BatchID         string     `json:"batchId"`
	Code            string     `json:"code"`
	ExpiryDate      *time.Time `json:"expiryDate,omitempty"`
	OnShelf         float64    `json:"onShelf"`
	DiscountPercent float64    `json:"discountPercent"`
}
