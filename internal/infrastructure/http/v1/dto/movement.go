package dto

import (
	"time"

	"lotkeeper/internal/domain/movement"
)

// --- Request DTOs ---

// ListMovementsRequest filters movement history queries.
type ListMovementsRequest struct {
	PaginationRequest
	BatchID  string     `form:"batchId"`
	Type     string     `form:"type" binding:"omitempty,oneof=in out adjustment reserve release transfer sale"`
	FromDate *time.Time `form:"fromDate"`
	ToDate   *time.Time `form:"toDate"`
}

// --- Response DTOs ---

// MovementResponse represents one audit log record.
type MovementResponse struct {
	ID        string  `json:"id"`
	ProductID string  `json:"productId"`
	BatchID   string  `json:"batchId"`
	Type      string  `json:"type"`
	Quantity  float64 `json:"quantity"`

	ReferenceKind *string `json:"referenceKind,omitempty"`
	ReferenceID   *string `json:"referenceId,omitempty"`

	Actor      string    `json:"actor"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// FromMovement converts entity to response DTO.
func FromMovement(m *movement.Movement) MovementResponse {
	resp := MovementResponse{
		ID:         m.ID.String(),
		ProductID:  m.ProductID.String(),
		BatchID:    m.BatchID.String(),
		Type:       string(m.Type),
		Quantity:   m.Quantity.Float64(),
		Actor:      m.Actor,
		Reason:     m.Reason,
		OccurredAt: m.OccurredAt,
	}
	if m.RefKind != nil {
		kind := string(*m.RefKind)
		resp.ReferenceKind = &kind
	}
	if m.RefID != nil {
		refID := m.RefID.String()
		resp.ReferenceID = &refID
	}
	return resp
}

// FromMovements converts a movement slice.
func FromMovements(movements []movement.Movement) []MovementResponse {
	out := make([]MovementResponse, 0, len(movements))
	for i := range movements {
		out = append(out, FromMovement(&movements[i]))
	}
	return out
}

// TurnoverResponse summarizes product flow over a period.
type TurnoverResponse struct {
	ProductID string    `json:"productId"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Inbound   float64   `json:"inbound"`
	Outbound  float64   `json:"outbound"`
}
