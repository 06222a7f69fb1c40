// Package movement provides the append-only inventory movement log.
// Movements are immutable - they are never updated or deleted, only archived.
package movement

import (
	"context"
	"time"

	"lotkeeper/internal/core/apperror"
	appctx "lotkeeper/internal/core/context"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
)

// Type classifies a quantity-changing operation.
type Type string

const (
	TypeIn         Type = "in"         // goods received into warehouse
	TypeOut        Type = "out"        // goods written off (adjust out, disposal)
	TypeAdjustment Type = "adjustment" // manual correction
	TypeReserve    Type = "reserve"    // stock committed to an unpaid sale
	TypeRelease    Type = "release"    // reservation returned to stock
	TypeTransfer   Type = "transfer"   // warehouse <-> shelf move, zero net change
	TypeSale       Type = "sale"       // reservation converted into a delivery
)

// ReferenceKind tags the document that triggered a movement.
type ReferenceKind string

const (
	RefOrder         ReferenceKind = "order"
	RefPurchaseOrder ReferenceKind = "purchase_order"
)

// Reference is a discriminated reference to the triggering document.
// The zero value means the movement has no originating document.
type Reference struct {
	Kind ReferenceKind `db:"reference_kind" json:"kind"`
	ID   id.ID         `db:"reference_id" json:"id"`
}

// IsZero reports whether the reference is absent.
func (r Reference) IsZero() bool {
	return r.Kind == "" && id.IsNil(r.ID)
}

// Movement is one immutable record in the inventory audit trail.
// Quantity is signed: positive for in/release/adjust-in, negative for
// out/sale/reserve.
type Movement struct {
	ID        id.ID          `db:"id" json:"id"`
	ProductID id.ID          `db:"product_id" json:"productId"`
	BatchID   id.ID          `db:"batch_id" json:"batchId"`
	Type      Type           `db:"type" json:"type"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`

	// Reference ties the movement to the order or purchase order that
	// caused it; refunds query by this pair.
	RefKind *ReferenceKind `db:"reference_kind" json:"referenceKind,omitempty"`
	RefID   *id.ID         `db:"reference_id" json:"referenceId,omitempty"`

	Actor      string    `db:"actor" json:"actor"`
	Reason     string    `db:"reason" json:"reason,omitempty"`
	OccurredAt time.Time `db:"occurred_at" json:"occurredAt"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// New creates a movement attributed to the actor in ctx.
func New(ctx context.Context, productID, batchID id.ID, mType Type, qty types.Quantity, ref Reference, reason string) Movement {
	now := time.Now().UTC()
	m := Movement{
		ID:         id.New(),
		ProductID:  productID,
		BatchID:    batchID,
		Type:       mType,
		Quantity:   qty,
		Actor:      appctx.GetActorID(ctx),
		Reason:     reason,
		OccurredAt: now,
		CreatedAt:  now,
	}
	if !ref.IsZero() {
		kind := ref.Kind
		refID := ref.ID
		m.RefKind = &kind
		m.RefID = &refID
	}
	return m
}

// Reference reconstructs the tagged reference, if any.
func (m *Movement) Reference() (Reference, bool) {
	if m.RefKind == nil || m.RefID == nil {
		return Reference{}, false
	}
	return Reference{Kind: *m.RefKind, ID: *m.RefID}, true
}

// Validate checks movement invariants before persistence.
func (m *Movement) Validate() error {
	if id.IsNil(m.ProductID) {
		return apperror.NewValidation("movement requires product_id")
	}
	if id.IsNil(m.BatchID) {
		return apperror.NewValidation("movement requires batch_id")
	}
	if m.Quantity.IsZero() {
		return apperror.NewValidation("movement quantity must not be zero")
	}
	switch m.Type {
	case TypeIn, TypeOut, TypeAdjustment, TypeReserve, TypeRelease, TypeTransfer, TypeSale:
	default:
		return apperror.NewValidation("unknown movement type").WithDetail("type", string(m.Type))
	}
	if (m.RefKind == nil) != (m.RefID == nil) {
		return apperror.NewValidation("movement reference requires both kind and id")
	}
	return nil
}
