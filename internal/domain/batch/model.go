// Package batch provides the product batch catalog.
// A batch carries immutable identity (code, manufacture/expiry dates) plus
// mutable lifecycle status and a promotion descriptor. The authoritative
// quantity lives in the batch's ledger; DeclaredQuantity is an informational
// snapshot taken at receiving time.
package batch

import (
	"context"
	"time"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
)

// Status is the batch lifecycle state.
type Status string

const (
	StatusActive   Status = "active"
	StatusExpired  Status = "expired"
	StatusDisposed Status = "disposed"
)

// Promotion describes the discount attached to a batch.
type Promotion string

const (
	PromotionNone     Promotion = "none"
	PromotionDiscount Promotion = "discount"
)

// Batch represents one physical lot of a product.
type Batch struct {
	ID        id.ID  `db:"id" json:"id"`
	ProductID id.ID  `db:"product_id" json:"productId"`
	Code      string `db:"code" json:"code"`

	ManufactureDate time.Time  `db:"manufacture_date" json:"manufactureDate"`
	ExpiryDate      *time.Time `db:"expiry_date" json:"expiryDate,omitempty"` // nil = never expires

	// DeclaredQuantity is what the supplier paperwork said. Informational
	// only - the ledger is the single source of truth for counts.
	DeclaredQuantity types.Quantity `db:"declared_quantity" json:"declaredQuantity"`

	Status          Status        `db:"status" json:"status"`
	Promotion       Promotion     `db:"promotion" json:"promotion"`
	DiscountPercent types.Percent `db:"discount_percent" json:"discountPercent"`

	DisposalReason *string `db:"disposal_reason" json:"disposalReason,omitempty"`

	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// New creates an active batch with generated ID.
func New(productID id.ID, code string, manufactured time.Time, expiry *time.Time, declaredQty types.Quantity) *Batch {
	now := time.Now().UTC()
	return &Batch{
		ID:               id.New(),
		ProductID:        productID,
		Code:             code,
		ManufactureDate:  manufactured,
		ExpiryDate:       expiry,
		DeclaredQuantity: declaredQty,
		Status:           StatusActive,
		Promotion:        PromotionNone,
		DiscountPercent:  types.ZeroPercent(),
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Validate checks batch invariants.
func (b *Batch) Validate(ctx context.Context) error {
	if id.IsNil(b.ProductID) {
		return apperror.NewValidation("product_id is required").WithDetail("field", "product_id")
	}
	if b.Code == "" {
		return apperror.NewValidation("code is required").WithDetail("field", "code")
	}
	if b.ExpiryDate != nil && !b.ExpiryDate.After(b.ManufactureDate) {
		return apperror.NewValidation("expiry_date must be after manufacture_date").
			WithDetail("field", "expiry_date")
	}
	if b.DeclaredQuantity.IsNegative() {
		return apperror.NewValidation("declared_quantity must not be negative").
			WithDetail("field", "declared_quantity")
	}
	switch b.Promotion {
	case PromotionNone:
		if !b.DiscountPercent.IsZero() {
			return apperror.NewValidation("discount_percent must be zero without a promotion").
				WithDetail("field", "discount_percent")
		}
	case PromotionDiscount:
		if !b.DiscountPercent.IsPositive() {
			return apperror.NewValidation("discount_percent must be positive for a discount promotion").
				WithDetail("field", "discount_percent")
		}
	default:
		return apperror.NewValidation("unknown promotion").WithDetail("value", string(b.Promotion))
	}
	return nil
}

// SetDiscount attaches a discount promotion. pct must be positive.
func (b *Batch) SetDiscount(pct types.Percent) error {
	if !pct.IsPositive() {
		return apperror.NewValidation("discount_percent must be positive").
			WithDetail("value", pct.String())
	}
	b.Promotion = PromotionDiscount
	b.DiscountPercent = pct
	return nil
}

// ClearPromotion removes any promotion.
func (b *Batch) ClearPromotion() {
	b.Promotion = PromotionNone
	b.DiscountPercent = types.ZeroPercent()
}

// IsExpiredAsOf reports whether the batch's expiry date has passed.
// A nil expiry date never expires.
func (b *Batch) IsExpiredAsOf(t time.Time) bool {
	return b.ExpiryDate != nil && !b.ExpiryDate.After(t)
}

// MarkExpired transitions active -> expired.
func (b *Batch) MarkExpired() error {
	if b.Status != StatusActive {
		return apperror.NewInvalidTransition(b.ID.String(), string(b.Status), string(StatusExpired))
	}
	b.Status = StatusExpired
	b.touch()
	return nil
}

// Dispose transitions active/expired -> disposed. Irreversible.
func (b *Batch) Dispose(reason string) error {
	if b.Status == StatusDisposed {
		return apperror.NewInvalidTransition(b.ID.String(), string(b.Status), string(StatusDisposed))
	}
	b.Status = StatusDisposed
	if reason != "" {
		b.DisposalReason = &reason
	}
	b.touch()
	return nil
}

func (b *Batch) touch() {
	b.Version++
	b.UpdatedAt = time.Now().UTC()
}
