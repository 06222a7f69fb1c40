// Package fefo implements First-Expired-First-Out sale batch selection.
// The selector is a pure function so the storefront read path can call it
// without touching persistence.
package fefo

import (
	"sort"
	"time"

	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/batch"
)

// Selection is the outcome of picking a sale batch for a product.
type Selection struct {
	Batch batch.SaleCandidate

	// DiscountPercent is the product's effective storefront discount,
	// propagated from the winning batch's promotion. Zero without one.
	DiscountPercent types.Percent
}

// SelectSaleBatch picks the batch a sale should draw from.
//
// Rules: only active batches with shelf stock qualify - shelf presence is
// the enabling condition for sale, so a product with warehouse-only stock
// reads as out of stock here. Among qualifiers the soonest expiry wins; a
// nil expiry sorts last (never expires). Equal expiries keep input order,
// which callers supply in batch-id order for determinism.
//
// The boolean is false when no batch qualifies.
func SelectSaleBatch(candidates []batch.SaleCandidate) (Selection, bool) {
	eligible := make([]batch.SaleCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Status != batch.StatusActive {
			continue
		}
		if !c.OnShelf.IsPositive() {
			continue
		}
		eligible = append(eligible, c)
	}
	if len(eligible) == 0 {
		return Selection{}, false
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return expiresBefore(eligible[i].ExpiryDate, eligible[j].ExpiryDate)
	})

	winner := eligible[0]
	sel := Selection{
		Batch:           winner,
		DiscountPercent: types.ZeroPercent(),
	}
	if winner.Promotion == batch.PromotionDiscount && winner.DiscountPercent.IsPositive() {
		sel.DiscountPercent = winner.DiscountPercent
	}
	return sel, true
}

// expiresBefore orders expiry dates ascending with nil (never expires) last.
func expiresBefore(a, b *time.Time) bool {
	switch {
	case a == nil && b == nil:
		return false
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.Before(*b)
	}
}
