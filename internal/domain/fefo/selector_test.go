package fefo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/batch"
)

func candidate(code string, expiry *time.Time, onShelf int64) batch.SaleCandidate {
	return batch.SaleCandidate{
		BatchID:         id.New(),
		Code:            code,
		Status:          batch.StatusActive,
		ExpiryDate:      expiry,
		Promotion:       batch.PromotionNone,
		DiscountPercent: types.ZeroPercent(),
		OnShelf:         types.NewQuantityFromInt(onShelf),
	}
}

func days(n int) *time.Time {
	t := time.Now().UTC().AddDate(0, 0, n)
	return &t
}

func TestSelectSaleBatch_EarliestExpiryWins(t *testing.T) {
	a := candidate("A", days(30), 10)
	b := candidate("B", days(5), 10)
	c := candidate("C", days(90), 10)

	sel, ok := SelectSaleBatch([]batch.SaleCandidate{a, b, c})
	require.True(t, ok)
	assert.Equal(t, b.BatchID, sel.Batch.BatchID)
	assert.Equal(t, "B", sel.Batch.Code)
}

func TestSelectSaleBatch_NilExpirySortsLast(t *testing.T) {
	never := candidate("NEVER", nil, 10)
	soon := candidate("SOON", days(3), 10)

	sel, ok := SelectSaleBatch([]batch.SaleCandidate{never, soon})
	require.True(t, ok)
	assert.Equal(t, soon.BatchID, sel.Batch.BatchID)

	// Only never-expiring stock left: it is still sellable.
	sel, ok = SelectSaleBatch([]batch.SaleCandidate{never})
	require.True(t, ok)
	assert.Equal(t, never.BatchID, sel.Batch.BatchID)
}

func TestSelectSaleBatch_SkipsEmptyShelf(t *testing.T) {
	empty := candidate("EMPTY", days(1), 0)
	stocked := candidate("STOCKED", days(60), 10)

	sel, ok := SelectSaleBatch([]batch.SaleCandidate{empty, stocked})
	require.True(t, ok)
	assert.Equal(t, stocked.BatchID, sel.Batch.BatchID,
		"warehouse-only or empty batches must not win even with earlier expiry")
}

func TestSelectSaleBatch_SkipsInactive(t *testing.T) {
	expired := candidate("EXPIRED", days(-1), 10)
	expired.Status = batch.StatusExpired
	disposed := candidate("DISPOSED", days(10), 10)
	disposed.Status = batch.StatusDisposed
	active := candidate("ACTIVE", days(20), 10)

	sel, ok := SelectSaleBatch([]batch.SaleCandidate{expired, disposed, active})
	require.True(t, ok)
	assert.Equal(t, active.BatchID, sel.Batch.BatchID)
}

func TestSelectSaleBatch_NoneEligible(t *testing.T) {
	_, ok := SelectSaleBatch(nil)
	assert.False(t, ok)

	empty := candidate("EMPTY", days(1), 0)
	_, ok = SelectSaleBatch([]batch.SaleCandidate{empty})
	assert.False(t, ok)
}

func TestSelectSaleBatch_DiscountPropagates(t *testing.T) {
	discounted := candidate("DISC", days(2), 5)
	discounted.Promotion = batch.PromotionDiscount
	discounted.DiscountPercent = types.MustPercent("15")
	plain := candidate("PLAIN", days(30), 50)

	sel, ok := SelectSaleBatch([]batch.SaleCandidate{plain, discounted})
	require.True(t, ok)
	assert.Equal(t, discounted.BatchID, sel.Batch.BatchID)
	assert.True(t, sel.DiscountPercent.Equal(types.MustPercent("15")),
		"winning batch's discount becomes the product's effective discount")

	// Without a promotion on the winner the effective discount is zero.
	sel, ok = SelectSaleBatch([]batch.SaleCandidate{plain})
	require.True(t, ok)
	assert.True(t, sel.DiscountPercent.IsZero())
}

func TestSelectSaleBatch_TieBreakKeepsInputOrder(t *testing.T) {
	expiry := days(7)
	first := candidate("FIRST", expiry, 10)
	second := candidate("SECOND", expiry, 10)

	sel, ok := SelectSaleBatch([]batch.SaleCandidate{first, second})
	require.True(t, ok)
	assert.Equal(t, first.BatchID, sel.Batch.BatchID)

	sel, ok = SelectSaleBatch([]batch.SaleCandidate{second, first})
	require.True(t, ok)
	assert.Equal(t, second.BatchID, sel.Batch.BatchID)
}
