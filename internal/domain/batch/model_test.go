package batch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
)

func validBatch() *Batch {
	manufactured := time.Now().UTC().AddDate(0, -1, 0)
	expiry := manufactured.AddDate(1, 0, 0)
	return New(id.New(), "B-2026-000042", manufactured, &expiry, types.NewQuantityFromInt(100))
}

func assertTransitionErr(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidTransition, appErr.Code)
}

func TestBatch_Validate(t *testing.T) {
	ctx := context.Background()

	b := validBatch()
	require.NoError(t, b.Validate(ctx))

	b = validBatch()
	b.ProductID = id.Nil()
	assert.Error(t, b.Validate(ctx))

	b = validBatch()
	b.Code = ""
	assert.Error(t, b.Validate(ctx))

	b = validBatch()
	bad := b.ManufactureDate.AddDate(0, 0, -1)
	b.ExpiryDate = &bad
	assert.Error(t, b.Validate(ctx), "expiry before manufacture")

	b = validBatch()
	b.ExpiryDate = nil
	assert.NoError(t, b.Validate(ctx), "nil expiry means never expires")

	b = validBatch()
	b.DiscountPercent = types.MustPercent("10")
	assert.Error(t, b.Validate(ctx), "discount without promotion")

	b = validBatch()
	require.NoError(t, b.SetDiscount(types.MustPercent("10")))
	assert.NoError(t, b.Validate(ctx))
}

func TestBatch_Lifecycle(t *testing.T) {
	b := validBatch()
	require.Equal(t, StatusActive, b.Status)

	require.NoError(t, b.MarkExpired())
	assert.Equal(t, StatusExpired, b.Status)

	// Expiring twice is not a valid transition.
	assertTransitionErr(t, b.MarkExpired())

	// Expired batches can still be disposed.
	require.NoError(t, b.Dispose("past expiry"))
	assert.Equal(t, StatusDisposed, b.Status)
	require.NotNil(t, b.DisposalReason)
	assert.Equal(t, "past expiry", *b.DisposalReason)

	// Disposal is terminal.
	assertTransitionErr(t, b.Dispose("again"))
	assertTransitionErr(t, b.MarkExpired())
}

func TestBatch_DisposeDirectlyFromActive(t *testing.T) {
	b := validBatch()
	require.NoError(t, b.Dispose("damaged in transit"))
	assert.Equal(t, StatusDisposed, b.Status)
}

func TestBatch_IsExpiredAsOf(t *testing.T) {
	b := validBatch()
	assert.False(t, b.IsExpiredAsOf(b.ExpiryDate.AddDate(0, 0, -1)))
	assert.True(t, b.IsExpiredAsOf(*b.ExpiryDate), "expiry moment itself counts as expired")
	assert.True(t, b.IsExpiredAsOf(b.ExpiryDate.AddDate(0, 0, 1)))

	b.ExpiryDate = nil
	assert.False(t, b.IsExpiredAsOf(time.Now().AddDate(100, 0, 0)))
}

func TestBatch_Promotion(t *testing.T) {
	b := validBatch()

	err := b.SetDiscount(types.ZeroPercent())
	assert.Error(t, err, "zero discount is not a promotion")

	require.NoError(t, b.SetDiscount(types.MustPercent("25.5")))
	assert.Equal(t, PromotionDiscount, b.Promotion)
	assert.True(t, b.DiscountPercent.Equal(types.MustPercent("25.5")))

	b.ClearPromotion()
	assert.Equal(t, PromotionNone, b.Promotion)
	assert.True(t, b.DiscountPercent.IsZero())
}
