package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
)

func qty(v int64) types.Quantity { return types.NewQuantityFromInt(v) }

func newLedger(onHand, onShelf, reserved int64) *Ledger {
	l := New(id.New(), id.New())
	l.OnHand = qty(onHand)
	l.OnShelf = qty(onShelf)
	l.Reserved = qty(reserved)
	return l
}

func assertCounters(t *testing.T, l *Ledger, onHand, onShelf, reserved int64) {
	t.Helper()
	assert.Equal(t, qty(onHand), l.OnHand, "on_hand")
	assert.Equal(t, qty(onShelf), l.OnShelf, "on_shelf")
	assert.Equal(t, qty(reserved), l.Reserved, "reserved")
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}

func TestLedger_Receive(t *testing.T) {
	l := newLedger(0, 0, 0)

	require.NoError(t, l.Receive(qty(100)))
	assertCounters(t, l, 100, 0, 0)

	require.NoError(t, l.Receive(qty(50)))
	assertCounters(t, l, 150, 0, 0)

	assertCode(t, l.Receive(qty(0)), apperror.CodeNegativeQty)
	assertCode(t, l.Receive(qty(-5)), apperror.CodeNegativeQty)
	assertCounters(t, l, 150, 0, 0)
}

func TestLedger_MoveToShelf(t *testing.T) {
	l := newLedger(100, 0, 0)

	require.NoError(t, l.MoveToShelf(qty(30)))
	assertCounters(t, l, 70, 30, 0)

	// Exact remainder is allowed.
	require.NoError(t, l.MoveToShelf(qty(70)))
	assertCounters(t, l, 0, 100, 0)

	assertCode(t, l.MoveToShelf(qty(1)), apperror.CodeInsufficientStock)
	assertCounters(t, l, 0, 100, 0)
}

func TestLedger_MoveToWarehouse(t *testing.T) {
	l := newLedger(10, 40, 0)

	require.NoError(t, l.MoveToWarehouse(qty(40)))
	assertCounters(t, l, 50, 0, 0)

	assertCode(t, l.MoveToWarehouse(qty(1)), apperror.CodeInsufficientStock)
}

func TestLedger_TransferRoundTripPreservesTotal(t *testing.T) {
	l := newLedger(80, 20, 0)
	total := l.Total()

	require.NoError(t, l.MoveToShelf(qty(50)))
	assert.Equal(t, total, l.Total())

	require.NoError(t, l.MoveToWarehouse(qty(50)))
	assert.Equal(t, total, l.Total())
	assertCounters(t, l, 80, 20, 0)
}

func TestLedger_ReserveTakesShelfFirst(t *testing.T) {
	l := newLedger(50, 30, 0)

	// Fits entirely on the shelf.
	require.NoError(t, l.Reserve(qty(20)))
	assertCounters(t, l, 50, 10, 20)

	// Spills into the warehouse once the shelf runs dry.
	require.NoError(t, l.Reserve(qty(25)))
	assertCounters(t, l, 35, 0, 45)
}

func TestLedger_ReserveBoundedByAvailable(t *testing.T) {
	l := newLedger(10, 5, 0)
	assert.Equal(t, qty(15), l.Available())

	assertCode(t, l.Reserve(qty(16)), apperror.CodeInsufficientStock)
	assertCounters(t, l, 10, 5, 0)

	// Exactly available is allowed and drains the batch.
	require.NoError(t, l.Reserve(qty(15)))
	assertCounters(t, l, 0, 0, 15)
	assert.Equal(t, qty(0), l.Available())

	assertCode(t, l.Reserve(qty(1)), apperror.CodeInsufficientStock)
}

func TestLedger_ReserveReleaseRoundTrip(t *testing.T) {
	l := newLedger(50, 30, 0)

	require.NoError(t, l.Reserve(qty(40)))
	assertCounters(t, l, 40, 0, 40)

	require.NoError(t, l.Release(qty(40), true))
	assertCounters(t, l, 40, 40, 0)
	assert.Equal(t, qty(80), l.Total())

	// Returning to the warehouse instead.
	require.NoError(t, l.Reserve(qty(10)))
	require.NoError(t, l.Release(qty(10), false))
	assertCounters(t, l, 50, 30, 0)
}

func TestLedger_ReleaseBoundedByReserved(t *testing.T) {
	l := newLedger(0, 0, 10)

	assertCode(t, l.Release(qty(11), true), apperror.CodeInsufficientReservation)
	assertCode(t, l.Release(qty(0), true), apperror.CodeNegativeQty)

	require.NoError(t, l.Release(qty(10), true))
	assertCounters(t, l, 0, 10, 0)
}

func TestLedger_CompleteDelivery(t *testing.T) {
	l := newLedger(20, 0, 15)

	require.NoError(t, l.CompleteDelivery(qty(15)))
	// Stock left the counters on reserve; only the reservation clears.
	assertCounters(t, l, 20, 0, 0)

	assertCode(t, l.CompleteDelivery(qty(1)), apperror.CodeInsufficientReservation)
}

func TestLedger_SaleEndToEnd(t *testing.T) {
	l := newLedger(0, 0, 0)

	require.NoError(t, l.Receive(qty(100)))
	require.NoError(t, l.MoveToShelf(qty(60)))
	assertCounters(t, l, 40, 60, 0)

	require.NoError(t, l.Reserve(qty(25)))
	assertCounters(t, l, 40, 35, 25)

	require.NoError(t, l.CompleteDelivery(qty(25)))
	assertCounters(t, l, 40, 35, 0)
	assert.Equal(t, qty(75), l.Total())
	assert.Equal(t, qty(75), l.Available())
}

func TestLedger_Adjust(t *testing.T) {
	l := newLedger(10, 0, 0)

	require.NoError(t, l.AdjustIn(qty(5)))
	assertCounters(t, l, 15, 0, 0)

	require.NoError(t, l.AdjustOut(qty(15)))
	assertCounters(t, l, 0, 0, 0)
	assert.True(t, l.IsEmpty())

	assertCode(t, l.AdjustOut(qty(1)), apperror.CodeInsufficientStock)
	assertCode(t, l.AdjustIn(qty(-3)), apperror.CodeNegativeQty)
}

func TestLedger_FractionalQuantities(t *testing.T) {
	l := newLedger(0, 0, 0)

	require.NoError(t, l.Receive(types.NewQuantityFromFloat64(2.5)))
	require.NoError(t, l.MoveToShelf(types.NewQuantityFromFloat64(1.25)))
	require.NoError(t, l.Reserve(types.NewQuantityFromFloat64(1.25)))
	require.NoError(t, l.CompleteDelivery(types.NewQuantityFromFloat64(1.25)))

	assert.Equal(t, types.NewQuantityFromFloat64(1.25), l.OnHand)
	assert.True(t, l.OnShelf.IsZero())
	assert.True(t, l.Reserved.IsZero())
}

func TestLedger_AvailableNeverNegative(t *testing.T) {
	// Reserved exceeding physical stock can only arise from external data;
	// Available must clamp rather than go negative.
	l := newLedger(1, 0, 5)
	assert.Equal(t, qty(0), l.Available())
}

func TestLedger_Touch(t *testing.T) {
	l := New(id.New(), id.New())
	require.Equal(t, 1, l.Version)
	l.Touch()
	assert.Equal(t, 2, l.Version)
}
