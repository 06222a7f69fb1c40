// Package ledger provides the per-batch quantity ledger.
// A ledger owns the three counters for one physical batch: on-hand
// (warehouse), on-shelf (storefront-visible) and reserved (committed to an
// unpaid sale). All quantity mutations in the system flow through the
// operation methods here; nothing else writes counters.
package ledger

import (
	"time"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
)

// Ledger tracks authoritative quantities for one batch.
type Ledger struct {
	ID        id.ID `db:"id" json:"id"`
	BatchID   id.ID `db:"batch_id" json:"batchId"`
	ProductID id.ID `db:"product_id" json:"productId"`

	OnHand   types.Quantity `db:"on_hand" json:"onHand"`
	OnShelf  types.Quantity `db:"on_shelf" json:"onShelf"`
	Reserved types.Quantity `db:"reserved" json:"reserved"`

	// LocationID is the storage slot this batch occupies, if assigned.
	LocationID *id.ID `db:"location_id" json:"locationId,omitempty"`

	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// New creates a zeroed ledger for a batch.
func New(batchID, productID id.ID) *Ledger {
	now := time.Now().UTC()
	return &Ledger{
		ID:        id.New(),
		BatchID:   batchID,
		ProductID: productID,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Total is the physical stock on premises (warehouse + shelf).
func (l *Ledger) Total() types.Quantity {
	return l.OnHand + l.OnShelf
}

// Available is what a new sale may still reserve.
func (l *Ledger) Available() types.Quantity {
	avail := l.OnHand + l.OnShelf - l.Reserved
	if avail < 0 {
		return 0
	}
	return avail
}

// IsEmpty reports whether every counter is zero. Only empty ledgers may be
// deleted.
func (l *Ledger) IsEmpty() bool {
	return l.OnHand.IsZero() && l.OnShelf.IsZero() && l.Reserved.IsZero()
}

// checkCounters verifies the hard postcondition: no counter may go negative.
// A violation here after an otherwise valid operation is a consistency bug,
// not a user error.
func (l *Ledger) checkCounters() error {
	if l.OnHand.IsNegative() || l.OnShelf.IsNegative() || l.Reserved.IsNegative() {
		return apperror.NewInternal(nil).
			WithDetail("batch_id", l.BatchID.String()).
			WithDetail("on_hand", l.OnHand.Float64()).
			WithDetail("on_shelf", l.OnShelf.Float64()).
			WithDetail("reserved", l.Reserved.Float64())
	}
	return nil
}

// Receive adds newly delivered stock to the warehouse.
func (l *Ledger) Receive(qty types.Quantity) error {
	if !qty.IsPositive() {
		return apperror.NewNegativeOrZeroQuantity("receive", qty.Float64())
	}
	l.OnHand += qty
	return l.checkCounters()
}

// MoveToShelf moves stock from warehouse to the storefront shelf.
func (l *Ledger) MoveToShelf(qty types.Quantity) error {
	if !qty.IsPositive() {
		return apperror.NewNegativeOrZeroQuantity("move_to_shelf", qty.Float64())
	}
	if l.OnHand < qty {
		return apperror.NewInsufficientStock(l.BatchID.String(), "on_hand", qty.Float64(), l.OnHand.Float64())
	}
	l.OnHand -= qty
	l.OnShelf += qty
	return l.checkCounters()
}

// MoveToWarehouse moves stock from the shelf back to the warehouse.
func (l *Ledger) MoveToWarehouse(qty types.Quantity) error {
	if !qty.IsPositive() {
		return apperror.NewNegativeOrZeroQuantity("move_to_warehouse", qty.Float64())
	}
	if l.OnShelf < qty {
		return apperror.NewInsufficientStock(l.BatchID.String(), "on_shelf", qty.Float64(), l.OnShelf.Float64())
	}
	l.OnShelf -= qty
	l.OnHand += qty
	return l.checkCounters()
}

// Reserve commits stock to an unpaid sale. Shelf stock is consumed first:
// the shelf is what a customer can already see, so depleting it first keeps
// the storefront view consistent with physical availability.
func (l *Ledger) Reserve(qty types.Quantity) error {
	if !qty.IsPositive() {
		return apperror.NewNegativeOrZeroQuantity("reserve", qty.Float64())
	}
	if l.Available() < qty {
		return apperror.NewInsufficientStock(l.BatchID.String(), "available", qty.Float64(), l.Available().Float64())
	}

	fromShelf := qty
	if l.OnShelf < fromShelf {
		fromShelf = l.OnShelf
	}
	l.OnShelf -= fromShelf
	l.OnHand -= qty - fromShelf
	l.Reserved += qty

	return l.checkCounters()
}

// Release returns reserved stock after a cancelled sale. The quantity goes
// back to the shelf when returnToShelf is set, otherwise to the warehouse.
func (l *Ledger) Release(qty types.Quantity, returnToShelf bool) error {
	if !qty.IsPositive() {
		return apperror.NewNegativeOrZeroQuantity("release", qty.Float64())
	}
	if l.Reserved < qty {
		return apperror.NewInsufficientReservation(l.BatchID.String(), qty.Float64(), l.Reserved.Float64())
	}
	l.Reserved -= qty
	if returnToShelf {
		l.OnShelf += qty
	} else {
		l.OnHand += qty
	}
	return l.checkCounters()
}

// CompleteDelivery converts a reservation into a final deduction. The stock
// already physically left the counters on reserve, so only the reservation
// clears.
func (l *Ledger) CompleteDelivery(qty types.Quantity) error {
	if !qty.IsPositive() {
		return apperror.NewNegativeOrZeroQuantity("complete_delivery", qty.Float64())
	}
	if l.Reserved < qty {
		return apperror.NewInsufficientReservation(l.BatchID.String(), qty.Float64(), l.Reserved.Float64())
	}
	l.Reserved -= qty
	return l.checkCounters()
}

// AdjustIn corrects warehouse stock upward (found stock, refund restore).
func (l *Ledger) AdjustIn(qty types.Quantity) error {
	if !qty.IsPositive() {
		return apperror.NewNegativeOrZeroQuantity("adjust_in", qty.Float64())
	}
	l.OnHand += qty
	return l.checkCounters()
}

// AdjustOut corrects warehouse stock downward (shrinkage, write-off).
func (l *Ledger) AdjustOut(qty types.Quantity) error {
	if !qty.IsPositive() {
		return apperror.NewNegativeOrZeroQuantity("adjust_out", qty.Float64())
	}
	if l.OnHand < qty {
		return apperror.NewInsufficientStock(l.BatchID.String(), "on_hand", qty.Float64(), l.OnHand.Float64())
	}
	l.OnHand -= qty
	return l.checkCounters()
}

// Touch increments version and updates the timestamp; repositories call this
// before an optimistic-locked write.
func (l *Ledger) Touch() {
	l.Version++
	l.UpdatedAt = time.Now().UTC()
}
