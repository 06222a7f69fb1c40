package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/events"
	"lotkeeper/internal/domain/location"
	"lotkeeper/internal/domain/movement"
)

// --- in-memory fakes ---

type fakeTxManager struct{}

func (fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memLedgerRepo struct {
	ledgers map[id.ID]*Ledger // keyed by batch ID

	// conflictsLeft makes the next N updates fail with OperationConflict to
	// exercise the retry loop.
	conflictsLeft int
	updateCalls   int
}

func newMemLedgerRepo() *memLedgerRepo {
	return &memLedgerRepo{ledgers: make(map[id.ID]*Ledger)}
}

func (r *memLedgerRepo) Create(_ context.Context, l *Ledger) error {
	cp := *l
	r.ledgers[l.BatchID] = &cp
	return nil
}

func (r *memLedgerRepo) GetByBatch(_ context.Context, batchID id.ID) (*Ledger, error) {
	l, ok := r.ledgers[batchID]
	if !ok {
		return nil, apperror.NewNotFound("ledger", batchID.String())
	}
	cp := *l
	return &cp, nil
}

func (r *memLedgerRepo) GetByBatchForUpdate(ctx context.Context, batchID id.ID) (*Ledger, error) {
	return r.GetByBatch(ctx, batchID)
}

func (r *memLedgerRepo) Update(_ context.Context, l *Ledger) error {
	r.updateCalls++
	if r.conflictsLeft > 0 {
		r.conflictsLeft--
		return apperror.NewOperationConflict("ledger", l.BatchID.String())
	}
	cp := *l
	r.ledgers[l.BatchID] = &cp
	return nil
}

func (r *memLedgerRepo) Delete(_ context.Context, ledgerID id.ID) error {
	for batchID, l := range r.ledgers {
		if l.ID == ledgerID {
			delete(r.ledgers, batchID)
			return nil
		}
	}
	return apperror.NewNotFound("ledger", ledgerID.String())
}

func (r *memLedgerRepo) ListByProduct(_ context.Context, productID id.ID) ([]Ledger, error) {
	var out []Ledger
	for _, l := range r.ledgers {
		if l.ProductID == productID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *memLedgerRepo) SumByProduct(_ context.Context, productID id.ID) (ProductSums, error) {
	sums := ProductSums{ProductID: productID}
	for _, l := range r.ledgers {
		if l.ProductID != productID {
			continue
		}
		sums.OnHand += l.OnHand
		sums.OnShelf += l.OnShelf
		sums.Reserved += l.Reserved
	}
	return sums, nil
}

func (r *memLedgerRepo) ListProductIDs(_ context.Context) ([]id.ID, error) {
	seen := make(map[id.ID]bool)
	var out []id.ID
	for _, l := range r.ledgers {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			out = append(out, l.ProductID)
		}
	}
	return out, nil
}

func (r *memLedgerRepo) TotalAtLocation(_ context.Context, locationID id.ID, excludeBatch *id.ID) (types.Quantity, error) {
	var total types.Quantity
	for _, l := range r.ledgers {
		if l.LocationID == nil || *l.LocationID != locationID {
			continue
		}
		if excludeBatch != nil && l.BatchID == *excludeBatch {
			continue
		}
		total += l.Total()
	}
	return total, nil
}

type memMovementRepo struct {
	movements []movement.Movement
}

func (r *memMovementRepo) Create(_ context.Context, movements ...movement.Movement) error {
	r.movements = append(r.movements, movements...)
	return nil
}

func (r *memMovementRepo) ListByProduct(_ context.Context, productID id.ID, _ movement.Filter) ([]movement.Movement, error) {
	var out []movement.Movement
	for _, m := range r.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memMovementRepo) ListByReference(_ context.Context, ref movement.Reference) ([]movement.Movement, error) {
	var out []movement.Movement
	for _, m := range r.movements {
		if got, ok := m.Reference(); ok && got == ref {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memMovementRepo) GetTurnover(_ context.Context, productID id.ID, from, to time.Time) (movement.Turnover, error) {
	t := movement.Turnover{ProductID: productID}
	for _, m := range r.movements {
		if m.ProductID != productID || m.OccurredAt.Before(from) || !m.OccurredAt.Before(to) {
			continue
		}
		if m.Quantity.IsPositive() {
			t.Inbound += m.Quantity
		} else {
			t.Outbound += m.Quantity.Abs()
		}
	}
	return t, nil
}

func (r *memMovementRepo) last() movement.Movement {
	return r.movements[len(r.movements)-1]
}

type memLocationRepo struct {
	locations map[id.ID]*location.Location
}

func (r *memLocationRepo) Create(_ context.Context, l *location.Location) error {
	r.locations[l.ID] = l
	return nil
}

func (r *memLocationRepo) GetByID(_ context.Context, locationID id.ID) (*location.Location, error) {
	l, ok := r.locations[locationID]
	if !ok {
		return nil, apperror.NewNotFound("location", locationID.String())
	}
	return l, nil
}

func (r *memLocationRepo) GetByCode(_ context.Context, code string) (*location.Location, error) {
	for _, l := range r.locations {
		if l.Code == code {
			return l, nil
		}
	}
	return nil, apperror.NewNotFound("location", code)
}

func (r *memLocationRepo) GetByName(_ context.Context, name string) (*location.Location, error) {
	for _, l := range r.locations {
		if l.Name == name {
			return l, nil
		}
	}
	return nil, apperror.NewNotFound("location", name)
}

func (r *memLocationRepo) Update(_ context.Context, l *location.Location) error {
	r.locations[l.ID] = l
	return nil
}

func (r *memLocationRepo) Delete(_ context.Context, locationID id.ID) error {
	delete(r.locations, locationID)
	return nil
}

func (r *memLocationRepo) List(_ context.Context, _ bool) ([]location.Location, error) {
	var out []location.Location
	for _, l := range r.locations {
		out = append(out, *l)
	}
	return out, nil
}

type recordingRecomputer struct {
	calls []id.ID
}

func (r *recordingRecomputer) Recompute(_ context.Context, productID id.ID) error {
	r.calls = append(r.calls, productID)
	return nil
}

type recordingPublisher struct {
	events []events.InventoryChanged
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.InventoryChanged) error {
	p.events = append(p.events, ev)
	return nil
}

// --- fixture ---

type fixture struct {
	svc        *Service
	repo       *memLedgerRepo
	movements  *memMovementRepo
	locations  *memLocationRepo
	aggregates *recordingRecomputer
	publisher  *recordingPublisher

	batchID   id.ID
	productID id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newMemLedgerRepo()
	movements := &memMovementRepo{}
	locRepo := &memLocationRepo{locations: make(map[id.ID]*location.Location)}
	aggregates := &recordingRecomputer{}
	publisher := &recordingPublisher{}
	txm := fakeTxManager{}

	locSvc := location.NewService(locRepo, repo, txm)
	svc := NewService(repo, movements, locSvc, aggregates, publisher, txm)

	f := &fixture{
		svc:        svc,
		repo:       repo,
		movements:  movements,
		locations:  locRepo,
		aggregates: aggregates,
		publisher:  publisher,
		batchID:    id.New(),
		productID:  id.New(),
	}

	_, err := svc.CreateForBatch(context.Background(), f.batchID, f.productID)
	require.NoError(t, err)
	return f
}

func (f *fixture) ledger(t *testing.T) *Ledger {
	t.Helper()
	l, err := f.repo.GetByBatch(context.Background(), f.batchID)
	require.NoError(t, err)
	return l
}

// --- tests ---

func TestService_ReceiveRecordsMovementAndResyncsAggregate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	poID := id.New()
	ref := movement.Reference{Kind: movement.RefPurchaseOrder, ID: poID}
	require.NoError(t, f.svc.Receive(ctx, f.batchID, qty(100), ref, "supplier delivery"))

	l := f.ledger(t)
	assert.Equal(t, qty(100), l.OnHand)
	assert.Equal(t, 2, l.Version)

	require.Len(t, f.movements.movements, 1)
	m := f.movements.last()
	assert.Equal(t, movement.TypeIn, m.Type)
	assert.Equal(t, qty(100), m.Quantity)
	gotRef, ok := m.Reference()
	require.True(t, ok)
	assert.Equal(t, ref, gotRef)

	assert.Equal(t, []id.ID{f.productID}, f.aggregates.calls)
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, "receive", f.publisher.events[0].Operation)
	assert.Equal(t, qty(100), f.publisher.events[0].Delta)
}

func TestService_ReserveWritesNegativeMovement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Receive(ctx, f.batchID, qty(50), movement.Reference{}, ""))
	require.NoError(t, f.svc.MoveToShelf(ctx, f.batchID, qty(20), ""))

	orderRef := movement.Reference{Kind: movement.RefOrder, ID: id.New()}
	require.NoError(t, f.svc.Reserve(ctx, f.batchID, qty(15), orderRef, "checkout"))

	l := f.ledger(t)
	assert.Equal(t, qty(30), l.OnHand)
	assert.Equal(t, qty(5), l.OnShelf)
	assert.Equal(t, qty(15), l.Reserved)

	m := f.movements.last()
	assert.Equal(t, movement.TypeReserve, m.Type)
	assert.Equal(t, qty(15).Neg(), m.Quantity)
}

func TestService_BusinessErrorsAreNotRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.Reserve(ctx, f.batchID, qty(5), movement.Reference{}, "")
	assertCode(t, err, apperror.CodeInsufficientStock)

	assert.Zero(t, f.repo.updateCalls, "failed precondition must not reach the repository")
	assert.Empty(t, f.movements.movements)
	assert.Empty(t, f.publisher.events)
}

func TestService_RetriesOnConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.repo.conflictsLeft = 2
	require.NoError(t, f.svc.Receive(ctx, f.batchID, qty(10), movement.Reference{}, ""))

	assert.Equal(t, 3, f.repo.updateCalls)
	assert.Equal(t, qty(10), f.ledger(t).OnHand)
}

func TestService_GivesUpAfterMaxConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.repo.conflictsLeft = maxAttempts
	err := f.svc.Receive(ctx, f.batchID, qty(10), movement.Reference{}, "")
	assertCode(t, err, apperror.CodeOperationConflict)
	assert.True(t, f.ledger(t).OnHand.IsZero())
}

func TestService_AssignLocationEnforcesCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slot := location.New("A-01", "Aisle A slot 1", qty(100))
	require.NoError(t, f.locations.Create(ctx, slot))

	require.NoError(t, f.svc.Receive(ctx, f.batchID, qty(60), movement.Reference{}, ""))
	require.NoError(t, f.svc.AssignLocation(ctx, f.batchID, slot.ID))
	require.NotNil(t, f.ledger(t).LocationID)

	// A second batch of 50 would overfill the slot: 60 + 50 > 100.
	otherBatch := id.New()
	_, err := f.svc.CreateForBatch(ctx, otherBatch, f.productID)
	require.NoError(t, err)
	require.NoError(t, f.svc.Receive(ctx, otherBatch, qty(50), movement.Reference{}, ""))

	err = f.svc.AssignLocation(ctx, otherBatch, slot.ID)
	assertCode(t, err, apperror.CodeCapacityExceeded)

	// 40 fits exactly.
	require.NoError(t, f.svc.Adjust(ctx, otherBatch, qty(10), AdjustOut, movement.Reference{}, "shrinkage"))
	require.NoError(t, f.svc.AssignLocation(ctx, otherBatch, slot.ID))
}

func TestService_ReceiveIntoFullLocationFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slot := location.New("B-02", "Aisle B slot 2", qty(100))
	require.NoError(t, f.locations.Create(ctx, slot))

	require.NoError(t, f.svc.Receive(ctx, f.batchID, qty(90), movement.Reference{}, ""))
	require.NoError(t, f.svc.AssignLocation(ctx, f.batchID, slot.ID))

	// Growing an assigned batch past its slot's capacity is rejected and the
	// whole operation rolls back.
	err := f.svc.Receive(ctx, f.batchID, qty(20), movement.Reference{}, "")
	assertCode(t, err, apperror.CodeCapacityExceeded)

	// Shrinking operations never consult the guard.
	require.NoError(t, f.svc.Reserve(ctx, f.batchID, qty(30), movement.Reference{}, ""))
}

func TestService_ZeroOutForDisposal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Receive(ctx, f.batchID, qty(40), movement.Reference{}, ""))
	require.NoError(t, f.svc.MoveToShelf(ctx, f.batchID, qty(10), ""))

	require.NoError(t, f.svc.ZeroOutForDisposal(ctx, f.batchID, "expired"))

	l := f.ledger(t)
	assert.True(t, l.IsEmpty())

	m := f.movements.last()
	assert.Equal(t, movement.TypeOut, m.Type)
	assert.Equal(t, qty(40).Neg(), m.Quantity)
	assert.Equal(t, "expired", m.Reason)
}

func TestService_ZeroOutForDisposalBlockedByReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Receive(ctx, f.batchID, qty(40), movement.Reference{}, ""))
	require.NoError(t, f.svc.Reserve(ctx, f.batchID, qty(5), movement.Reference{}, ""))

	err := f.svc.ZeroOutForDisposal(ctx, f.batchID, "expired")
	assertCode(t, err, apperror.CodeBusinessRule)

	// Reserving already moved 5 out of the physical counters; the blocked
	// disposal must not have written anything off on top of that.
	l := f.ledger(t)
	assert.Equal(t, qty(35), l.Total())
	assert.Equal(t, qty(5), l.Reserved)
	assert.Equal(t, qty(40), l.Total()+l.Reserved)
}

func TestService_RestoreFromMovements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	orderRef := movement.Reference{Kind: movement.RefOrder, ID: id.New()}

	require.NoError(t, f.svc.Receive(ctx, f.batchID, qty(100), movement.Reference{}, ""))
	require.NoError(t, f.svc.Reserve(ctx, f.batchID, qty(30), orderRef, "checkout"))
	require.NoError(t, f.svc.CompleteDelivery(ctx, f.batchID, qty(30), orderRef, "paid"))

	totalBefore := f.ledger(t).Total()
	restored, err := f.svc.RestoreFromMovements(ctx, orderRef, "refund")
	require.NoError(t, err)

	// The reserve movement already carries the physical deduction; only the
	// sale record counts toward the restore.
	assert.Equal(t, qty(30), restored)
	assert.Equal(t, totalBefore+qty(30), f.ledger(t).Total())
}

func TestService_RestoreFromMovementsSecondRefundRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	orderRef := movement.Reference{Kind: movement.RefOrder, ID: id.New()}

	require.NoError(t, f.svc.Receive(ctx, f.batchID, qty(100), movement.Reference{}, ""))
	require.NoError(t, f.svc.Reserve(ctx, f.batchID, qty(30), orderRef, "checkout"))
	require.NoError(t, f.svc.CompleteDelivery(ctx, f.batchID, qty(30), orderRef, "paid"))

	_, err := f.svc.RestoreFromMovements(ctx, orderRef, "refund")
	require.NoError(t, err)
	totalAfterRefund := f.ledger(t).Total()

	_, err = f.svc.RestoreFromMovements(ctx, orderRef, "refund")
	assertCode(t, err, apperror.CodeBusinessRule)
	assert.Equal(t, totalAfterRefund, f.ledger(t).Total())
}

func TestService_RestoreFromMovementsUnknownReference(t *testing.T) {
	f := newFixture(t)

	ref := movement.Reference{Kind: movement.RefOrder, ID: id.New()}
	_, err := f.svc.RestoreFromMovements(context.Background(), ref, "refund")
	assertCode(t, err, apperror.CodeNotFound)
}
