package batch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/events"
	"lotkeeper/internal/domain/ledger"
	"lotkeeper/internal/domain/location"
	"lotkeeper/internal/domain/movement"
)

// --- fakes ---

type passTx struct{}

func (passTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memBatchRepo struct {
	batches map[id.ID]*Batch
}

func newMemBatchRepo() *memBatchRepo {
	return &memBatchRepo{batches: make(map[id.ID]*Batch)}
}

func (r *memBatchRepo) Create(_ context.Context, b *Batch) error {
	cp := *b
	r.batches[b.ID] = &cp
	return nil
}

func (r *memBatchRepo) GetByID(_ context.Context, batchID id.ID) (*Batch, error) {
	b, ok := r.batches[batchID]
	if !ok {
		return nil, apperror.NewNotFound("batch", batchID.String())
	}
	cp := *b
	return &cp, nil
}

func (r *memBatchRepo) GetByCode(_ context.Context, code string) (*Batch, error) {
	for _, b := range r.batches {
		if b.Code == code {
			cp := *b
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("batch", code)
}

func (r *memBatchRepo) GetForUpdate(ctx context.Context, batchID id.ID) (*Batch, error) {
	return r.GetByID(ctx, batchID)
}

func (r *memBatchRepo) Update(_ context.Context, b *Batch) error {
	cp := *b
	r.batches[b.ID] = &cp
	return nil
}

func (r *memBatchRepo) List(_ context.Context, filter ListFilter) ([]Batch, error) {
	var out []Batch
	for _, b := range r.batches {
		if filter.ProductID != nil && b.ProductID != *filter.ProductID {
			continue
		}
		if filter.Status != nil && b.Status != *filter.Status {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

func (r *memBatchRepo) ListExpiredActive(_ context.Context, cutoff time.Time) ([]Batch, error) {
	var out []Batch
	for _, b := range r.batches {
		if b.Status == StatusActive && b.IsExpiredAsOf(cutoff) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *memBatchRepo) ListSaleCandidates(_ context.Context, _ id.ID) ([]SaleCandidate, error) {
	return nil, nil
}

type memLedgerRepo struct {
	ledgers map[id.ID]*ledger.Ledger
}

func (r *memLedgerRepo) Create(_ context.Context, l *ledger.Ledger) error {
	cp := *l
	r.ledgers[l.BatchID] = &cp
	return nil
}

func (r *memLedgerRepo) GetByBatch(_ context.Context, batchID id.ID) (*ledger.Ledger, error) {
	l, ok := r.ledgers[batchID]
	if !ok {
		return nil, apperror.NewNotFound("ledger", batchID.String())
	}
	cp := *l
	return &cp, nil
}

func (r *memLedgerRepo) GetByBatchForUpdate(ctx context.Context, batchID id.ID) (*ledger.Ledger, error) {
	return r.GetByBatch(ctx, batchID)
}

func (r *memLedgerRepo) Update(_ context.Context, l *ledger.Ledger) error {
	cp := *l
	r.ledgers[l.BatchID] = &cp
	return nil
}

func (r *memLedgerRepo) Delete(_ context.Context, _ id.ID) error { return nil }

func (r *memLedgerRepo) ListByProduct(_ context.Context, _ id.ID) ([]ledger.Ledger, error) {
	return nil, nil
}

func (r *memLedgerRepo) SumByProduct(_ context.Context, productID id.ID) (ledger.ProductSums, error) {
	return ledger.ProductSums{ProductID: productID}, nil
}

func (r *memLedgerRepo) ListProductIDs(_ context.Context) ([]id.ID, error) { return nil, nil }

func (r *memLedgerRepo) TotalAtLocation(_ context.Context, _ id.ID, _ *id.ID) (types.Quantity, error) {
	return 0, nil
}

type memMovements struct {
	movements []movement.Movement
}

func (r *memMovements) Create(_ context.Context, ms ...movement.Movement) error {
	r.movements = append(r.movements, ms...)
	return nil
}

func (r *memMovements) ListByProduct(_ context.Context, _ id.ID, _ movement.Filter) ([]movement.Movement, error) {
	return nil, nil
}

func (r *memMovements) ListByReference(_ context.Context, _ movement.Reference) ([]movement.Movement, error) {
	return nil, nil
}

func (r *memMovements) GetTurnover(_ context.Context, productID id.ID, _, _ time.Time) (movement.Turnover, error) {
	return movement.Turnover{ProductID: productID}, nil
}

type memLocations struct{}

func (memLocations) Create(_ context.Context, _ *location.Location) error { return nil }
func (memLocations) GetByID(_ context.Context, locationID id.ID) (*location.Location, error) {
	return nil, apperror.NewNotFound("location", locationID.String())
}
func (memLocations) GetByCode(_ context.Context, code string) (*location.Location, error) {
	return nil, apperror.NewNotFound("location", code)
}
func (memLocations) GetByName(_ context.Context, name string) (*location.Location, error) {
	return nil, apperror.NewNotFound("location", name)
}
func (memLocations) Update(_ context.Context, _ *location.Location) error { return nil }
func (memLocations) Delete(_ context.Context, _ id.ID) error              { return nil }
func (memLocations) List(_ context.Context, _ bool) ([]location.Location, error) {
	return nil, nil
}

type noopRecomputer struct{}

func (noopRecomputer) Recompute(_ context.Context, _ id.ID) error { return nil }

type noopPublisher struct{}

func (noopPublisher) Publish(_ context.Context, _ events.InventoryChanged) error { return nil }

type seqCodes struct {
	n int
}

func (c *seqCodes) Next(_ context.Context, scope string) (string, error) {
	c.n++
	return fmt.Sprintf("%s-2026-%06d", scope, c.n), nil
}

// --- fixture ---

type batchFixture struct {
	svc       *Service
	repo      *memBatchRepo
	ledgers   *memLedgerRepo
	movements *memMovements
	codes     *seqCodes
}

func newBatchFixture() *batchFixture {
	repo := newMemBatchRepo()
	ledgerRepo := &memLedgerRepo{ledgers: make(map[id.ID]*ledger.Ledger)}
	movements := &memMovements{}
	codes := &seqCodes{}
	txm := passTx{}

	locSvc := location.NewService(memLocations{}, ledgerRepo, txm)
	ledgerSvc := ledger.NewService(ledgerRepo, movements, locSvc, noopRecomputer{}, noopPublisher{}, txm)

	return &batchFixture{
		svc:       NewService(repo, ledgerSvc, codes, txm),
		repo:      repo,
		ledgers:   ledgerRepo,
		movements: movements,
		codes:     codes,
	}
}

func createParams() CreateParams {
	manufactured := time.Now().UTC().AddDate(0, -1, 0)
	expiry := manufactured.AddDate(1, 0, 0)
	return CreateParams{
		ProductID:        id.New(),
		ManufactureDate:  manufactured,
		ExpiryDate:       &expiry,
		DeclaredQuantity: types.NewQuantityFromInt(100),
	}
}

// --- tests ---

func TestBatchService_CreateGeneratesCodeAndLedger(t *testing.T) {
	f := newBatchFixture()
	ctx := context.Background()

	b, err := f.svc.Create(ctx, createParams())
	require.NoError(t, err)
	assert.Equal(t, "batch-2026-000001", b.Code)
	assert.Equal(t, StatusActive, b.Status)

	// The ledger exists and is empty: registration does not receive stock.
	l, err := f.ledgers.GetByBatch(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, l.IsEmpty())
	assert.Equal(t, b.ProductID, l.ProductID)
	assert.Empty(t, f.movements.movements)
}

func TestBatchService_CreateWithReceive(t *testing.T) {
	f := newBatchFixture()
	ctx := context.Background()

	poID := id.New()
	p := createParams()
	p.ReceiveStock = true
	p.PurchaseOrderID = &poID

	b, err := f.svc.Create(ctx, p)
	require.NoError(t, err)

	l, err := f.ledgers.GetByBatch(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(100), l.OnHand)

	require.Len(t, f.movements.movements, 1)
	m := f.movements.movements[0]
	assert.Equal(t, movement.TypeIn, m.Type)
	ref, ok := m.Reference()
	require.True(t, ok)
	assert.Equal(t, movement.RefPurchaseOrder, ref.Kind)
	assert.Equal(t, poID, ref.ID)
}

func TestBatchService_CreateRejectsDuplicateCode(t *testing.T) {
	f := newBatchFixture()
	ctx := context.Background()

	p := createParams()
	p.Code = "LOT-X"
	_, err := f.svc.Create(ctx, p)
	require.NoError(t, err)

	p2 := createParams()
	p2.Code = "LOT-X"
	_, err = f.svc.Create(ctx, p2)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeDuplicate, appErr.Code)
}

func TestBatchService_CreateWithReceiveRequiresQuantity(t *testing.T) {
	f := newBatchFixture()

	p := createParams()
	p.ReceiveStock = true
	p.DeclaredQuantity = 0
	_, err := f.svc.Create(context.Background(), p)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeNegativeQty, appErr.Code)
}

func TestBatchService_DisposeWritesOffStock(t *testing.T) {
	f := newBatchFixture()
	ctx := context.Background()

	p := createParams()
	p.ReceiveStock = true
	b, err := f.svc.Create(ctx, p)
	require.NoError(t, err)

	disposed, err := f.svc.Dispose(ctx, b.ID, "water damage")
	require.NoError(t, err)
	assert.Equal(t, StatusDisposed, disposed.Status)
	require.NotNil(t, disposed.DisposalReason)
	assert.Equal(t, "water damage", *disposed.DisposalReason)

	l, err := f.ledgers.GetByBatch(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, l.IsEmpty())

	m := f.movements.movements[len(f.movements.movements)-1]
	assert.Equal(t, movement.TypeOut, m.Type)
	assert.Equal(t, types.NewQuantityFromInt(100).Neg(), m.Quantity)
}

func TestBatchService_DisposeBlockedByReservation(t *testing.T) {
	f := newBatchFixture()
	ctx := context.Background()

	p := createParams()
	p.ReceiveStock = true
	b, err := f.svc.Create(ctx, p)
	require.NoError(t, err)

	ledgerSvc := f.svc.ledgers
	require.NoError(t, ledgerSvc.Reserve(ctx, b.ID, types.NewQuantityFromInt(5), movement.Reference{}, ""))

	_, err = f.svc.Dispose(ctx, b.ID, "expired")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeBusinessRule, appErr.Code)

	// Batch status is untouched.
	got, err := f.svc.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)
}

func TestBatchService_ExpireSweep(t *testing.T) {
	f := newBatchFixture()
	ctx := context.Background()

	past := createParams()
	expired := time.Now().UTC().AddDate(0, 0, -1)
	manufactured := expired.AddDate(-1, 0, 0)
	past.ManufactureDate = manufactured
	past.ExpiryDate = &expired
	due, err := f.svc.Create(ctx, past)
	require.NoError(t, err)

	fresh, err := f.svc.Create(ctx, createParams())
	require.NoError(t, err)

	never := createParams()
	never.ExpiryDate = nil
	eternal, err := f.svc.Create(ctx, never)
	require.NoError(t, err)

	count, err := f.svc.ExpireSweep(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	for batchID, want := range map[id.ID]Status{
		due.ID:     StatusExpired,
		fresh.ID:   StatusActive,
		eternal.ID: StatusActive,
	} {
		got, err := f.svc.GetByID(ctx, batchID)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status)
	}

	// A second sweep finds nothing new.
	count, err = f.svc.ExpireSweep(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestBatchService_Promotions(t *testing.T) {
	f := newBatchFixture()
	ctx := context.Background()

	b, err := f.svc.Create(ctx, createParams())
	require.NoError(t, err)

	updated, err := f.svc.SetDiscount(ctx, b.ID, types.MustPercent("20"))
	require.NoError(t, err)
	assert.Equal(t, PromotionDiscount, updated.Promotion)

	updated, err = f.svc.ClearPromotion(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, PromotionNone, updated.Promotion)

	// Disposed batches cannot be discounted.
	_, err = f.svc.Dispose(ctx, b.ID, "")
	require.NoError(t, err)
	_, err = f.svc.SetDiscount(ctx, b.ID, types.MustPercent("20"))
	require.Error(t, err)
}
