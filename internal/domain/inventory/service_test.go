package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/ledger"
)

type passTx struct{}

func (passTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memRepo struct {
	aggregates map[id.ID]*Aggregate // keyed by product ID
}

func newMemRepo() *memRepo {
	return &memRepo{aggregates: make(map[id.ID]*Aggregate)}
}

func (r *memRepo) GetByProduct(_ context.Context, productID id.ID) (*Aggregate, error) {
	a, ok := r.aggregates[productID]
	if !ok {
		return nil, apperror.NewNotFound("aggregate", productID.String())
	}
	cp := *a
	return &cp, nil
}

func (r *memRepo) Upsert(_ context.Context, a *Aggregate) error {
	cp := *a
	r.aggregates[a.ProductID] = &cp
	return nil
}

func (r *memRepo) SetReorderPoint(_ context.Context, productID id.ID, point types.Quantity) error {
	a, ok := r.aggregates[productID]
	if !ok {
		a = New(productID)
		r.aggregates[productID] = a
	}
	a.ReorderPoint = point
	return nil
}

func (r *memRepo) ListNeedingReorder(_ context.Context) ([]Aggregate, error) {
	var out []Aggregate
	for _, a := range r.aggregates {
		if a.NeedsReorder() {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memRepo) List(_ context.Context, _, _ int) ([]Aggregate, error) {
	var out []Aggregate
	for _, a := range r.aggregates {
		out = append(out, *a)
	}
	return out, nil
}

// fakeSummer serves canned ledger sums and can fail for chosen products.
type fakeSummer struct {
	sums map[id.ID]ledger.ProductSums
	fail map[id.ID]bool
}

func (f *fakeSummer) SumByProduct(_ context.Context, productID id.ID) (ledger.ProductSums, error) {
	if f.fail[productID] {
		return ledger.ProductSums{}, assert.AnError
	}
	s, ok := f.sums[productID]
	if !ok {
		return ledger.ProductSums{ProductID: productID}, nil
	}
	return s, nil
}

func (f *fakeSummer) ListProductIDs(_ context.Context) ([]id.ID, error) {
	var out []id.ID
	for pid := range f.sums {
		out = append(out, pid)
	}
	return out, nil
}

func qty(v int64) types.Quantity { return types.NewQuantityFromInt(v) }

func TestService_RecomputeMirrorsLedgerSums(t *testing.T) {
	repo := newMemRepo()
	productID := id.New()
	summer := &fakeSummer{sums: map[id.ID]ledger.ProductSums{
		productID: {ProductID: productID, OnHand: qty(70), OnShelf: qty(20), Reserved: qty(5)},
	}}
	svc := NewService(repo, summer, passTx{})
	ctx := context.Background()

	require.NoError(t, svc.Recompute(ctx, productID))

	agg, err := svc.GetByProduct(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, qty(70), agg.QuantityOnHand)
	assert.Equal(t, qty(20), agg.QuantityOnShelf)
	assert.Equal(t, qty(5), agg.QuantityReserved)
	assert.Equal(t, qty(85), agg.Available())

	// Recomputing again after the ledgers moved overwrites, never accumulates.
	summer.sums[productID] = ledger.ProductSums{ProductID: productID, OnHand: qty(30)}
	require.NoError(t, svc.Recompute(ctx, productID))
	require.NoError(t, svc.Recompute(ctx, productID))

	agg, err = svc.GetByProduct(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, qty(30), agg.QuantityOnHand)
	assert.True(t, agg.QuantityOnShelf.IsZero())
}

func TestService_RecomputePreservesReorderPoint(t *testing.T) {
	repo := newMemRepo()
	productID := id.New()
	summer := &fakeSummer{sums: map[id.ID]ledger.ProductSums{
		productID: {ProductID: productID, OnHand: qty(10)},
	}}
	svc := NewService(repo, summer, passTx{})
	ctx := context.Background()

	require.NoError(t, svc.SetReorderPoint(ctx, productID, qty(25)))
	require.NoError(t, svc.Recompute(ctx, productID))

	agg, err := svc.GetByProduct(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, qty(25), agg.ReorderPoint)
	assert.True(t, agg.NeedsReorder(), "10 available <= 25 reorder point")
}

func TestService_GetByProductUnknownReadsEmpty(t *testing.T) {
	svc := NewService(newMemRepo(), &fakeSummer{}, passTx{})

	productID := id.New()
	agg, err := svc.GetByProduct(context.Background(), productID)
	require.NoError(t, err)
	assert.Equal(t, productID, agg.ProductID)
	assert.True(t, agg.Total().IsZero())
}

func TestService_SetReorderPointRejectsNegative(t *testing.T) {
	svc := NewService(newMemRepo(), &fakeSummer{}, passTx{})

	err := svc.SetReorderPoint(context.Background(), id.New(), qty(-1))
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestService_ReconcileAllContinuesPastFailures(t *testing.T) {
	repo := newMemRepo()
	good := id.New()
	bad := id.New()
	summer := &fakeSummer{
		sums: map[id.ID]ledger.ProductSums{
			good: {ProductID: good, OnHand: qty(40)},
			bad:  {ProductID: bad, OnHand: qty(99)},
		},
		fail: map[id.ID]bool{bad: true},
	}
	svc := NewService(repo, summer, passTx{})

	reconciled, err := svc.ReconcileAll(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, reconciled)

	agg, getErr := svc.GetByProduct(context.Background(), good)
	require.NoError(t, getErr)
	assert.Equal(t, qty(40), agg.QuantityOnHand)
}

func TestService_ReconcileAllIdempotent(t *testing.T) {
	repo := newMemRepo()
	productID := id.New()
	summer := &fakeSummer{sums: map[id.ID]ledger.ProductSums{
		productID: {ProductID: productID, OnHand: qty(12), OnShelf: qty(3)},
	}}
	svc := NewService(repo, summer, passTx{})
	ctx := context.Background()

	for range 3 {
		reconciled, err := svc.ReconcileAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, reconciled)
	}

	agg, err := svc.GetByProduct(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, qty(15), agg.Total())
}
