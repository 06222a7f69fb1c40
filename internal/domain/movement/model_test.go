package movement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "lotkeeper/internal/core/context"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
)

func qty(v int64) types.Quantity { return types.NewQuantityFromInt(v) }

func TestNew_AttributesActorFromContext(t *testing.T) {
	ctx := appctx.WithActor(context.Background(), &appctx.ActorContext{ActorID: "user-17"})

	m := New(ctx, id.New(), id.New(), TypeIn, qty(10), Reference{}, "delivery")
	assert.Equal(t, "user-17", m.Actor)

	// Background jobs without an actor attribute to the system.
	m = New(context.Background(), id.New(), id.New(), TypeIn, qty(10), Reference{}, "")
	assert.Equal(t, appctx.SystemActor, m.Actor)
}

func TestMovement_Reference(t *testing.T) {
	ref := Reference{Kind: RefOrder, ID: id.New()}
	m := New(context.Background(), id.New(), id.New(), TypeSale, qty(5).Neg(), ref, "")

	got, ok := m.Reference()
	require.True(t, ok)
	assert.Equal(t, ref, got)

	m = New(context.Background(), id.New(), id.New(), TypeTransfer, qty(5), Reference{}, "restock")
	_, ok = m.Reference()
	assert.False(t, ok)
}

func TestMovement_Validate(t *testing.T) {
	m := New(context.Background(), id.New(), id.New(), TypeIn, qty(10), Reference{}, "")
	require.NoError(t, m.Validate())

	m.Quantity = 0
	assert.Error(t, m.Validate())

	m = New(context.Background(), id.New(), id.New(), Type("bogus"), qty(1), Reference{}, "")
	assert.Error(t, m.Validate())

	m = New(context.Background(), id.Nil(), id.New(), TypeIn, qty(1), Reference{}, "")
	assert.Error(t, m.Validate())

	m = New(context.Background(), id.New(), id.New(), TypeIn, qty(1), Reference{}, "")
	m.RefID = nil
	kind := RefOrder
	m.RefKind = &kind
	assert.Error(t, m.Validate(), "reference kind without id")
}

func TestOutboundByBatch(t *testing.T) {
	ctx := context.Background()
	batchA := id.New()
	batchB := id.New()
	productID := id.New()
	ref := Reference{Kind: RefOrder, ID: id.New()}

	movements := []Movement{
		New(ctx, productID, batchA, TypeReserve, qty(10).Neg(), ref, ""), // not physical outbound
		New(ctx, productID, batchA, TypeSale, qty(10).Neg(), ref, ""),
		New(ctx, productID, batchB, TypeSale, qty(4).Neg(), ref, ""),
		New(ctx, productID, batchB, TypeSale, qty(2).Neg(), ref, ""),
		New(ctx, productID, batchB, TypeRelease, qty(1), ref, ""), // inbound, ignored
	}

	restore := OutboundByBatch(movements)
	require.Len(t, restore, 2)
	assert.Equal(t, qty(10), restore[batchA])
	assert.Equal(t, qty(6), restore[batchB])
}

func TestOutboundByBatch_Empty(t *testing.T) {
	assert.Empty(t, OutboundByBatch(nil))

	// Transfers and reservations alone restore nothing.
	ctx := context.Background()
	movements := []Movement{
		New(ctx, id.New(), id.New(), TypeTransfer, qty(5), Reference{}, ""),
		New(ctx, id.New(), id.New(), TypeReserve, qty(5).Neg(), Reference{}, ""),
	}
	assert.Empty(t, OutboundByBatch(movements))
}
