package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/inventory"
)

func aggregate(onHand, onShelf, reserved, reorderPoint int64) *inventory.Aggregate {
	agg := inventory.New(id.New())
	agg.QuantityOnHand = types.NewQuantityFromInt(onHand)
	agg.QuantityOnShelf = types.NewQuantityFromInt(onShelf)
	agg.QuantityReserved = types.NewQuantityFromInt(reserved)
	agg.ReorderPoint = types.NewQuantityFromInt(reorderPoint)
	return agg
}

func TestNewEngine_RejectsInvalidRules(t *testing.T) {
	_, err := NewEngine([]Rule{{Name: "broken", Expression: "available >"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")

	_, err = NewEngine([]Rule{{Name: "not_bool", Expression: "available + 1.0"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boolean")
}

func TestEngine_DefaultRules(t *testing.T) {
	engine, err := NewEngine(DefaultRules)
	require.NoError(t, err)

	tests := []struct {
		name string
		agg  *inventory.Aggregate
		want []string
	}{
		{
			name: "healthy stock fires nothing",
			agg:  aggregate(100, 20, 10, 5),
			want: nil,
		},
		{
			name: "sold out",
			agg:  aggregate(0, 0, 0, 0),
			want: []string{"out_of_stock", "needs_reorder"},
		},
		{
			name: "fell to reorder point",
			agg:  aggregate(3, 2, 0, 5),
			want: []string{"needs_reorder"},
		},
		{
			name: "reservations exceed physical stock",
			agg:  aggregate(0, 0, 4, 0),
			want: []string{"out_of_stock", "needs_reorder", "reservation_backlog"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fired, err := engine.Evaluate(tt.agg)
			require.NoError(t, err)

			var names []string
			for _, a := range fired {
				assert.Equal(t, tt.agg.ProductID, a.ProductID)
				names = append(names, a.Rule)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestEngine_CustomRule(t *testing.T) {
	engine, err := NewEngine([]Rule{
		{Name: "shelf_low", Expression: "on_shelf < 5.0 && on_hand > 0.0"},
	})
	require.NoError(t, err)

	fired, err := engine.Evaluate(aggregate(50, 2, 0, 0))
	require.NoError(t, err)
	require.Len(t, fired, 1)
	assert.Equal(t, "shelf_low", fired[0].Rule)

	fired, err = engine.Evaluate(aggregate(50, 10, 0, 0))
	require.NoError(t, err)
	assert.Empty(t, fired)
}
