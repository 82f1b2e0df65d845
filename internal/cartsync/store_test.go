package cartsync

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ultra-white/keda/internal/domain"
)

func intPtr(v int) *int { return &v }

func product(id string, price string, size *int) domain.Product {
	return domain.Product{
		ID:           id,
		Price:        decimal.RequireFromString(price),
		SelectedSize: size,
	}
}

func TestStore_AddIncrementsExistingKey(t *testing.T) {
	s := NewStore()

	s.Add(product("a", "100", intPtr(42)))
	s.Add(product("a", "100", intPtr(42)))

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)

	// A different size is a different line.
	s.Add(product("a", "100", intPtr(43)))
	require.Len(t, s.Items(), 2)
}

func TestStore_AddRemoveScenario(t *testing.T) {
	s := NewStore()

	s.Add(product("a", "100", intPtr(42)))
	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity)

	s.Add(product("a", "100", intPtr(42)))
	items = s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)

	require.True(t, s.Remove("a", intPtr(42)))
	assert.Empty(t, s.Items())
}

func TestStore_AddClampsAtCap(t *testing.T) {
	s := NewStore()
	for i := 0; i < domain.MaxQuantity+10; i++ {
		s.Add(product("a", "100", nil))
	}

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, domain.MaxQuantity, items[0].Quantity)
}

func TestStore_RemoveMissingIsNoOp(t *testing.T) {
	s := NewStore()
	s.Add(product("a", "100", intPtr(42)))

	assert.False(t, s.Remove("a", intPtr(43)))
	assert.False(t, s.Remove("b", nil))
	assert.Len(t, s.Items(), 1)
}

func TestStore_RemoveNilSizeDropsAllVariants(t *testing.T) {
	s := NewStore()
	s.Add(product("a", "100", intPtr(42)))
	s.Add(product("a", "100", nil))
	s.Add(product("b", "50", nil))

	// No size means every variant, sizeless line included.
	require.True(t, s.Remove("a", nil))

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].Product.ID)
}

func TestStore_SetQuantityNilSizeUpdatesAllVariants(t *testing.T) {
	s := NewStore()
	s.Add(product("a", "100", intPtr(42)))
	s.Add(product("a", "100", intPtr(43)))

	require.True(t, s.SetQuantity("a", 4, nil))
	for _, it := range s.Items() {
		assert.Equal(t, 4, it.Quantity)
	}

	// A sized call still touches only its own line.
	require.True(t, s.SetQuantity("a", 9, intPtr(42)))
	items := s.Items()
	assert.Equal(t, 9, items[0].Quantity)
	assert.Equal(t, 4, items[1].Quantity)
}

func TestStore_RemoveProductDropsAllVariants(t *testing.T) {
	s := NewStore()
	s.Add(product("a", "100", intPtr(42)))
	s.Add(product("a", "100", intPtr(43)))
	s.Add(product("b", "50", nil))

	require.True(t, s.RemoveProduct("a"))

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].Product.ID)
}

func TestStore_SetQuantity(t *testing.T) {
	s := NewStore()
	s.Add(product("a", "100", intPtr(42)))

	require.True(t, s.SetQuantity("a", 7, intPtr(42)))
	assert.Equal(t, 7, s.Items()[0].Quantity)

	// Above the cap is clamped, never stored.
	require.True(t, s.SetQuantity("a", domain.MaxQuantity+50, intPtr(42)))
	assert.Equal(t, domain.MaxQuantity, s.Items()[0].Quantity)

	// Zero or below removes.
	require.True(t, s.SetQuantity("a", 0, intPtr(42)))
	assert.Empty(t, s.Items())
}

func TestStore_SetQuantityMissingIsNoOp(t *testing.T) {
	s := NewStore()
	assert.False(t, s.SetQuantity("a", 3, nil))
	assert.Empty(t, s.Items())
}

func TestStore_Clear(t *testing.T) {
	s := NewStore()
	s.Add(product("a", "100", nil))
	s.Add(product("b", "50", nil))

	s.Clear()
	assert.Empty(t, s.Items())
	assert.Equal(t, 0, s.ItemCount())
}

func TestStore_ReplaceAllSanitizes(t *testing.T) {
	s := NewStore()

	// External data with a duplicate key and an oversized quantity.
	s.ReplaceAll([]domain.LineItem{
		{Product: product("a", "100", intPtr(42)), Quantity: 90},
		{Product: product("a", "100", intPtr(42)), Quantity: 90},
		{Product: product("b", "50", nil), Quantity: 2},
	})

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, domain.MaxQuantity, items[0].Quantity)
	assert.Equal(t, 2, items[1].Quantity)
}

func TestStore_DerivedTotals(t *testing.T) {
	s := NewStore()
	old := decimal.RequireFromString("150")

	p := product("a", "100", intPtr(42))
	p.OldPrice = &old
	s.Add(p)
	s.Add(p)
	s.Add(product("b", "50", nil))

	assert.Equal(t, 3, s.ItemCount())
	assert.True(t, s.TotalPrice().Equal(decimal.RequireFromString("250")))
	assert.True(t, s.TotalPriceWithoutDiscount().Equal(decimal.RequireFromString("350")))
	assert.True(t, s.TotalDiscount().Equal(decimal.RequireFromString("100")))
}

func TestStore_ItemsReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Add(product("a", "100", nil))

	items := s.Items()
	items[0].Quantity = 50

	assert.Equal(t, 1, s.Items()[0].Quantity)
}
