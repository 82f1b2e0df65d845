package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxQuantity is the per-line-item cap. Values above it are clamped,
// never stored.
const MaxQuantity = 100

// LineItem is one cart entry: a product snapshot plus a quantity in
// [1, MaxQuantity]. A quantity at or below zero is never stored, such
// mutations resolve to removal.
type LineItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Key returns the item's uniqueness key within a cart.
func (li LineItem) Key() string {
	return ItemKey(li.Product.ID, li.Product.SelectedSize)
}

// ItemKey builds the composite cart key for a product and an optional
// size variant. Sizeless products share the "default" slot.
func ItemKey(productID string, size *int) string {
	if size == nil {
		return productID + "_default"
	}
	return fmt.Sprintf("%s_%d", productID, *size)
}

// ClampQuantity forces q into [1, MaxQuantity]. Callers are expected
// to have turned q <= 0 into a removal already; clamping to 1 keeps
// the invariant even if they did not.
func ClampQuantity(q int) int {
	if q < 1 {
		return 1
	}
	if q > MaxQuantity {
		return MaxQuantity
	}
	return q
}

// ItemCount is the total quantity across items.
func ItemCount(items []LineItem) int {
	count := 0
	for _, it := range items {
		count += it.Quantity
	}
	return count
}

// TotalPrice is the sum of unit price times quantity.
func TotalPrice(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Product.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// TotalPriceWithoutDiscount substitutes the pre-discount price where
// one is present.
func TotalPriceWithoutDiscount(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		price := it.Product.Price
		if it.Product.OldPrice != nil {
			price = *it.Product.OldPrice
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// TotalDiscount is the saving against pre-discount prices.
func TotalDiscount(items []LineItem) decimal.Decimal {
	return TotalPriceWithoutDiscount(items).Sub(TotalPrice(items))
}

// MergeItems unions a server cart with a locally kept guest cart.
// Server items seed the result; a local item with the same key adds
// its quantity to the server item (both carts' intents are kept), a
// local-only item is appended after all server items. Quantities are
// clamped after the addition.
func MergeItems(server, local []LineItem) []LineItem {
	merged := make([]LineItem, 0, len(server)+len(local))
	index := make(map[string]int, len(server))

	for _, it := range server {
		key := it.Key()
		if pos, ok := index[key]; ok {
			merged[pos].Quantity = ClampQuantity(merged[pos].Quantity + it.Quantity)
			continue
		}
		it.Quantity = ClampQuantity(it.Quantity)
		index[key] = len(merged)
		merged = append(merged, it)
	}

	for _, it := range local {
		key := it.Key()
		if pos, ok := index[key]; ok {
			merged[pos].Quantity = ClampQuantity(merged[pos].Quantity + it.Quantity)
			continue
		}
		it.Quantity = ClampQuantity(it.Quantity)
		index[key] = len(merged)
		merged = append(merged, it)
	}

	return merged
}
