// Package cartsync is the client-side shopping cart engine: an
// in-memory state store, a persistence reconciler that picks between
// server and device storage at the authentication boundary, and a
// debounced sync scheduler that coalesces mutation bursts into single
// storage writes.
package cartsync

import (
	"sync"

	"github.com/shopspring/decimal"
	"github.com/ultra-white/keda/internal/domain"
)

// Store holds the canonical in-process line item list. Items are
// unique by (product id, size); a repeated add increments the
// existing item instead of appending. All methods are safe for
// concurrent use, read-modify-write runs under one lock.
//
// The store performs no persistence itself, that is the session's
// job.
type Store struct {
	mu    sync.Mutex
	items []domain.LineItem
}

func NewStore() *Store {
	return &Store{}
}

// Add puts one unit of product into the cart, incrementing the
// matching item if the key already exists. The caller is expected to
// have resolved the size question before calling (a size-requiring
// product arrives here with SelectedSize set).
func (s *Store) Add(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.ItemKey(p.ID, p.SelectedSize)
	for i := range s.items {
		if s.items[i].Key() == key {
			s.items[i].Quantity = domain.ClampQuantity(s.items[i].Quantity + 1)
			return
		}
	}
	s.items = append(s.items, domain.LineItem{Product: p, Quantity: 1})
}

// Remove drops the item matching productID and size. A nil size drops
// every size variant of the product, the same meaning an omitted
// selectedSize has on the storage wire. Removing an absent key is a
// no-op. Reports whether anything changed.
func (s *Store) Remove(productID string, size *int) bool {
	if size == nil {
		return s.RemoveProduct(productID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.ItemKey(productID, size)
	for i := range s.items {
		if s.items[i].Key() == key {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveProduct drops every size variant of productID. Reports
// whether anything changed.
func (s *Store) RemoveProduct(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0]
	changed := false
	for _, it := range s.items {
		if it.Product.ID == productID {
			changed = true
			continue
		}
		kept = append(kept, it)
	}
	s.items = kept
	return changed
}

// SetQuantity replaces the matching item's quantity, clamped to the
// valid range. A quantity at or below zero removes the item. A nil
// size updates every size variant of the product. Reports whether
// anything changed.
func (s *Store) SetQuantity(productID string, quantity int, size *int) bool {
	if quantity <= 0 {
		return s.Remove(productID, size)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	quantity = domain.ClampQuantity(quantity)
	changed := false
	for i := range s.items {
		if s.items[i].Product.ID != productID {
			continue
		}
		if size != nil && s.items[i].Key() != domain.ItemKey(productID, size) {
			continue
		}
		s.items[i].Quantity = quantity
		changed = true
	}
	return changed
}

// Clear empties the list unconditionally.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}

// ReplaceAll swaps the whole list, deduplicating by key and clamping
// quantities so external data cannot break the store's invariants.
// Used by loads, merges and rollbacks.
func (s *Store) ReplaceAll(items []domain.LineItem) {
	clean := domain.MergeItems(items, nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = clean
}

// Items returns a copy of the current list in insertion order.
func (s *Store) Items() []domain.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.LineItem, len(s.items))
	copy(out, s.items)
	return out
}

// Derived aggregates are recomputed from the list on every call, they
// are never cached incrementally.

func (s *Store) ItemCount() int {
	return domain.ItemCount(s.Items())
}

func (s *Store) TotalPrice() decimal.Decimal {
	return domain.TotalPrice(s.Items())
}

func (s *Store) TotalPriceWithoutDiscount() decimal.Decimal {
	return domain.TotalPriceWithoutDiscount(s.Items())
}

func (s *Store) TotalDiscount() decimal.Decimal {
	return domain.TotalDiscount(s.Items())
}
