package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ultra-white/keda/internal/domain"
	"github.com/ultra-white/keda/internal/server/cache"
	"github.com/ultra-white/keda/internal/server/products"
	"github.com/ultra-white/keda/internal/server/repository"
	"golang.org/x/sync/singleflight"
)

// ErrProductNotFound is returned when an addition names a product the
// catalog does not carry.
var ErrProductNotFound = errors.New("product not found")

// ProductStore is the catalog the service validates against.
type ProductStore interface {
	GetProduct(ctx context.Context, id string) (*products.Product, error)
}

// Price is a point-in-time price snapshot for a product.
type Price struct {
	Price    decimal.Decimal  `json:"price"`
	OldPrice *decimal.Decimal `json:"oldPrice,omitempty"`
}

// CartService owns the server-side cart rules: quantities clamped to
// the valid range, sizes clamped to the size domain, products
// verified against the catalog and their prices snapshotted at write
// time.
type CartService struct {
	repo     repository.CartRepository
	cache    cache.CartCache
	products ProductStore
	sfg      singleflight.Group // Prevents cache stampede
}

func NewCartService(repo repository.CartRepository, cartCache cache.CartCache, productStore ProductStore) *CartService {
	return &CartService{
		repo:     repo,
		cache:    cartCache,
		products: productStore,
	}
}

// GetCart returns the user's items, empty when no cart exists yet.
func (s *CartService) GetCart(ctx context.Context, userID string) ([]domain.LineItem, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		items, err := s.cache.Get(ctx, userID)
		if err == nil {
			return items, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("cache get error: %v", err) // log cache error but continue
		}

		items, errGet := s.repo.GetCart(ctx, userID)
		if errors.Is(errGet, repository.ErrCartNotFound) {
			return []domain.LineItem{}, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		go func() {
			if errSet := s.cache.Set(context.Background(), userID, items); errSet != nil {
				log.Printf("cache set error: %v", errSet)
			}
		}()

		return items, nil
	})
	if err != nil {
		return nil, err
	}

	return v.([]domain.LineItem), nil
}

// ReplaceCart overwrites the whole persisted cart. Each incoming item
// is verified against the catalog and its price re-snapshotted;
// unknown products are skipped rather than failing the replace, the
// client may hold a stale catalog.
func (s *CartService) ReplaceCart(ctx context.Context, userID string, items []domain.LineItem) error {
	verified := make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		snapshot, err := s.snapshotItem(ctx, item.Product.ID, item.Quantity, item.Product.SelectedSize)
		if errors.Is(err, ErrProductNotFound) {
			log.Printf("skipping unknown product %q in cart replace", item.Product.ID)
			continue
		}
		if err != nil {
			return err
		}
		verified = append(verified, snapshot)
	}

	if err := s.repo.ReplaceCart(ctx, userID, verified); err != nil {
		log.Printf("repo replace cart error: %v", err)
		return err
	}

	s.invalidateCache(userID)
	return nil
}

// AddItem increments or creates a single line, snapshotting the
// product's current price.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int, size *int) error {
	item, err := s.snapshotItem(ctx, productID, quantity, size)
	if err != nil {
		return err
	}

	if err := s.repo.AddItem(ctx, userID, item); err != nil {
		log.Printf("repo add item error: %v", err)
		return err
	}

	s.invalidateCache(userID)
	return nil
}

// UpdateQuantity sets a single line's quantity; zero or below deletes
// it. A nil size targets every size variant.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID string, quantity int, size *int) error {
	var err error
	if quantity <= 0 {
		err = s.repo.RemoveItem(ctx, userID, productID, clampSize(size))
	} else {
		err = s.repo.UpdateItemQuantity(ctx, userID, productID, domain.ClampQuantity(quantity), clampSize(size))
	}
	if err != nil {
		log.Printf("repo update item quantity error: %v", err)
		return err
	}

	s.invalidateCache(userID)
	return nil
}

// RemoveItem deletes a single line; a nil size deletes every size
// variant. Idempotent.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID string, size *int) error {
	if err := s.repo.RemoveItem(ctx, userID, productID, clampSize(size)); err != nil {
		log.Printf("repo remove item error: %v", err)
		return err
	}

	s.invalidateCache(userID)
	return nil
}

// ClearCart deletes the user's cart outright.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	if err := s.repo.DeleteCart(ctx, userID); err != nil {
		log.Printf("repo delete cart error: %v", err)
		return err
	}

	s.invalidateCache(userID)
	return nil
}

// GetPrice looks a product's current price up for the storefront.
func (s *CartService) GetPrice(ctx context.Context, productID string) (Price, error) {
	p, err := s.products.GetProduct(ctx, productID)
	if errors.Is(err, products.ErrProductNotFound) {
		return Price{}, ErrProductNotFound
	}
	if err != nil {
		return Price{}, err
	}
	return Price{Price: p.Price, OldPrice: p.OldPrice}, nil
}

// snapshotItem verifies the product and builds the line item stored
// server-side: catalog display fields and the price at this moment.
func (s *CartService) snapshotItem(ctx context.Context, productID string, quantity int, size *int) (domain.LineItem, error) {
	if productID == "" {
		return domain.LineItem{}, ErrProductNotFound
	}

	p, err := s.products.GetProduct(ctx, productID)
	if errors.Is(err, products.ErrProductNotFound) {
		return domain.LineItem{}, ErrProductNotFound
	}
	if err != nil {
		return domain.LineItem{}, err
	}

	return domain.LineItem{
		Product: domain.Product{
			ID:           p.ID,
			Brand:        p.Brand,
			Model:        p.Model,
			Image:        p.Image,
			Price:        p.Price,
			OldPrice:     p.OldPrice,
			SelectedSize: clampSize(size),
		},
		Quantity: domain.ClampQuantity(quantity),
	}, nil
}

// clampSize forces an out-of-range size back into the sold range
// instead of rejecting it.
func clampSize(size *int) *int {
	if size == nil {
		return nil
	}
	s := *size
	if s < domain.MinSize {
		s = domain.MinSize
	}
	if s > domain.MaxSize {
		s = domain.MaxSize
	}
	return &s
}

func (s *CartService) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		log.Printf("cache invalidate error: %v", err)
	}
}
