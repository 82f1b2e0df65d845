package repository

import (
	"context"
	"errors"

	"github.com/ultra-white/keda/internal/domain"
)

// CartRepository defines the storage operations for user carts.
// Consumers define this interface, not the MongoDB implementation.
//
// A nil size on UpdateItemQuantity/RemoveItem targets every size
// variant of the product. Removal and deletion are idempotent: a
// missing item or cart is not an error.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) ([]domain.LineItem, error)
	ReplaceCart(ctx context.Context, userID string, items []domain.LineItem) error
	AddItem(ctx context.Context, userID string, item domain.LineItem) error
	UpdateItemQuantity(ctx context.Context, userID, productID string, quantity int, size *int) error
	RemoveItem(ctx context.Context, userID, productID string, size *int) error
	DeleteCart(ctx context.Context, userID string) error
}

var ErrCartNotFound = errors.New("cart not found")
