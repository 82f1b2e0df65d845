package backend

import (
	"context"
	"errors"

	"github.com/ultra-white/keda/internal/domain"
)

// Backend is one durable home for a cart. A session talks to exactly
// one backend at a time and swaps Local for Remote once, at the
// guest-to-authenticated merge.
type Backend interface {
	Load(ctx context.Context) ([]domain.LineItem, error)
	Replace(ctx context.Context, items []domain.LineItem) error
	Clear(ctx context.Context) error
}

// ItemWriter is the single-item fast path the remote storage exposes
// on top of full-list replacement. The session engine uses UpdateItem
// and RemoveItem for their rollback semantics; adds ride the debounced
// full-list replace instead, so AddItem covers the storage API's add
// endpoint for callers doing one-shot increments outside a session.
type ItemWriter interface {
	AddItem(ctx context.Context, productID string, quantity int, size *int) error
	UpdateItem(ctx context.Context, productID string, quantity int, size *int) error
	RemoveItem(ctx context.Context, productID string, size *int) error
}

// ErrUnauthorized is returned when the storage API rejects the
// session's identity (expired or missing sign-in). Local recovery
// cannot fix it, so callers surface it to the user.
var ErrUnauthorized = errors.New("cart storage requires sign-in")
