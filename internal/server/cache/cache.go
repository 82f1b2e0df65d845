package cache

import (
	"context"
	"errors"

	"github.com/ultra-white/keda/internal/domain"
)

type CartCache interface {
	Get(ctx context.Context, userID string) ([]domain.LineItem, error)
	Set(ctx context.Context, userID string, items []domain.LineItem) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
