package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig carries the dial settings for the cart database. Zero
// values fall back to defaults sized for a single carts collection.
type MongoConfig struct {
	URI         string
	Database    string
	DialTimeout time.Duration
	MaxPoolSize uint64
}

// ConnectMongo dials the cart database and verifies it answers before
// the server takes traffic.
func ConnectMongo(ctx context.Context, cfg MongoConfig) (*mongo.Database, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 100
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.DialTimeout).
		SetServerSelectionTimeout(cfg.DialTimeout / 2).
		SetMaxPoolSize(cfg.MaxPoolSize)

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	client, err := mongo.Connect(dialCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(dialCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(cfg.Database), nil
}
