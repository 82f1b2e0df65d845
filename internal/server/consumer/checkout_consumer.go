// Package consumer empties a user's cart once their checkout
// completes, driven by checkout events rather than a client call.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/segmentio/kafka-go"
)

// CartClearer is the slice of the cart service the consumer needs.
type CartClearer interface {
	ClearCart(ctx context.Context, userID string) error
}

type Consumer struct {
	carts  CartClearer
	reader *kafka.Reader
}

func New(carts CartClearer, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    "checkout-completed",
		GroupID:  "cart-storage-consumer",
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{carts: carts, reader: reader}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("error reading checkout message: %v", err)
			}
			continue
		}

		if err := c.handleMessage(ctx, m.Value); err != nil {
			log.Printf("error handling checkout message: %v", err)
		}
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		log.Printf("error closing checkout reader: %v", err)
	}
}

func (c *Consumer) handleMessage(ctx context.Context, value []byte) error {
	var payload struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(value, &payload); err != nil {
		return fmt.Errorf("parse checkout event: %w", err)
	}
	if payload.UserID == "" {
		return fmt.Errorf("checkout event missing user_id")
	}

	if err := c.carts.ClearCart(ctx, payload.UserID); err != nil {
		return fmt.Errorf("clear cart for user %s: %w", payload.UserID, err)
	}
	return nil
}
