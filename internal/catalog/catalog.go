// Package catalog looks products up in the storefront catalog. The
// cart uses it to validate an addition and to snapshot the price at
// the moment a line item is created; prices are not revalidated after
// that.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrNotFound is returned for a product id the catalog does not know.
var ErrNotFound = errors.New("product not found")

// Price is a point-in-time price snapshot for a product.
type Price struct {
	Price    decimal.Decimal  `json:"price"`
	OldPrice *decimal.Decimal `json:"oldPrice,omitempty"`
}

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   5 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Lookup fetches the current price snapshot for productID.
func (c *Client) Lookup(ctx context.Context, productID string) (Price, error) {
	payload, err := json.Marshal(map[string]string{"productId": productID})
	if err != nil {
		return Price{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/cart/get-price", bytes.NewReader(payload))
	if err != nil {
		return Price{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Price{}, fmt.Errorf("get-price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Price{}, ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return Price{}, fmt.Errorf("get-price: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Price{}, fmt.Errorf("read response: %w", err)
	}

	var price Price
	if err := json.Unmarshal(data, &price); err != nil {
		return Price{}, fmt.Errorf("decode price: %w", err)
	}

	return price, nil
}
