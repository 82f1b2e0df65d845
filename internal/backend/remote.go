package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/ultra-white/keda/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Remote talks to the Cart Storage API over HTTP. Identity is carried
// as a bearer token and resolved server-side, the client never sends
// a user id. All calls run through a circuit breaker so a flapping
// server degrades to fast local failures instead of piling up
// timeouts.
type Remote struct {
	baseURL string
	token   string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

type RemoteOption func(*Remote)

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *Remote) { r.client = c }
}

func NewRemote(baseURL, token string, opts ...RemoteOption) *Remote {
	r := &Remote{
		baseURL: baseURL,
		token:   token,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(r)
	}

	r.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "cart-storage",
		Timeout: 15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A 401/403 means the server is healthy and the session is
		// not, it must not open the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrUnauthorized)
		},
	})

	return r
}

type itemsPayload struct {
	Items []domain.LineItem `json:"items"`
}

type itemRequest struct {
	ProductID    string `json:"productId"`
	Quantity     int    `json:"quantity,omitempty"`
	SelectedSize *int   `json:"selectedSize,omitempty"`
}

func (r *Remote) Load(ctx context.Context) ([]domain.LineItem, error) {
	body, err := r.do(ctx, http.MethodGet, "/api/cart", nil)
	if err != nil {
		return nil, err
	}

	var payload itemsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode cart response: %w", err)
	}

	return payload.Items, nil
}

// Replace overwrites the whole persisted cart with items.
func (r *Remote) Replace(ctx context.Context, items []domain.LineItem) error {
	_, err := r.do(ctx, http.MethodPost, "/api/cart", itemsPayload{Items: items})
	return err
}

func (r *Remote) AddItem(ctx context.Context, productID string, quantity int, size *int) error {
	_, err := r.do(ctx, http.MethodPost, "/api/cart/add", itemRequest{
		ProductID:    productID,
		Quantity:     quantity,
		SelectedSize: size,
	})
	return err
}

func (r *Remote) UpdateItem(ctx context.Context, productID string, quantity int, size *int) error {
	_, err := r.do(ctx, http.MethodPost, "/api/cart/update", itemRequest{
		ProductID:    productID,
		Quantity:     quantity,
		SelectedSize: size,
	})
	return err
}

func (r *Remote) RemoveItem(ctx context.Context, productID string, size *int) error {
	_, err := r.do(ctx, http.MethodPost, "/api/cart/remove", itemRequest{
		ProductID:    productID,
		SelectedSize: size,
	})
	return err
}

func (r *Remote) Clear(ctx context.Context) error {
	_, err := r.do(ctx, http.MethodPost, "/api/cart/clear", nil)
	return err
}

func (r *Remote) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	return r.breaker.Execute(func() ([]byte, error) {
		var body io.Reader
		if payload != nil {
			data, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("marshal request: %w", err)
			}
			body = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if r.token != "" {
			req.Header.Set("Authorization", "Bearer "+r.token)
		}

		resp, err := r.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, ErrUnauthorized
		case resp.StatusCode >= 400:
			return nil, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
		}

		return data, nil
	})
}
