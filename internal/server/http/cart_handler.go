package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ultra-white/keda/internal/domain"
	"github.com/ultra-white/keda/internal/server/service"
)

// CartService is what the handlers need from the service layer.
// Consumers define this interface, not the implementation.
type CartService interface {
	GetCart(ctx context.Context, userID string) ([]domain.LineItem, error)
	ReplaceCart(ctx context.Context, userID string, items []domain.LineItem) error
	AddItem(ctx context.Context, userID, productID string, quantity int, size *int) error
	UpdateQuantity(ctx context.Context, userID, productID string, quantity int, size *int) error
	RemoveItem(ctx context.Context, userID, productID string, size *int) error
	ClearCart(ctx context.Context, userID string) error
	GetPrice(ctx context.Context, productID string) (service.Price, error)
}

type CartHandler struct {
	service CartService
	timeout time.Duration
}

func NewCartHandler(svc CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		service: svc,
		timeout: timeout,
	}
}

type itemsDTO struct {
	Items []domain.LineItem `json:"items"`
}

type itemRequestDTO struct {
	ProductID    string `json:"productId"`
	Quantity     int    `json:"quantity"`
	SelectedSize *int   `json:"selectedSize"`
}

type priceRequestDTO struct {
	ProductID string `json:"productId"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// GetCart returns the caller's cart, an empty list when none exists.
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	items, err := h.service.GetCart(ctx, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load cart")
		return
	}
	if items == nil {
		items = []domain.LineItem{}
	}

	respondJSON(w, http.StatusOK, itemsDTO{Items: items})
}

// ReplaceCart overwrites the caller's whole cart with the given list.
func (h *CartHandler) ReplaceCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req itemsDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	for _, item := range req.Items {
		if item.Product.ID == "" {
			respondError(w, http.StatusBadRequest, "invalid_item", "every item needs a product id")
			return
		}
	}

	userID := getUserIDFromContext(r.Context())
	if err := h.service.ReplaceCart(ctx, userID, req.Items); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to update cart")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// AddItem increments or creates a single line item.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	req, ok := decodeItemRequest(w, r)
	if !ok {
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	userID := getUserIDFromContext(r.Context())
	err := h.service.AddItem(ctx, userID, req.ProductID, req.Quantity, req.SelectedSize)
	if errors.Is(err, service.ErrProductNotFound) {
		respondError(w, http.StatusNotFound, "product_not_found", "product does not exist")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to add item")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// UpdateItem sets a single line item's quantity; zero or below
// deletes it.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	req, ok := decodeItemRequest(w, r)
	if !ok {
		return
	}

	userID := getUserIDFromContext(r.Context())
	if err := h.service.UpdateQuantity(ctx, userID, req.ProductID, req.Quantity, req.SelectedSize); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to update item")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// RemoveItem deletes a single line item. Without a selectedSize every
// size variant of the product goes.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	req, ok := decodeItemRequest(w, r)
	if !ok {
		return
	}

	userID := getUserIDFromContext(r.Context())
	if err := h.service.RemoveItem(ctx, userID, req.ProductID, req.SelectedSize); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to remove item")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ClearCart deletes all of the caller's line items.
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if err := h.service.ClearCart(ctx, userID); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to clear cart")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GetPrice returns the current price snapshot for a product.
func (h *CartHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req priceRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productId is required")
		return
	}

	price, err := h.service.GetPrice(ctx, req.ProductID)
	if errors.Is(err, service.ErrProductNotFound) {
		respondError(w, http.StatusNotFound, "product_not_found", "product does not exist")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to look up price")
		return
	}

	respondJSON(w, http.StatusOK, price)
}

func decodeItemRequest(w http.ResponseWriter, r *http.Request) (itemRequestDTO, bool) {
	var req itemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return req, false
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productId is required")
		return req, false
	}
	return req, true
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, details string) {
	respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    code,
		Details: details,
	})
}
