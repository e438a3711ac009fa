// Package handler implements the HTTP handlers of the intake API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mvolkov/sol-limit-bot/internal/domain"
	"github.com/mvolkov/sol-limit-bot/internal/service"
)

// OrderHandler serves limit order intake and history endpoints.
type OrderHandler struct {
	svc    *service.OrderService
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler backed by the given service.
func NewOrderHandler(svc *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, logger: logger.With(slog.String("handler", "orders"))}
}

// createOrderRequest is the POST /api/orders body.
type createOrderRequest struct {
	OwnerID      int64   `json:"owner_id"`
	Mint         string  `json:"mint"`
	Symbol       string  `json:"symbol"`
	Kind         string  `json:"kind"`
	TriggerPrice float64 `json:"trigger_price"`
	Amount       float64 `json:"amount"`
}

// CreateOrder registers a new limit order.
// POST /api/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.OwnerID <= 0 {
		writeError(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	order, err := h.svc.CreateOrder(r.Context(), service.CreateOrderParams{
		OwnerID:      req.OwnerID,
		Mint:         req.Mint,
		Symbol:       req.Symbol,
		Kind:         domain.OrderKind(req.Kind),
		TriggerPrice: req.TriggerPrice,
		Amount:       req.Amount,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidOrder) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("create order failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not create order")
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// CancelOrder withdraws an order.
// DELETE /api/orders/{id}?owner=
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "owner query parameter is required")
		return
	}
	orderID := r.PathValue("id")

	err := h.svc.CancelOrder(r.Context(), ownerID, orderID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled", "order_id": orderID})
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, domain.ErrNotCancellable):
		writeError(w, http.StatusConflict, "order can no longer be cancelled")
	default:
		h.logger.Error("cancel order failed", slog.String("order_id", orderID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not cancel order")
	}
}

// GetOrder returns one order.
// GET /api/orders/{id}?owner=
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "owner query parameter is required")
		return
	}
	orderID := r.PathValue("id")

	order, err := h.svc.GetOrder(r.Context(), ownerID, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.Error("get order failed", slog.String("order_id", orderID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not load order")
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// ListOrders returns the owner's orders.
// GET /api/orders?owner=
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "owner query parameter is required")
		return
	}

	orders, err := h.svc.ListOrders(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("list orders failed", slog.Int64("owner_id", ownerID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not list orders")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// ListTrades returns the owner's executed trades.
// GET /api/trades?owner=
func (h *OrderHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "owner query parameter is required")
		return
	}

	trades, err := h.svc.ListTrades(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("list trades failed", slog.Int64("owner_id", ownerID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not list trades")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"trades": trades})
}
