package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/leejamie-42/online-store/internal/orders"
	"github.com/leejamie-42/online-store/internal/respond"
	"github.com/sirupsen/logrus"
)

type OrdersHandler struct {
	Saga *orders.Saga
	Repo *orders.Repo
	Log  *logrus.Entry
}

type CreateOrderReq struct {
	UserID    string              `json:"user_id"`
	ProductID string              `json:"product_id"`
	Quantity  int                 `json:"quantity"`
	Shipping  orders.ShippingInfo `json:"shipping"`
}

type CancelOrderReq struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/api/orders", h.createOrder)
	r.Post("/api/orders/{id}/cancel", h.cancelOrder)
	r.Get("/api/orders/{id}", h.getOrder)
	r.Get("/api/products", h.listProducts)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	o, err := h.Saga.CreateOrder(ctx, req.UserID, req.ProductID, req.Quantity, req.Shipping)
	if err != nil {
		h.writeOrderError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, map[string]any{
		"order_id":    o.ID,
		"total_cents": o.TotalCents,
		"status":      o.Status,
	})
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req CancelOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" {
		respond.WriteError(w, http.StatusUnprocessableEntity, "user_id required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	o, err := h.Saga.CancelOrder(ctx, orderID, req.UserID, req.Reason)
	if err != nil {
		h.writeOrderError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"order_id": o.ID, "status": o.Status})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	view, err := h.Saga.View(ctx, orderID)
	if err != nil {
		h.writeOrderError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, view)
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Repo.ListProducts(ctx)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, ps)
}

// writeOrderError maps the saga's error taxonomy onto status codes the
// caller can branch on: validation 422, conflict 409, not-found 404,
// infrastructure 502.
func (h *OrdersHandler) writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orders.ErrValidation):
		respond.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, orders.ErrStockConflict), errors.Is(err, orders.ErrNotCancellable):
		respond.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, orders.ErrNotFound):
		respond.WriteError(w, http.StatusNotFound, "order not found")
	default:
		h.Log.WithError(err).Error("order operation failed")
		respond.WriteError(w, http.StatusBadGateway, "temporarily unavailable, retry")
	}
}
