package bank

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/leejamie-42/online-store/internal/respond"
)

type Handler struct {
	Proc *Processor
}

type createPaymentReq struct {
	OrderID     string `json:"order_id"`
	AmountCents int    `json:"amount_cents"`
}

type createRefundReq struct {
	PaymentID   string `json:"payment_id"`
	OrderID     string `json:"order_id"`
	AmountCents int    `json:"amount_cents"`
	Reason      string `json:"reason"`
}

func (h *Handler) Register(r *chi.Mux) {
	r.Post("/api/payments", h.createPayment)
	r.Post("/api/refunds", h.createRefund)
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.OrderID == "" || req.AmountCents <= 0 {
		respond.WriteError(w, http.StatusUnprocessableEntity, "order_id and positive amount_cents required")
		return
	}
	ins := h.Proc.AcceptPayment(req.OrderID, req.AmountCents)
	respond.WriteJSON(w, http.StatusCreated, ins)
}

func (h *Handler) createRefund(w http.ResponseWriter, r *http.Request) {
	var req createRefundReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.PaymentID == "" || req.OrderID == "" {
		respond.WriteError(w, http.StatusUnprocessableEntity, "payment_id and order_id required")
		return
	}
	rf, err := h.Proc.AcceptRefund(req.PaymentID, req.OrderID, req.AmountCents, req.Reason)
	switch {
	case errors.Is(err, ErrUnknownPayment):
		respond.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotSettled), errors.Is(err, ErrRefundExists):
		respond.WriteError(w, http.StatusConflict, err.Error())
	case err != nil:
		respond.WriteError(w, http.StatusInternalServerError, err.Error())
	default:
		respond.WriteJSON(w, http.StatusCreated, rf)
	}
}
