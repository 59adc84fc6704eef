package inventory

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/leejamie-42/online-store/internal/respond"
)

// Handler exposes the engine as the synchronous stock RPC. The store
// blocks on these calls; every operation is one local transaction, no
// lock survives the response.
type Handler struct {
	Svc *Service
}

func (h *Handler) Register(r *chi.Mux) {
	r.Post("/rpc/check-stock", h.checkStock)
	r.Post("/rpc/reserve-stock", h.reserveStock)
	r.Post("/rpc/commit-stock", h.commitStock)
	r.Post("/rpc/rollback-stock", h.rollbackStock)
}

func (h *Handler) checkStock(w http.ResponseWriter, r *http.Request) {
	var req CheckStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ProductID == "" || req.Quantity <= 0 {
		respond.WriteError(w, http.StatusUnprocessableEntity, "productId and positive quantity required")
		return
	}
	resp, err := h.Svc.CheckStock(r.Context(), req)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) reserveStock(w http.ResponseWriter, r *http.Request) {
	var req ReserveStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ProductID == "" || req.OrderID == "" || req.Quantity <= 0 {
		respond.WriteError(w, http.StatusUnprocessableEntity, "productId, orderId and positive quantity required")
		return
	}
	resp, err := h.Svc.ReserveStock(r.Context(), req)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// conflicts (insufficient stock) ride in the response body with 200;
	// the RPC contract distinguishes them via success=false
	respond.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) commitStock(w http.ResponseWriter, r *http.Request) {
	var req CommitStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.OrderID == "" {
		respond.WriteError(w, http.StatusUnprocessableEntity, "orderId required")
		return
	}
	resp, err := h.Svc.CommitStock(r.Context(), req)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) rollbackStock(w http.ResponseWriter, r *http.Request) {
	var req RollbackStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.OrderID == "" {
		respond.WriteError(w, http.StatusUnprocessableEntity, "orderId required")
		return
	}
	resp, err := h.Svc.RollbackStock(r.Context(), req)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, resp)
}
