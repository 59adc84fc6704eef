package delivery

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/leejamie-42/online-store/internal/respond"
	"github.com/leejamie-42/online-store/internal/shipping"
)

type Handler struct {
	Repo *Repo
}

type createShipmentReq struct {
	ShipmentID       string `json:"shipment_id"`
	OrderID          string `json:"order_id"`
	WarehouseAddress string `json:"warehouse_address"`
	ProductID        string `json:"product_id"`
	Quantity         int    `json:"quantity"`
}

func (h *Handler) Register(r *chi.Mux) {
	r.Post("/api/shipments", h.createShipment)
	r.Get("/api/shipments/{id}", h.getShipment)
}

func (h *Handler) createShipment(w http.ResponseWriter, r *http.Request) {
	var req createShipmentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.OrderID == "" || req.WarehouseAddress == "" || req.Quantity <= 0 {
		respond.WriteError(w, http.StatusUnprocessableEntity, "order_id, warehouse_address and positive quantity required")
		return
	}
	if req.ShipmentID == "" {
		req.ShipmentID = uuid.NewString()
	}

	s := Shipment{
		ID:               req.ShipmentID,
		OrderID:          req.OrderID,
		WarehouseAddress: req.WarehouseAddress,
		ProductID:        req.ProductID,
		Quantity:         req.Quantity,
		Status:           shipping.LegProcessing,
		Progress:         0,
	}
	if err := h.Repo.Create(r.Context(), s); err != nil {
		respond.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusCreated, map[string]string{
		"shipment_id": s.ID,
		"status":      string(s.Status),
	})
}

func (h *Handler) getShipment(w http.ResponseWriter, r *http.Request) {
	s, err := h.Repo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.WriteError(w, http.StatusNotFound, "shipment not found")
		return
	}
	respond.WriteJSON(w, http.StatusOK, s)
}
