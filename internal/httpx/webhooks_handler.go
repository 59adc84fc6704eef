package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/leejamie-42/online-store/internal/metrics"
	"github.com/leejamie-42/online-store/internal/orders"
	"github.com/leejamie-42/online-store/internal/respond"
	"github.com/leejamie-42/online-store/internal/shipping"
	"github.com/sirupsen/logrus"
)

// WebhooksHandler receives the asynchronous completions from the bank
// and the delivery tracker. Delivery is at-least-once with no ordering
// guarantee: handlers answer quickly, dedupe on the event identity, and
// ask for a retry (409) when an event outruns the local rows.
type WebhooksHandler struct {
	Saga *orders.Saga
	Log  *logrus.Entry
}

const (
	PaymentCompletedStatus = "BPAY_PAYMENT_COMPLETED"
	RefundCompletedStatus  = "REFUND_COMPLETED"
)

type PaymentWebhook struct {
	OrderID   string    `json:"orderId"`
	PaymentID string    `json:"paymentId"`
	Status    string    `json:"status"`
	Amount    int       `json:"amount"`
	PaidAt    time.Time `json:"paidAt"`
}

type DeliveryWebhook struct {
	ShipmentID string    `json:"shipmentId"`
	Event      string    `json:"event"`
	Timestamp  time.Time `json:"timestamp"`
}

func (h *WebhooksHandler) Register(r *chi.Mux) {
	r.Post("/webhooks/payment", h.payment)
	r.Post("/webhooks/delivery", h.delivery)
}

func (h *WebhooksHandler) payment(w http.ResponseWriter, r *http.Request) {
	var p PaymentWebhook
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if p.OrderID == "" || p.PaymentID == "" {
		respond.WriteError(w, http.StatusUnprocessableEntity, "orderId and paymentId required")
		return
	}

	// the sender repeats the same paymentId+status on redelivery, which
	// makes the pair the event identity
	eventID := fmt.Sprintf("%s:%s", p.PaymentID, p.Status)

	var err error
	switch p.Status {
	case PaymentCompletedStatus:
		err = h.Saga.OnPaymentCompleted(r.Context(), eventID, p.OrderID)
	case RefundCompletedStatus:
		err = h.Saga.OnRefundCompleted(r.Context(), eventID, p.OrderID)
	default:
		metrics.WebhookEvents.WithLabelValues("payment", "rejected").Inc()
		respond.WriteError(w, http.StatusUnprocessableEntity, "unknown status "+p.Status)
		return
	}

	if err != nil {
		if errors.Is(err, orders.ErrRetryLater) {
			metrics.WebhookEvents.WithLabelValues("payment", "rejected").Inc()
			respond.WriteError(w, http.StatusConflict, err.Error())
			return
		}
		metrics.WebhookEvents.WithLabelValues("payment", "rejected").Inc()
		h.Log.WithError(err).WithField("order_id", p.OrderID).Error("payment webhook failed")
		respond.WriteError(w, http.StatusInternalServerError, "webhook processing failed")
		return
	}
	metrics.WebhookEvents.WithLabelValues("payment", "applied").Inc()
	respond.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *WebhooksHandler) delivery(w http.ResponseWriter, r *http.Request) {
	var d DeliveryWebhook
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if d.ShipmentID == "" {
		respond.WriteError(w, http.StatusUnprocessableEntity, "shipmentId required")
		return
	}

	var to shipping.LegStatus
	switch d.Event {
	case "PICKED_UP":
		to = shipping.LegPickedUp
	case "IN_TRANSIT":
		to = shipping.LegInTransit
	case "DELIVERED":
		to = shipping.LegDelivered
	case "LOST":
		to = shipping.LegLost
	default:
		metrics.WebhookEvents.WithLabelValues("delivery", "rejected").Inc()
		respond.WriteError(w, http.StatusUnprocessableEntity, "unknown event "+d.Event)
		return
	}

	eventID := fmt.Sprintf("%s:%s", d.ShipmentID, d.Event)
	if err := h.Saga.OnShipmentEvent(r.Context(), eventID, d.ShipmentID, to); err != nil {
		if errors.Is(err, orders.ErrRetryLater) {
			metrics.WebhookEvents.WithLabelValues("delivery", "rejected").Inc()
			respond.WriteError(w, http.StatusConflict, err.Error())
			return
		}
		metrics.WebhookEvents.WithLabelValues("delivery", "rejected").Inc()
		h.Log.WithError(err).WithField("shipment_id", d.ShipmentID).Error("delivery webhook failed")
		respond.WriteError(w, http.StatusInternalServerError, "webhook processing failed")
		return
	}
	metrics.WebhookEvents.WithLabelValues("delivery", "applied").Inc()
	respond.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}
