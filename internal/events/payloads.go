package events

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	EventEmailRequested    = "EmailRequested"
	EventInventoryRollback = "InventoryRollbackRequested"
	EventRefundRequested   = "RefundRequested"
	EventProductUpdated    = "ProductUpdated"
)

// Compensation reasons carried on rollback/refund events.
const (
	ReasonOrderCancelled = "ORDER_CANCELLED"
	ReasonPaymentFailed  = "PAYMENT_FAILED"
	ReasonShipmentLost   = "SHIPMENT_LOST"
)

// Email templates. Fire-and-forget: a failed send never blocks the saga.
const (
	EmailOrderCreated   = "order-created"
	EmailOrderCancelled = "order-cancelled"
	EmailOrderDelivered = "order-delivered"
)

type EmailPayload struct {
	To       string            `json:"to"`
	Template string            `json:"template"`
	OrderID  string            `json:"orderId"`
	Data     map[string]string `json:"data,omitempty"`
}

type InventoryRollbackPayload struct {
	OrderID     string    `json:"orderId"`
	ProductID   string    `json:"productId"`
	Amount      int       `json:"amount"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"timestamp"`
}

type RefundPayload struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

type ProductUpdatePayload struct {
	ProductID  string    `json:"productId"`
	Name       string    `json:"name"`
	PriceCents int       `json:"price"`
	Stock      int       `json:"stock"`
	Published  bool      `json:"published"`
	UpdatedAt  time.Time `json:"timestamp"`
}

// Each topic carries exactly one event family; the decoders below are
// the single place a raw message becomes a typed value. Unknown types
// are an error so they surface (and eventually dead-letter) instead of
// being silently dropped.

func DecodeRollback(env Envelope) (InventoryRollbackPayload, error) {
	var p InventoryRollbackPayload
	if env.EventType != EventInventoryRollback {
		return p, fmt.Errorf("unexpected event type %q on %s", env.EventType, TopicInventoryRollback)
	}
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return p, fmt.Errorf("decode rollback payload: %w", err)
	}
	return p, nil
}

func DecodeRefund(env Envelope) (RefundPayload, error) {
	var p RefundPayload
	if env.EventType != EventRefundRequested {
		return p, fmt.Errorf("unexpected event type %q on %s", env.EventType, TopicPaymentRefund)
	}
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return p, fmt.Errorf("decode refund payload: %w", err)
	}
	return p, nil
}

func DecodeProductUpdate(env Envelope) (ProductUpdatePayload, error) {
	var p ProductUpdatePayload
	if env.EventType != EventProductUpdated {
		return p, fmt.Errorf("unexpected event type %q on %s", env.EventType, TopicProductUpdates)
	}
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return p, fmt.Errorf("decode product update payload: %w", err)
	}
	return p, nil
}
