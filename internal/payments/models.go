package payments

import (
	"errors"
	"time"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentCompleted  PaymentStatus = "COMPLETED"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentRefunded   PaymentStatus = "REFUNDED"
)

type RefundStatus string

const (
	RefundPending    RefundStatus = "PENDING"
	RefundProcessing RefundStatus = "PROCESSING"
	RefundCompleted  RefundStatus = "COMPLETED"
	RefundFailed     RefundStatus = "FAILED"
)

var (
	// Not-found: a completion webhook can arrive before the local row is
	// visible; the sender must retry, not drop.
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrPaymentNotCompleted = errors.New("payment not completed")
	// Conflict: one refund per payment.
	ErrDuplicateRefund = errors.New("refund already requested for payment")
)

type Payment struct {
	ID          string        `json:"id"`
	OrderID     string        `json:"order_id"`
	AmountCents int           `json:"amount_cents"`
	Status      PaymentStatus `json:"status"`
	BankRef     string        `json:"bank_ref"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type Refund struct {
	ID          string       `json:"id"`
	PaymentID   string       `json:"payment_id"`
	AmountCents int          `json:"amount_cents"`
	Reason      string       `json:"reason"`
	Status      RefundStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
