package bank

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Processor is the bank-like payment processor, kept in memory. It
// accepts instructions synchronously and settles them asynchronously
// after a configurable delay, which closes the webhook loop end to end
// without a real bank.

var (
	ErrUnknownPayment = errors.New("unknown payment")
	ErrNotSettled     = errors.New("payment not settled yet")
	ErrRefundExists   = errors.New("refund already exists for payment")
)

type Instruction struct {
	ID          string    `json:"payment_id"`
	OrderID     string    `json:"order_id"`
	AmountCents int       `json:"amount_cents"`
	Status      string    `json:"status"` // PROCESSING | COMPLETED
	DueAt       time.Time `json:"-"`
}

type RefundInstruction struct {
	ID          string    `json:"refund_id"`
	PaymentID   string    `json:"payment_id"`
	OrderID     string    `json:"order_id"`
	AmountCents int       `json:"amount_cents"`
	Reason      string    `json:"reason"`
	Status      string    `json:"status"`
	DueAt       time.Time `json:"-"`
}

type Processor struct {
	mu          sync.RWMutex
	payments    map[string]*Instruction       // by payment id
	byOrder     map[string]string             // order id -> payment id
	refunds     map[string]*RefundInstruction // by payment id
	settleDelay time.Duration
	now         func() time.Time
}

func NewProcessor(settleDelay time.Duration) *Processor {
	return &Processor{
		payments:    make(map[string]*Instruction),
		byOrder:     make(map[string]string),
		refunds:     make(map[string]*RefundInstruction),
		settleDelay: settleDelay,
		now:         time.Now,
	}
}

// AcceptPayment is idempotent on order id: a duplicate request returns
// the existing instruction instead of charging twice.
func (p *Processor) AcceptPayment(orderID string, amountCents int) Instruction {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id, ok := p.byOrder[orderID]; ok {
		return *p.payments[id]
	}
	ins := &Instruction{
		ID:          uuid.NewString(),
		OrderID:     orderID,
		AmountCents: amountCents,
		Status:      "PROCESSING",
		DueAt:       p.now().Add(p.settleDelay),
	}
	p.payments[ins.ID] = ins
	p.byOrder[orderID] = ins.ID
	return *ins
}

// AcceptRefund rejects unknown or unsettled payments and enforces one
// refund per payment.
func (p *Processor) AcceptRefund(paymentID, orderID string, amountCents int, reason string) (RefundInstruction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pay, ok := p.payments[paymentID]
	if !ok {
		return RefundInstruction{}, ErrUnknownPayment
	}
	if pay.Status != "COMPLETED" {
		return RefundInstruction{}, ErrNotSettled
	}
	if _, ok := p.refunds[paymentID]; ok {
		return RefundInstruction{}, ErrRefundExists
	}
	rf := &RefundInstruction{
		ID:          uuid.NewString(),
		PaymentID:   paymentID,
		OrderID:     orderID,
		AmountCents: amountCents,
		Reason:      reason,
		Status:      "PROCESSING",
		DueAt:       p.now().Add(p.settleDelay),
	}
	p.refunds[paymentID] = rf
	return *rf, nil
}

// DuePayments returns instructions whose settle delay has elapsed. They
// stay PROCESSING until SettlePayment confirms the webhook went out, so
// a failed notification is simply retried on the next tick.
func (p *Processor) DuePayments() []Instruction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	now := p.now()
	var due []Instruction
	for _, ins := range p.payments {
		if ins.Status == "PROCESSING" && !ins.DueAt.After(now) {
			due = append(due, *ins)
		}
	}
	return due
}

func (p *Processor) DueRefunds() []RefundInstruction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	now := p.now()
	var due []RefundInstruction
	for _, rf := range p.refunds {
		if rf.Status == "PROCESSING" && !rf.DueAt.After(now) {
			due = append(due, *rf)
		}
	}
	return due
}

func (p *Processor) SettlePayment(paymentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ins, ok := p.payments[paymentID]; ok {
		ins.Status = "COMPLETED"
	}
}

func (p *Processor) SettleRefund(paymentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rf, ok := p.refunds[paymentID]; ok {
		rf.Status = "COMPLETED"
	}
}
