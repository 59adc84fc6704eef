package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

type Store interface {
	Create(ctx context.Context, p *Payment) error
	GetByOrder(ctx context.Context, orderID string) (Payment, error)
	MarkCompleted(ctx context.Context, orderID string) (bool, error)
	MarkFailed(ctx context.Context, orderID string) error
	CreateRefund(ctx context.Context, rf *Refund) error
	GetRefundByPayment(ctx context.Context, paymentID string) (Refund, error)
	SetRefundStatus(ctx context.Context, refundID string, status RefundStatus) error
	MarkRefundCompleted(ctx context.Context, orderID string) (bool, error)
}

// Coordinator talks to the bank and owns the Payment/Refund rows. It
// never transitions orders; that is the orchestrator's job.
type Coordinator struct {
	Repo Store
	Bank BankClient
	Log  *logrus.Entry
}

// CreatePayment requests instructions from the processor and persists
// the pending row. An unreachable processor is a retryable infra error;
// the orchestrator rolls the reservation back on that path.
func (c *Coordinator) CreatePayment(ctx context.Context, orderID string, amountCents int) (Payment, error) {
	bankRef, err := c.Bank.CreatePayment(ctx, orderID, amountCents)
	if err != nil {
		return Payment{}, fmt.Errorf("create payment: %w", err)
	}
	p := Payment{OrderID: orderID, AmountCents: amountCents, Status: PaymentPending, BankRef: bankRef}
	if err := c.Repo.Create(ctx, &p); err != nil {
		return Payment{}, fmt.Errorf("persist payment: %w", err)
	}
	c.Log.WithFields(logrus.Fields{"order_id": orderID, "bank_ref": bankRef}).Info("payment requested")
	return p, nil
}

// Refund requests a reversal. Requires a COMPLETED payment; a second
// refund for the same payment is rejected unless the first one never
// reached the bank (FAILED), which is re-requested instead.
func (c *Coordinator) Refund(ctx context.Context, orderID, reason string) error {
	p, err := c.Repo.GetByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if p.Status == PaymentRefunded {
		return ErrDuplicateRefund
	}
	if p.Status != PaymentCompleted {
		return fmt.Errorf("%w: status %s", ErrPaymentNotCompleted, p.Status)
	}

	rf := Refund{PaymentID: p.ID, AmountCents: p.AmountCents, Reason: reason, Status: RefundPending}
	err = c.Repo.CreateRefund(ctx, &rf)
	if errors.Is(err, ErrDuplicateRefund) {
		existing, gerr := c.Repo.GetRefundByPayment(ctx, p.ID)
		if gerr != nil || existing.Status != RefundFailed {
			return ErrDuplicateRefund
		}
		// earlier attempt never got accepted by the bank; retry it
		rf = existing
		if serr := c.Repo.SetRefundStatus(ctx, rf.ID, RefundPending); serr != nil {
			return serr
		}
	} else if err != nil {
		return err
	}

	if err := c.Bank.CreateRefund(ctx, p.BankRef, orderID, p.AmountCents, reason); err != nil {
		_ = c.Repo.SetRefundStatus(ctx, rf.ID, RefundFailed)
		return fmt.Errorf("request refund: %w", err)
	}
	c.Log.WithFields(logrus.Fields{"order_id": orderID, "reason": reason}).Info("refund requested")
	return nil
}

// OnPaymentCompleted applies a completion webhook to the Payment row.
// ErrPaymentNotFound means the webhook outran createOrder's commit; the
// caller answers the sender with a retryable status instead of dropping.
func (c *Coordinator) OnPaymentCompleted(ctx context.Context, orderID string) (bool, error) {
	flipped, err := c.Repo.MarkCompleted(ctx, orderID)
	if err != nil {
		return false, err
	}
	if !flipped {
		// make sure the row actually exists: terminal no-op vs not-yet-visible
		if _, gerr := c.Repo.GetByOrder(ctx, orderID); gerr != nil {
			return false, gerr
		}
		c.Log.WithField("order_id", orderID).Debug("payment already terminal, webhook ignored")
	}
	return flipped, nil
}

func (c *Coordinator) OnRefundCompleted(ctx context.Context, orderID string) (bool, error) {
	settled, err := c.Repo.MarkRefundCompleted(ctx, orderID)
	if err != nil {
		return false, err
	}
	if settled {
		c.Log.WithField("order_id", orderID).Info("refund settled")
	}
	return settled, nil
}
