package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Settler ticks over due instructions and posts completion webhooks to
// the store. Delivery is at-least-once: an instruction is only marked
// settled after a webhook attempt succeeds, so failures are retried on
// later ticks and the store may see duplicates.
type Settler struct {
	Proc       *Processor
	WebhookURL string // explicit config, resolved at startup
	HTTP       *http.Client
	Tick       time.Duration
	Log        *logrus.Entry
}

type paymentWebhook struct {
	OrderID   string    `json:"orderId"`
	PaymentID string    `json:"paymentId"`
	Status    string    `json:"status"`
	Amount    int       `json:"amount"`
	PaidAt    time.Time `json:"paidAt"`
}

func NewSettler(proc *Processor, webhookURL string, log *logrus.Entry) *Settler {
	return &Settler{
		Proc:       proc,
		WebhookURL: webhookURL,
		HTTP:       &http.Client{Timeout: 10 * time.Second},
		Tick:       time.Second,
		Log:        log,
	}
}

func (s *Settler) Run(ctx context.Context) {
	t := time.NewTicker(s.Tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.settleDue(ctx)
		}
	}
}

func (s *Settler) settleDue(ctx context.Context) {
	for _, ins := range s.Proc.DuePayments() {
		wh := paymentWebhook{
			OrderID:   ins.OrderID,
			PaymentID: ins.ID,
			Status:    "BPAY_PAYMENT_COMPLETED",
			Amount:    ins.AmountCents,
			PaidAt:    time.Now().UTC(),
		}
		if err := s.post(ctx, wh); err != nil {
			s.Log.WithError(err).WithField("order_id", ins.OrderID).Warn("payment webhook delivery failed")
			continue // stays due, retried next tick
		}
		s.Proc.SettlePayment(ins.ID)
		s.Log.WithField("order_id", ins.OrderID).Info("payment settled")
	}

	for _, rf := range s.Proc.DueRefunds() {
		wh := paymentWebhook{
			OrderID:   rf.OrderID,
			PaymentID: rf.PaymentID,
			Status:    "REFUND_COMPLETED",
			Amount:    rf.AmountCents,
			PaidAt:    time.Now().UTC(),
		}
		if err := s.post(ctx, wh); err != nil {
			s.Log.WithError(err).WithField("order_id", rf.OrderID).Warn("refund webhook delivery failed")
			continue
		}
		s.Proc.SettleRefund(rf.PaymentID)
		s.Log.WithField("order_id", rf.OrderID).Info("refund settled")
	}
}

// post retries within one tick with a short backoff; a 409 from the
// store means "not yet visible, retry", which the next tick covers.
func (s *Settler) post(ctx context.Context, wh paymentWebhook) error {
	body, err := json.Marshal(wh)
	if err != nil {
		return err
	}
	backoff := 200 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		res, err := s.HTTP.Do(req)
		if err == nil {
			res.Body.Close()
			if res.StatusCode < 300 {
				return nil
			}
			lastErr = fmt.Errorf("webhook status %d", res.StatusCode)
		} else {
			lastErr = err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return lastErr
}
