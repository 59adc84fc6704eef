package orders

import (
	"context"
	"errors"

	"github.com/leejamie-42/online-store/internal/events"
	"github.com/leejamie-42/online-store/internal/idempotency"
	"github.com/leejamie-42/online-store/internal/kafkax"
	"github.com/leejamie-42/online-store/internal/payments"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// ProductUpdateConsumer feeds the store's catalog read model from
// warehouse.product-updates. The upsert is last-writer-wins on the event
// timestamp, so redelivery and reordering are both harmless and no
// dedup guard is needed.
type ProductUpdateConsumer struct {
	Repo *Repo
	Log  *logrus.Entry
}

func (c *ProductUpdateConsumer) Handle(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		return err
	}
	p, err := events.DecodeProductUpdate(env)
	if err != nil {
		return err
	}
	if err := c.Repo.UpsertProduct(ctx, Product{
		ID:         p.ProductID,
		Name:       p.Name,
		PriceCents: p.PriceCents,
		Stock:      p.Stock,
		Published:  p.Published,
		UpdatedAt:  p.UpdatedAt,
	}); err != nil {
		return err
	}
	c.Log.WithFields(logrus.Fields{"product_id": p.ProductID, "stock": p.Stock}).Debug("catalog updated")
	return nil
}

// RefundRetryConsumer drains payment.refund: refunds that failed during
// a cancellation are queued there and retried here, out of band of the
// request that triggered them.
type RefundRetryConsumer struct {
	Payments PaymentCoordinator
	Guard    *idempotency.Guard
	Log      *logrus.Entry
}

func (c *RefundRetryConsumer) Handle(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		return err
	}
	p, err := events.DecodeRefund(env)
	if err != nil {
		return err
	}
	if dup, err := c.Guard.CheckAndMark(ctx, env.EventID); err != nil {
		return err
	} else if dup {
		c.Log.WithField("event_id", env.EventID).Debug("duplicate refund event, skipped")
		return nil
	}

	err = c.Payments.Refund(ctx, p.OrderID, p.Reason)
	switch {
	case err == nil:
		c.Log.WithField("order_id", p.OrderID).Info("queued refund retried successfully")
		return nil
	case errors.Is(err, payments.ErrDuplicateRefund),
		errors.Is(err, payments.ErrPaymentNotCompleted),
		errors.Is(err, payments.ErrPaymentNotFound):
		// already done, or nothing to refund; either way this event is spent
		c.Log.WithError(err).WithField("order_id", p.OrderID).Debug("refund retry is a no-op")
		return nil
	default:
		// release the marker so the consumer's retry/DLQ policy applies
		c.Guard.Unmark(ctx, env.EventID)
		return err
	}
}
