package inventory

import (
	"context"

	"github.com/leejamie-42/online-store/internal/events"
	"github.com/leejamie-42/online-store/internal/idempotency"
	"github.com/leejamie-42/online-store/internal/kafkax"
	"github.com/leejamie-42/online-store/internal/metrics"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// RollbackConsumer applies inventory.rollback compensation events. The
// Redis guard short-circuits obvious duplicates cheaply; the repo's
// transactional inbox is the hard guarantee.
type RollbackConsumer struct {
	Svc   *Service
	Guard *idempotency.Guard
	Log   *logrus.Entry
}

func (c *RollbackConsumer) Handle(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		return err
	}
	p, err := events.DecodeRollback(env)
	if err != nil {
		return err
	}

	if dup, err := c.Guard.HasProcessed(ctx, env.EventID); err == nil && dup {
		c.Log.WithField("event_id", env.EventID).Debug("duplicate rollback event, skipped")
		return nil
	}

	applied, rolledBack, err := c.Svc.Repo.RollbackEvent(ctx, env.EventID, p.OrderID)
	if err != nil {
		return err
	}
	if !applied {
		c.Log.WithField("event_id", env.EventID).Debug("rollback event already in inbox, skipped")
		_ = c.Guard.MarkProcessed(ctx, env.EventID)
		return nil
	}

	metrics.Compensations.WithLabelValues(p.Reason).Inc()
	if rolledBack {
		c.Log.WithFields(logrus.Fields{
			"order_id": p.OrderID, "reason": p.Reason,
		}).Info("compensation applied, stock restored")
		c.Svc.publishSnapshot(ctx, p.ProductID)
	} else {
		// nothing RESERVED: either already rolled back through the sync
		// RPC, or the reservation was committed before the loss (no
		// automatic restock for committed stock)
		c.Log.WithFields(logrus.Fields{
			"order_id": p.OrderID, "reason": p.Reason,
		}).Debug("rollback event had nothing to restore")
	}
	_ = c.Guard.MarkProcessed(ctx, env.EventID)
	return nil
}
