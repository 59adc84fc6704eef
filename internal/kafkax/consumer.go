package kafkax

import (
	"context"
	"time"

	"github.com/leejamie-42/online-store/internal/metrics"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Handler must return nil only when the message was fully processed and
// the offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r           *kafka.Reader
	log         *logrus.Entry
	topic       string
	workers     int
	maxAttempts int
	dlq         *Producer // nil disables dead-lettering
}

func NewConsumer(brokers []string, group, topic string, workers, maxAttempts int, dlq *Producer, log *logrus.Entry) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Consumer{
		r:           r,
		log:         log.WithFields(logrus.Fields{"topic": topic, "group": group}),
		topic:       topic,
		workers:     workers,
		maxAttempts: maxAttempts,
		dlq:         dlq,
	}
}

func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, 1024)

	for i := 0; i < c.workers; i++ {
		go func() {
			for m := range jobs {
				c.process(ctx, h, m)
			}
		}()
	}

	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			close(jobs)
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			close(jobs)
			return nil
		}
	}
}

// process retries the handler with backoff, then dead-letters. A message
// that can never succeed must not be redelivered forever, so after the
// retry budget the raw message goes to the DLQ topic and the offset is
// committed anyway.
func (c *Consumer) process(ctx context.Context, h Handler, m kafka.Message) {
	backoff := 200 * time.Millisecond
	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err = h(ctx, m); err == nil {
			if cerr := c.r.CommitMessages(ctx, m); cerr != nil {
				c.log.WithError(cerr).Warn("commit failed")
			}
			return
		}
		c.log.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt, "offset": m.Offset,
		}).Warn("handler failed")
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 5*time.Second {
			backoff *= 2
		}
	}

	if c.dlq != nil {
		c.dlq.Publish(m.Key, m.Value, m.Headers...)
		metrics.DeadLetters.WithLabelValues(c.topic).Inc()
		c.log.WithField("offset", m.Offset).Error("retries exhausted, message dead-lettered")
	} else {
		c.log.WithField("offset", m.Offset).Error("retries exhausted, message dropped")
	}
	if cerr := c.r.CommitMessages(ctx, m); cerr != nil {
		c.log.WithError(cerr).Warn("commit failed")
	}
}
