package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Tracker runs the periodic single-pass simulation loop and announces
// every status change through the store's delivery webhook. Webhook
// failures are logged and not retried here: the store's leg machine
// accepts any forward move, so a later event for the same leg carries
// the skipped state along with it.
type Tracker struct {
	Repo       *Repo
	WebhookURL string
	HTTP       *http.Client
	Tick       time.Duration
	Batch      int
	Step       int
	LostPct    int
	Log        *logrus.Entry

	rng *rand.Rand
}

func NewTracker(repo *Repo, webhookURL string, tick time.Duration, batch, lostPct int, log *logrus.Entry) *Tracker {
	return &Tracker{
		Repo:       repo,
		WebhookURL: webhookURL,
		HTTP:       &http.Client{Timeout: 10 * time.Second},
		Tick:       tick,
		Batch:      batch,
		Step:       25,
		LostPct:    lostPct,
		Log:        log,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *Tracker) tick(ctx context.Context) {
	changes, err := t.Repo.AdvanceBatch(ctx, t.Batch, t.Step, t.LostPct, t.rng)
	if err != nil {
		t.Log.WithError(err).Warn("tick failed")
		return
	}
	for _, c := range changes {
		if err := t.notify(ctx, c); err != nil {
			t.Log.WithError(err).WithField("shipment_id", c.ShipmentID).Warn("delivery webhook failed")
			continue
		}
		t.Log.WithFields(logrus.Fields{
			"shipment_id": c.ShipmentID, "event": c.Event,
		}).Info("leg advanced")
	}
}

type deliveryWebhook struct {
	ShipmentID string    `json:"shipmentId"`
	Event      string    `json:"event"`
	Timestamp  time.Time `json:"timestamp"`
}

func (t *Tracker) notify(ctx context.Context, c Change) error {
	body, err := json.Marshal(deliveryWebhook{
		ShipmentID: c.ShipmentID,
		Event:      string(c.Event),
		Timestamp:  c.Timestamp,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := t.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", res.StatusCode)
	}
	return nil
}
