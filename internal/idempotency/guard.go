package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/leejamie-42/online-store/internal/redisx"
	"github.com/redis/go-redis/v9"
)

// Guard records identifiers of already-processed asynchronous events.
// Duplicate delivery is expected under at-least-once messaging, so the
// check-and-mark pair has to be atomic against concurrent deliveries of
// the same event: SET NX does both in one round trip.
type Guard struct {
	Redis   *redis.Client
	Service string
	TTL     time.Duration
}

func New(rdb *redis.Client, service string) *Guard {
	return &Guard{Redis: rdb, Service: service, TTL: redisx.TTLDedup}
}

func (g *Guard) key(eventID string) string {
	return fmt.Sprintf(redisx.KeyDedup, g.Service, eventID)
}

// CheckAndMark returns true if the event was already processed. On the
// first delivery it marks the event and returns false.
func (g *Guard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	ok, err := g.Redis.SetNX(ctx, g.key(eventID), "1", g.TTL).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Unmark releases the marker so a failed handler can be redelivered.
func (g *Guard) Unmark(ctx context.Context, eventID string) {
	_ = g.Redis.Del(ctx, g.key(eventID)).Err()
}

func (g *Guard) HasProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := g.Redis.Exists(ctx, g.key(eventID)).Result()
	return n > 0, err
}

func (g *Guard) MarkProcessed(ctx context.Context, eventID string) error {
	return g.Redis.Set(ctx, g.key(eventID), "1", g.TTL).Err()
}
