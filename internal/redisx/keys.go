package redisx

import "time"

const (
	// Dedup for inbound async events: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

// TTLDedup outlives any realistic webhook/consumer redelivery window.
var TTLDedup = 48 * time.Hour
