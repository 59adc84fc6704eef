package shipping

import (
	"errors"
	"time"
)

type LegStatus string

const (
	LegProcessing LegStatus = "PROCESSING"
	LegPickedUp   LegStatus = "PICKED_UP"
	LegInTransit  LegStatus = "IN_TRANSIT"
	LegDelivered  LegStatus = "DELIVERED"
	LegLost       LegStatus = "LOST"
)

var (
	ErrLegNotFound          = errors.New("shipment leg not found")
	ErrInvalidLegTransition = errors.New("invalid shipment leg transition")
)

// Forward chain per leg. Webhook delivery is lossy, so any strictly
// forward move is accepted: a leg whose PICKED_UP event never arrived
// still advances when IN_TRANSIT or DELIVERED shows up. LOST is
// terminal and reachable from any non-delivered state.
var legRank = map[LegStatus]int{
	LegProcessing: 0,
	LegPickedUp:   1,
	LegInTransit:  2,
	LegDelivered:  3,
}

func CanTransitionLeg(from, to LegStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == LegLost {
		return true
	}
	toRank, ok := legRank[to]
	if !ok {
		return false
	}
	return toRank > legRank[from]
}

func (s LegStatus) Terminal() bool {
	return s == LegDelivered || s == LegLost
}

// ProgressFor is the canonical progress per status. A LOST leg freezes
// at whatever it had, so callers keep the old value in that case.
func ProgressFor(s LegStatus) int {
	switch s {
	case LegPickedUp:
		return 20
	case LegInTransit:
		return 60
	case LegDelivered:
		return 100
	default:
		return 0
	}
}

// Leg is one per-warehouse shipment of an order. The ID is the delivery
// tracker's shipment id, so inbound webhooks address legs directly.
type Leg struct {
	ID               string    `json:"id"`
	OrderID          string    `json:"order_id"`
	WarehouseAddress string    `json:"warehouse_address"`
	ProductID        string    `json:"product_id"`
	Quantity         int       `json:"quantity"`
	Status           LegStatus `json:"status"`
	Progress         int       `json:"progress"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
