package delivery

import (
	"time"

	"github.com/leejamie-42/online-store/internal/shipping"
)

// Shipment is one leg as the tracker sees it. Status values are shared
// with the store's shipping package; both ends speak the same enum.
type Shipment struct {
	ID               string             `json:"shipment_id"`
	OrderID          string             `json:"order_id"`
	WarehouseAddress string             `json:"warehouse_address"`
	ProductID        string             `json:"product_id"`
	Quantity         int                `json:"quantity"`
	Status           shipping.LegStatus `json:"status"`
	Progress         int                `json:"progress"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// advance computes one tick for one leg. Progress advances by step and
// the status is derived from thresholds; a lost leg freezes its
// progress. Pure so the tick rule is testable without a database.
func advance(status shipping.LegStatus, progress, step int, lost bool) (shipping.LegStatus, int) {
	if status.Terminal() {
		return status, progress
	}
	if lost {
		return shipping.LegLost, progress
	}
	p := progress + step
	if p > 100 {
		p = 100
	}
	switch {
	case p >= 100:
		return shipping.LegDelivered, 100
	case p >= 50:
		return shipping.LegInTransit, p
	case p > 0:
		return shipping.LegPickedUp, p
	default:
		return shipping.LegProcessing, 0
	}
}
