package shipping

type DeliveryStatus string

const (
	DeliveryProcessing DeliveryStatus = "PROCESSING"
	DeliveryInTransit  DeliveryStatus = "IN_TRANSIT"
	DeliveryDelivered  DeliveryStatus = "DELIVERED"
	DeliveryLost       DeliveryStatus = "LOST"
)

// Delivery is the order-level view derived from all legs. It is never
// persisted as ground truth: recomputing it from the current rows on
// every read is what keeps it from drifting from its inputs.
type Delivery struct {
	Status   DeliveryStatus `json:"status"`
	Progress int            `json:"progress"`
}

// Rollup applies the aggregation rule:
//   - all legs DELIVERED            -> DELIVERED, 100
//   - >=1 LOST, none still moving   -> LOST
//   - >=1 PICKED_UP or IN_TRANSIT   -> IN_TRANSIT, mean progress
//   - otherwise                     -> PROCESSING
func Rollup(legs []Leg) Delivery {
	if len(legs) == 0 {
		return Delivery{Status: DeliveryProcessing, Progress: 0}
	}

	var (
		delivered, lost, moving, sum int
	)
	for _, l := range legs {
		sum += l.Progress
		switch l.Status {
		case LegDelivered:
			delivered++
		case LegLost:
			lost++
		case LegPickedUp, LegInTransit:
			moving++
		}
	}
	mean := sum / len(legs)

	switch {
	case delivered == len(legs):
		return Delivery{Status: DeliveryDelivered, Progress: 100}
	case lost > 0 && moving == 0:
		return Delivery{Status: DeliveryLost, Progress: mean}
	case moving > 0:
		return Delivery{Status: DeliveryInTransit, Progress: mean}
	default:
		return Delivery{Status: DeliveryProcessing, Progress: mean}
	}
}
