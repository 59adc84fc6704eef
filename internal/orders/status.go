package orders

import "errors"

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusPickedUp   Status = "PICKED_UP"
	StatusDelivering Status = "DELIVERING"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

var ErrInvalidTransition = errors.New("invalid order status transition")

// The forward chain, plus the jump to CANCELLED from the two states
// where compensation is still possible. DELIVERED and CANCELLED are
// terminal.
var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusPickedUp: true, StatusCancelled: true},
	StatusPickedUp:   {StatusDelivering: true},
	StatusDelivering: {StatusDelivered: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Cancellable() bool {
	return s == StatusPending || s == StatusProcessing
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}
