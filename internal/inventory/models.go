package inventory

import (
	"errors"
	"time"
)

type ReservationStatus string

const (
	ReservationReserved   ReservationStatus = "RESERVED"
	ReservationCommitted  ReservationStatus = "COMMITTED"
	ReservationRolledBack ReservationStatus = "ROLLED_BACK"
)

var (
	// Conflict: the caller asked for more than all warehouses hold.
	ErrInsufficientStock = errors.New("insufficient stock")
	// Not-found: no RESERVED rows for the order. Repeated commit/rollback
	// must treat this as a safe no-op, not a failure.
	ErrNoReservation = errors.New("no reservation found")
)

type Warehouse struct {
	ID      string
	Name    string
	Address string
}

// Stock is one (warehouse, product) row. Version is bumped on every
// quantity change so writes are observable as a monotonic sequence.
type Stock struct {
	WarehouseID string
	ProductID   string
	Quantity    int
	Version     int64
}

type Reservation struct {
	ID          string
	OrderID     string
	ProductID   string
	WarehouseID string
	Quantity    int
	Status      ReservationStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Product struct {
	ID         string
	Name       string
	PriceCents int
	Published  bool
}

// Snapshot is the aggregate view published on warehouse.product-updates.
type Snapshot struct {
	Product
	TotalStock int
}
