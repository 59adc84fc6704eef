package delivery

import (
	"context"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leejamie-42/online-store/internal/shipping"
)

type Repo struct{ DB *pgxpool.Pool }

// Create is idempotent on the client-supplied shipment id: a retried
// request finds the row already there and creates nothing.
func (r *Repo) Create(ctx context.Context, s Shipment) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO shipments(id, order_id, warehouse_address, product_id, quantity, status, progress)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO NOTHING`,
		s.ID, s.OrderID, s.WarehouseAddress, s.ProductID, s.Quantity, s.Status, s.Progress)
	return err
}

func (r *Repo) Get(ctx context.Context, shipmentID string) (Shipment, error) {
	var s Shipment
	err := r.DB.QueryRow(ctx, `
		SELECT id, order_id, warehouse_address, product_id, quantity, status, progress, updated_at
		FROM shipments WHERE id=$1`, shipmentID).
		Scan(&s.ID, &s.OrderID, &s.WarehouseAddress, &s.ProductID, &s.Quantity, &s.Status, &s.Progress, &s.UpdatedAt)
	return s, err
}

// Change is one status transition produced by a tick, to be announced
// through the delivery webhook.
type Change struct {
	ShipmentID string
	Event      shipping.LegStatus
	Timestamp  time.Time
}

// AdvanceBatch runs one simulation pass: a bounded batch of non-terminal
// legs is locked with SKIP LOCKED, advanced, and written back in one
// transaction. Concurrent ticks skip each other's rows instead of
// double-advancing them, and the batch bound keeps a tick from turning
// into an unbounded work spike.
func (r *Repo) AdvanceBatch(ctx context.Context, batch, step, lostPct int, rng *rand.Rand) ([]Change, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT id, status, progress FROM shipments
		WHERE status NOT IN ('DELIVERED','LOST')
		ORDER BY updated_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, batch)
	if err != nil {
		return nil, err
	}
	type row struct {
		id       string
		status   shipping.LegStatus
		progress int
	}
	var batchRows []row
	for rows.Next() {
		var x row
		if err := rows.Scan(&x.id, &x.status, &x.progress); err != nil {
			rows.Close()
			return nil, err
		}
		batchRows = append(batchRows, x)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var changes []Change
	for _, x := range batchRows {
		lost := lostPct > 0 && rng.Intn(100) < lostPct
		newStatus, newProgress := advance(x.status, x.progress, step, lost)
		if newStatus == x.status && newProgress == x.progress {
			continue
		}
		if _, err := tx.Exec(ctx, `
			UPDATE shipments SET status=$2, progress=$3, updated_at=now() WHERE id=$1`,
			x.id, newStatus, newProgress); err != nil {
			return nil, err
		}
		if newStatus != x.status {
			changes = append(changes, Change{ShipmentID: x.id, Event: newStatus, Timestamp: now})
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return changes, nil
}
