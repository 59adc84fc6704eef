package shipping

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) CreateLeg(ctx context.Context, l Leg) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO shipment_legs(id, order_id, warehouse_address, product_id, quantity, status, progress)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO NOTHING`,
		l.ID, l.OrderID, l.WarehouseAddress, l.ProductID, l.Quantity, l.Status, l.Progress)
	return err
}

func (r *Repo) LegsByOrder(ctx context.Context, orderID string) ([]Leg, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, warehouse_address, product_id, quantity, status, progress, created_at, updated_at
		FROM shipment_legs WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Leg
	for rows.Next() {
		var l Leg
		if err := rows.Scan(&l.ID, &l.OrderID, &l.WarehouseAddress, &l.ProductID, &l.Quantity,
			&l.Status, &l.Progress, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// TransitionLeg applies one webhook event under a row lock and returns
// the updated leg. Invalid transitions fail loudly instead of silently
// overwriting; an equal-status redelivery is reported via changed=false.
func (r *Repo) TransitionLeg(ctx context.Context, legID string, to LegStatus) (leg Leg, changed bool, err error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Leg{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		SELECT id, order_id, warehouse_address, product_id, quantity, status, progress, created_at, updated_at
		FROM shipment_legs WHERE id=$1 FOR UPDATE`, legID).
		Scan(&leg.ID, &leg.OrderID, &leg.WarehouseAddress, &leg.ProductID, &leg.Quantity,
			&leg.Status, &leg.Progress, &leg.CreatedAt, &leg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Leg{}, false, ErrLegNotFound
	}
	if err != nil {
		return Leg{}, false, err
	}

	if leg.Status == to {
		return leg, false, nil // duplicate event, no-op
	}
	if !CanTransitionLeg(leg.Status, to) {
		return leg, false, fmt.Errorf("%w: %s -> %s", ErrInvalidLegTransition, leg.Status, to)
	}

	progress := leg.Progress
	if to != LegLost {
		progress = ProgressFor(to)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE shipment_legs SET status=$2, progress=$3, updated_at=now() WHERE id=$1`,
		legID, to, progress); err != nil {
		return Leg{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Leg{}, false, err
	}
	leg.Status = to
	leg.Progress = progress
	return leg, true, nil
}
