package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

// TotalAvailable sums a product's stock across all warehouses. Read-only,
// no locks.
func (r *Repo) TotalAvailable(ctx context.Context, productID string) (int, error) {
	var total int
	err := r.DB.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0) FROM inventory WHERE product_id=$1`,
		productID).Scan(&total)
	return total, err
}

// lockStock locks the product's rows across all warehouses in ascending
// warehouse id. Every multi-row operation locks in this order, which is
// what prevents lock-ordering deadlocks between concurrent orders.
func lockStock(ctx context.Context, tx pgx.Tx, productID string) ([]stockRow, error) {
	rows, err := tx.Query(ctx, `
		SELECT warehouse_id, quantity FROM inventory
		WHERE product_id=$1
		ORDER BY warehouse_id
		FOR UPDATE`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []stockRow
	for rows.Next() {
		var s stockRow
		if err := rows.Scan(&s.WarehouseID, &s.Available); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Reserve atomically allocates qty across warehouses for one order.
// Either every Reservation row is created and inventory decremented, or
// the tx rolls back and nothing changed. A duplicate call for an order
// that already holds RESERVED rows returns the existing warehouses.
func (r *Repo) Reserve(ctx context.Context, orderID, productID string, qty int) ([]string, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// retry short-circuit: a timed-out reserve call gets retried by the
	// caller, and must not decrement twice.
	existing, err := reservedWarehouses(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}

	stock, err := lockStock(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	allocs, total := allocate(stock, qty)
	if allocs == nil {
		return nil, fmt.Errorf("%w: want %d, have %d", ErrInsufficientStock, qty, total)
	}

	reservedFrom := make([]string, 0, len(allocs))
	for _, a := range allocs {
		ct, err := tx.Exec(ctx, `
			UPDATE inventory SET quantity = quantity - $3, version = version + 1
			WHERE warehouse_id=$1 AND product_id=$2 AND quantity >= $3`,
			a.WarehouseID, productID, a.Quantity)
		if err != nil {
			return nil, err
		}
		if ct.RowsAffected() != 1 {
			// row was locked, so this can only be a logic error
			return nil, fmt.Errorf("decrement failed for warehouse %s", a.WarehouseID)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO reservations(id, order_id, product_id, warehouse_id, quantity, status)
			VALUES ($1,$2,$3,$4,$5,'RESERVED')`,
			uuid.NewString(), orderID, productID, a.WarehouseID, a.Quantity); err != nil {
			return nil, err
		}
		reservedFrom = append(reservedFrom, a.WarehouseID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return reservedFrom, nil
}

func reservedWarehouses(ctx context.Context, tx pgx.Tx, orderID string) ([]string, error) {
	rows, err := tx.Query(ctx, `
		SELECT warehouse_id FROM reservations
		WHERE order_id=$1 AND status='RESERVED'
		ORDER BY warehouse_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Commit finalizes an order's RESERVED rows and returns one delivery
// package per warehouse leg. Inventory quantities are untouched: the
// stock was already taken out at reserve time. ErrNoReservation when
// there is nothing RESERVED, which makes a retried commit a no-op.
func (r *Repo) Commit(ctx context.Context, orderID string) ([]DeliveryPackage, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT w.address, res.product_id, res.quantity
		FROM reservations res
		JOIN warehouses w ON w.id = res.warehouse_id
		WHERE res.order_id=$1 AND res.status='RESERVED'
		ORDER BY res.warehouse_id
		FOR UPDATE OF res`, orderID)
	if err != nil {
		return nil, err
	}
	var pkgs []DeliveryPackage
	for rows.Next() {
		var p DeliveryPackage
		if err := rows.Scan(&p.WarehouseAddress, &p.ProductID, &p.Quantity); err != nil {
			rows.Close()
			return nil, err
		}
		pkgs = append(pkgs, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(pkgs) == 0 {
		return nil, ErrNoReservation
	}

	if _, err := tx.Exec(ctx, `
		UPDATE reservations SET status='COMMITTED', updated_at=now()
		WHERE order_id=$1 AND status='RESERVED'`, orderID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return pkgs, nil
}

// Rollback restores inventory for an order's RESERVED rows and flips
// them to ROLLED_BACK. COMMITTED rows are never touched: once committed,
// reversal needs a separate restock flow. Returns false when there is
// nothing to roll back, so repeated calls are always safe.
func (r *Repo) Rollback(ctx context.Context, orderID string) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	done, err := rollbackInTx(ctx, tx, orderID)
	if err != nil {
		return false, err
	}
	if !done {
		return false, nil
	}
	return true, tx.Commit(ctx)
}

// RollbackEvent is the transactional-inbox variant used by the
// inventory.rollback consumer: the processed_events insert rides in the
// same tx as the rollback effect, so a redelivered event can never apply
// twice even if the fast Redis guard was lost.
func (r *Repo) RollbackEvent(ctx context.Context, eventID, orderID string) (applied, rolledBack bool, err error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		INSERT INTO processed_events(event_id) VALUES ($1)
		ON CONFLICT (event_id) DO NOTHING`, eventID)
	if err != nil {
		return false, false, err
	}
	if ct.RowsAffected() == 0 {
		return false, false, nil // already processed
	}

	rolledBack, err = rollbackInTx(ctx, tx, orderID)
	if err != nil {
		return false, false, err
	}
	return true, rolledBack, tx.Commit(ctx)
}

func rollbackInTx(ctx context.Context, tx pgx.Tx, orderID string) (bool, error) {
	// reservation rows ordered by warehouse id, same order the inventory
	// rows get locked in below
	rows, err := tx.Query(ctx, `
		SELECT warehouse_id, product_id, quantity FROM reservations
		WHERE order_id=$1 AND status='RESERVED'
		ORDER BY warehouse_id
		FOR UPDATE`, orderID)
	if err != nil {
		return false, err
	}
	type rec struct {
		warehouseID, productID string
		qty                    int
	}
	var recs []rec
	for rows.Next() {
		var x rec
		if err := rows.Scan(&x.warehouseID, &x.productID, &x.qty); err != nil {
			rows.Close()
			return false, err
		}
		recs = append(recs, x)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, err
	}
	if len(recs) == 0 {
		return false, nil
	}

	for _, x := range recs {
		if _, err := tx.Exec(ctx, `
			UPDATE inventory SET quantity = quantity + $3, version = version + 1
			WHERE warehouse_id=$1 AND product_id=$2`,
			x.warehouseID, x.productID, x.qty); err != nil {
			return false, err
		}
	}
	if _, err := tx.Exec(ctx, `
		UPDATE reservations SET status='ROLLED_BACK', updated_at=now()
		WHERE order_id=$1 AND status='RESERVED'`, orderID); err != nil {
		return false, err
	}
	return true, nil
}

// ProductForOrder resolves which product an order's reservations hold,
// regardless of their current status.
func (r *Repo) ProductForOrder(ctx context.Context, orderID string) (string, error) {
	var productID string
	err := r.DB.QueryRow(ctx, `
		SELECT product_id FROM reservations WHERE order_id=$1 LIMIT 1`, orderID).Scan(&productID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNoReservation
	}
	return productID, err
}

// ProductSnapshot is what gets published on warehouse.product-updates.
func (r *Repo) ProductSnapshot(ctx context.Context, productID string) (Snapshot, error) {
	var s Snapshot
	err := r.DB.QueryRow(ctx, `
		SELECT p.id, p.name, p.price_cents, p.published, COALESCE(SUM(i.quantity), 0)
		FROM products p
		LEFT JOIN inventory i ON i.product_id = p.id
		WHERE p.id=$1
		GROUP BY p.id, p.name, p.price_cents, p.published`, productID).
		Scan(&s.ID, &s.Name, &s.PriceCents, &s.Published, &s.TotalStock)
	if errors.Is(err, pgx.ErrNoRows) {
		return s, fmt.Errorf("product %s: %w", productID, pgx.ErrNoRows)
	}
	return s, err
}
