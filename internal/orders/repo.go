package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound        = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Create(ctx context.Context, o *Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO orders(id, user_id, product_id, quantity, total_cents,
		                   ship_name, ship_address, ship_phone, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		o.ID, o.UserID, o.ProductID, o.Quantity, o.TotalCents,
		o.Shipping.Name, o.Shipping.Address, o.Shipping.Phone, o.Status)
	return err
}

func (r *Repo) Get(ctx context.Context, orderID string) (Order, error) {
	var o Order
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, product_id, quantity, total_cents,
		       ship_name, ship_address, ship_phone, status, created_at, updated_at
		FROM orders WHERE id=$1`, orderID).
		Scan(&o.ID, &o.UserID, &o.ProductID, &o.Quantity, &o.TotalCents,
			&o.Shipping.Name, &o.Shipping.Address, &o.Shipping.Phone,
			&o.Status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return o, ErrNotFound
	}
	return o, err
}

// Transition moves an order's status under a row lock. The current row
// value is the single source of truth: when a cancel races a payment
// webhook, whichever transaction commits first wins and the loser gets
// ErrInvalidTransition with the status it lost to.
func (r *Repo) Transition(ctx context.Context, orderID string, to Status) (Status, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var cur Status
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, orderID).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if !CanTransition(cur, to) {
		return cur, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur, to)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, orderID, to); err != nil {
		return cur, err
	}
	if err := tx.Commit(ctx); err != nil {
		return cur, err
	}
	return to, nil
}

// ---- product read model (fed by warehouse.product-updates) ----

func (r *Repo) UpsertProduct(ctx context.Context, p Product) error {
	// last-writer-wins on the event timestamp; a late, stale update must
	// not clobber a fresher row
	_, err := r.DB.Exec(ctx, `
		INSERT INTO products(id, name, price_cents, stock, published, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE
		SET name=EXCLUDED.name, price_cents=EXCLUDED.price_cents,
		    stock=EXCLUDED.stock, published=EXCLUDED.published,
		    updated_at=EXCLUDED.updated_at
		WHERE products.updated_at <= EXCLUDED.updated_at`,
		p.ID, p.Name, p.PriceCents, p.Stock, p.Published, p.UpdatedAt)
	return err
}

func (r *Repo) GetProduct(ctx context.Context, productID string) (Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, price_cents, stock, published, updated_at
		FROM products WHERE id=$1 AND published`, productID).
		Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.Published, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, ErrProductNotFound
	}
	return p, err
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, price_cents, stock, published, updated_at
		FROM products WHERE published ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.Published, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
