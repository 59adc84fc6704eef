package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Create(ctx context.Context, p *Payment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO payments(id, order_id, amount_cents, status, bank_ref)
		VALUES ($1,$2,$3,$4,$5)`,
		p.ID, p.OrderID, p.AmountCents, p.Status, p.BankRef)
	return err
}

func (r *Repo) GetByOrder(ctx context.Context, orderID string) (Payment, error) {
	var p Payment
	err := r.DB.QueryRow(ctx, `
		SELECT id, order_id, amount_cents, status, bank_ref, created_at, updated_at
		FROM payments WHERE order_id=$1`, orderID).
		Scan(&p.ID, &p.OrderID, &p.AmountCents, &p.Status, &p.BankRef, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, ErrPaymentNotFound
	}
	return p, err
}

// MarkCompleted flips a pending payment to COMPLETED. Returns false when
// the payment was already terminal, which makes a redelivered webhook a
// no-op instead of a regression.
func (r *Repo) MarkCompleted(ctx context.Context, orderID string) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE payments SET status='COMPLETED', updated_at=now()
		WHERE order_id=$1 AND status IN ('PENDING','PROCESSING')`, orderID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) MarkFailed(ctx context.Context, orderID string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE payments SET status='FAILED', updated_at=now()
		WHERE order_id=$1 AND status IN ('PENDING','PROCESSING')`, orderID)
	return err
}

// CreateRefund inserts the refund row. The UNIQUE(payment_id) constraint
// enforces one refund per payment at the storage layer.
func (r *Repo) CreateRefund(ctx context.Context, rf *Refund) error {
	if rf.ID == "" {
		rf.ID = uuid.NewString()
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO refunds(id, payment_id, amount_cents, reason, status)
		VALUES ($1,$2,$3,$4,$5)`,
		rf.ID, rf.PaymentID, rf.AmountCents, rf.Reason, rf.Status)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateRefund
	}
	return err
}

func (r *Repo) GetRefundByPayment(ctx context.Context, paymentID string) (Refund, error) {
	var rf Refund
	err := r.DB.QueryRow(ctx, `
		SELECT id, payment_id, amount_cents, reason, status, created_at, updated_at
		FROM refunds WHERE payment_id=$1`, paymentID).
		Scan(&rf.ID, &rf.PaymentID, &rf.AmountCents, &rf.Reason, &rf.Status, &rf.CreatedAt, &rf.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return rf, pgx.ErrNoRows
	}
	return rf, err
}

func (r *Repo) SetRefundStatus(ctx context.Context, refundID string, status RefundStatus) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE refunds SET status=$2, updated_at=now() WHERE id=$1`, refundID, status)
	return err
}

// MarkRefundCompleted settles both rows: the refund goes COMPLETED and
// the payment goes REFUNDED, in one transaction.
func (r *Repo) MarkRefundCompleted(ctx context.Context, orderID string) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var paymentID string
	err = tx.QueryRow(ctx, `
		SELECT id FROM payments WHERE order_id=$1 FOR UPDATE`, orderID).Scan(&paymentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrPaymentNotFound
	}
	if err != nil {
		return false, err
	}

	ct, err := tx.Exec(ctx, `
		UPDATE refunds SET status='COMPLETED', updated_at=now()
		WHERE payment_id=$1 AND status IN ('PENDING','PROCESSING')`, paymentID)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 0 {
		return false, nil // already settled
	}
	if _, err := tx.Exec(ctx, `
		UPDATE payments SET status='REFUNDED', updated_at=now() WHERE id=$1`, paymentID); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}
