package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository runs the aggregate queries behind the dashboard. A zero owner id means "everyone".
type Repository interface {
	OrderStatusCounts(ctx context.Context, salespersonID int64) (StatusCounts, error)
	QuoteStatusCounts(ctx context.Context, salespersonID int64) (StatusCounts, error)
	JobStatusCounts(ctx context.Context, salespersonID int64) (StatusCounts, error)
	InvoiceSnapshot(ctx context.Context, salespersonID int64, asOf time.Time) (InvoiceSnapshot, error)
	TaskSnapshot(ctx context.Context, userID int64, asOf time.Time) (TaskSnapshot, error)
}

// PGRepository implements Repository over pgx.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// OrderStatusCounts groups live orders by status.
func (r *PGRepository) OrderStatusCounts(ctx context.Context, salespersonID int64) (StatusCounts, error) {
	const sql = `SELECT status, COUNT(*) FROM orders
WHERE archived_at IS NULL AND ($1::bigint = 0 OR salesperson_id = $1)
GROUP BY status`
	return r.counts(ctx, "orders", sql, salespersonID)
}

// QuoteStatusCounts groups quotes by status.
func (r *PGRepository) QuoteStatusCounts(ctx context.Context, salespersonID int64) (StatusCounts, error) {
	const sql = `SELECT status, COUNT(*) FROM quotes
WHERE ($1::bigint = 0 OR salesperson_id = $1)
GROUP BY status`
	return r.counts(ctx, "quotes", sql, salespersonID)
}

// JobStatusCounts groups manufacturing jobs by status, scoped through the owning order.
func (r *PGRepository) JobStatusCounts(ctx context.Context, salespersonID int64) (StatusCounts, error) {
	const sql = `SELECT j.status, COUNT(*) FROM manufacturing_jobs j
JOIN orders o ON o.id = j.order_id
WHERE ($1::bigint = 0 OR o.salesperson_id = $1)
GROUP BY j.status`
	return r.counts(ctx, "manufacturing", sql, salespersonID)
}

// InvoiceSnapshot totals invoices that still accept payments.
func (r *PGRepository) InvoiceSnapshot(ctx context.Context, salespersonID int64, asOf time.Time) (InvoiceSnapshot, error) {
	const sql = `SELECT
	COUNT(*),
	COALESCE(SUM(total_amount - amount_paid), 0),
	COUNT(*) FILTER (WHERE due_date < $2::date),
	COALESCE(SUM(total_amount - amount_paid) FILTER (WHERE due_date < $2::date), 0)
FROM invoices
WHERE status IN ('sent', 'partially_paid') AND ($1::bigint = 0 OR salesperson_id = $1)`
	var (
		snap                       InvoiceSnapshot
		outstanding, overdueAmount decimal.Decimal
	)
	err := r.pool.QueryRow(ctx, sql, salespersonID, asOf).Scan(&snap.Open, &outstanding, &snap.Overdue, &overdueAmount)
	if err != nil {
		return InvoiceSnapshot{}, fmt.Errorf("dashboard: invoice snapshot: %w", err)
	}
	snap.Outstanding = outstanding
	snap.OverdueAmount = overdueAmount
	return snap, nil
}

// TaskSnapshot counts unfinished, unarchived tasks. With a user id only tasks the user created or was
// assigned are counted.
func (r *PGRepository) TaskSnapshot(ctx context.Context, userID int64, asOf time.Time) (TaskSnapshot, error) {
	const sql = `SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE due_date < $2::date),
	COUNT(*) FILTER (WHERE due_date >= $2::date AND due_date < $2::date + 7)
FROM tasks
WHERE archived_at IS NULL AND status IN ('pending', 'in_progress')
	AND ($1::bigint = 0 OR assigned_to_user_id = $1 OR created_by_user_id = $1)`
	var snap TaskSnapshot
	if err := r.pool.QueryRow(ctx, sql, userID, asOf).Scan(&snap.Open, &snap.Overdue, &snap.DueSoon); err != nil {
		return TaskSnapshot{}, fmt.Errorf("dashboard: task snapshot: %w", err)
	}
	return snap, nil
}

func (r *PGRepository) counts(ctx context.Context, what, sql string, ownerID int64) (StatusCounts, error) {
	rows, err := r.pool.Query(ctx, sql, ownerID)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %s counts: %w", what, err)
	}
	out := StatusCounts{}
	var (
		status string
		n      int
	)
	_, err = pgx.ForEachRow(rows, []any{&status, &n}, func() error {
		out[status] = n
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dashboard: scan %s counts: %w", what, err)
	}
	return out, nil
}
