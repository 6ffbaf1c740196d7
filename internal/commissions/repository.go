package commissions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/richhabits/richhabits-os/internal/platform/db"
	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/rbac"
	"github.com/richhabits/richhabits-os/internal/workflow"
)

// Repository is the storage port used by Service.
type Repository interface {
	Salesperson(ctx context.Context, userID int64) (Salesperson, error)
	ListSalespeople(ctx context.Context) ([]Salesperson, error)
	CompletedOrderTotals(ctx context.Context, salespersonID int64) ([]decimal.Decimal, error)
	ListPayments(ctx context.Context, salespersonID int64) ([]Payment, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	PaymentAmounts(ctx context.Context, salespersonID int64) ([]decimal.Decimal, error)
	InsertPayment(ctx context.Context, p Payment) (int64, error)
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx wraps callback in a serializable transaction so two payouts cannot both pass the
// pending check.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// Salesperson loads an active sales user.
func (r *PGRepository) Salesperson(ctx context.Context, userID int64) (Salesperson, error) {
	var sp Salesperson
	err := r.pool.QueryRow(ctx, `SELECT id, name, commission_rate FROM users
		WHERE id = $1 AND role = $2 AND is_active`, userID, rbac.RoleSales).
		Scan(&sp.UserID, &sp.Name, &sp.CommissionRate)
	if errors.Is(err, pgx.ErrNoRows) {
		return Salesperson{}, httpx.NotFound("salesperson", userID)
	}
	if err != nil {
		return Salesperson{}, fmt.Errorf("commissions: salesperson %d: %w", userID, err)
	}
	return sp, nil
}

// ListSalespeople returns every active sales user by name.
func (r *PGRepository) ListSalespeople(ctx context.Context) ([]Salesperson, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, commission_rate FROM users
		WHERE role = $1 AND is_active ORDER BY name, id`, rbac.RoleSales)
	if err != nil {
		return nil, fmt.Errorf("commissions: list salespeople: %w", err)
	}
	defer rows.Close()
	var out []Salesperson
	for rows.Next() {
		var sp Salesperson
		if err := rows.Scan(&sp.UserID, &sp.Name, &sp.CommissionRate); err != nil {
			return nil, fmt.Errorf("commissions: scan salesperson: %w", err)
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

// CompletedOrderTotals returns the totals of the salesperson's completed, live orders.
func (r *PGRepository) CompletedOrderTotals(ctx context.Context, salespersonID int64) ([]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, `SELECT total_amount FROM orders
		WHERE salesperson_id = $1 AND status = $2 AND archived_at IS NULL`, salespersonID, workflow.OrderCompleted)
	if err != nil {
		return nil, fmt.Errorf("commissions: order totals: %w", err)
	}
	return scanAmounts(rows)
}

// ListPayments returns payouts newest first.
func (r *PGRepository) ListPayments(ctx context.Context, salespersonID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, salesperson_id, total_amount, period, notes, paid_at, recorded_by, created_at
		FROM commission_payments WHERE salesperson_id = $1 ORDER BY paid_at DESC, id DESC`, salespersonID)
	if err != nil {
		return nil, fmt.Errorf("commissions: list payments: %w", err)
	}
	defer rows.Close()
	out := []Payment{}
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.SalespersonID, &p.TotalAmount, &p.Period, &p.Notes, &p.PaidAt, &p.RecordedBy, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("commissions: scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *txRepository) PaymentAmounts(ctx context.Context, salespersonID int64) ([]decimal.Decimal, error) {
	rows, err := t.tx.Query(ctx, `SELECT total_amount FROM commission_payments WHERE salesperson_id = $1`, salespersonID)
	if err != nil {
		return nil, err
	}
	return scanAmounts(rows)
}

func (t *txRepository) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO commission_payments (salesperson_id, total_amount, period, notes, paid_at, recorded_by)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		p.SalespersonID, p.TotalAmount, p.Period, p.Notes, p.PaidAt, p.RecordedBy).Scan(&id)
	return id, err
}

func scanAmounts(rows pgx.Rows) ([]decimal.Decimal, error) {
	defer rows.Close()
	var out []decimal.Decimal
	for rows.Next() {
		var d decimal.Decimal
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
