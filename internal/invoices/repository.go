package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/richhabits/richhabits-os/internal/platform/db"
	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/workflow"
)

// Repository is the storage port used by Service.
type Repository interface {
	Get(ctx context.Context, id int64) (Invoice, error)
	List(ctx context.Context, filter ListFilter) ([]Invoice, int, error)
	ListOpen(ctx context.Context, salespersonID int64) ([]Invoice, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error)
	OrderSummary(ctx context.Context, orderID int64) (OrderSummary, error)
	NextInvoiceNumber(ctx context.Context, at time.Time) (string, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	Insert(ctx context.Context, inv Invoice) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	SumPayments(ctx context.Context, invoiceID int64) (decimal.Decimal, error)
	SetPaid(ctx context.Context, id int64, paid decimal.Decimal, status Status) error
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

// WithTx wraps callback in repeatable-read transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const invoiceColumns = `id, invoice_number, order_id, org_id, salesperson_id, status, subtotal, discount, tax_rate,
	tax_amount, total_amount, amount_paid, due_date, notes, created_by, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var i Invoice
	err := row.Scan(&i.ID, &i.InvoiceNumber, &i.OrderID, &i.OrgID, &i.SalespersonID, &i.Status, &i.Subtotal,
		&i.Discount, &i.TaxRate, &i.TaxAmount, &i.TotalAmount, &i.AmountPaid, &i.DueDate, &i.Notes, &i.CreatedBy,
		&i.CreatedAt, &i.UpdatedAt)
	return i, err
}

func collect(rows pgx.Rows) ([]Invoice, error) {
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// Get loads one invoice.
func (r *PGRepository) Get(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, httpx.NotFound("invoice", id)
	}
	if err != nil {
		return Invoice{}, fmt.Errorf("invoices: get %d: %w", id, err)
	}
	return inv, nil
}

// List returns invoices matching filter, newest first, with the total match count.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.SalespersonID != 0 {
		add("salesperson_id = $%d", filter.SalespersonID)
	}
	if filter.OrderID != 0 {
		add("order_id = $%d", filter.OrderID)
	}
	clause := "TRUE"
	if len(where) > 0 {
		clause = strings.Join(where, " AND ")
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("invoices: count: %w", err)
	}
	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		invoiceColumns, clause, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, query, append(args, filter.Page.PerPage, filter.Page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("invoices: list: %w", err)
	}
	out, err := collect(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("invoices: list: %w", err)
	}
	return out, total, nil
}

// ListOpen returns sent and partially paid invoices, optionally for one salesperson.
func (r *PGRepository) ListOpen(ctx context.Context, salespersonID int64) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices
		WHERE status IN ($1, $2) AND ($3::bigint = 0 OR salesperson_id = $3)
		ORDER BY due_date NULLS LAST, id`,
		workflow.InvoiceSent, workflow.InvoicePartiallyPaid, salespersonID)
	if err != nil {
		return nil, fmt.Errorf("invoices: list open: %w", err)
	}
	out, err := collect(rows)
	if err != nil {
		return nil, fmt.Errorf("invoices: list open: %w", err)
	}
	return out, nil
}

// ListPayments returns the payments of an invoice, oldest first.
func (r *PGRepository) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, invoice_id, amount, method, reference, paid_at, recorded_by, created_at
		FROM invoice_payments WHERE invoice_id = $1 ORDER BY paid_at, id`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("invoices: list payments: %w", err)
	}
	defer rows.Close()
	out := []Payment{}
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.Reference, &p.PaidAt, &p.RecordedBy, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("invoices: scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// OrderSummary reads the billable total of a live order.
func (r *PGRepository) OrderSummary(ctx context.Context, orderID int64) (OrderSummary, error) {
	var s OrderSummary
	err := r.pool.QueryRow(ctx, `SELECT salesperson_id, org_id, total_amount FROM orders
		WHERE id = $1 AND archived_at IS NULL`, orderID).Scan(&s.SalespersonID, &s.OrgID, &s.Total)
	if errors.Is(err, pgx.ErrNoRows) {
		return OrderSummary{}, httpx.NotFound("order", orderID)
	}
	if err != nil {
		return OrderSummary{}, fmt.Errorf("invoices: order summary %d: %w", orderID, err)
	}
	return s, nil
}

// NextInvoiceNumber draws from invoice_number_seq.
func (r *PGRepository) NextInvoiceNumber(ctx context.Context, at time.Time) (string, error) {
	var seq int64
	if err := r.pool.QueryRow(ctx, `SELECT nextval('invoice_number_seq')`).Scan(&seq); err != nil {
		return "", fmt.Errorf("invoices: next number: %w", err)
	}
	return FormatInvoiceNumber(at, seq), nil
}

// FormatInvoiceNumber renders INV-YYYYMM-NNNN.
func FormatInvoiceNumber(at time.Time, seq int64) string {
	return fmt.Sprintf("INV-%s-%04d", at.Format("200601"), seq)
}

func (t *txRepository) Insert(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO invoices (
			invoice_number, order_id, org_id, salesperson_id, status, subtotal, discount, tax_rate,
			tax_amount, total_amount, amount_paid, due_date, notes, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`,
		inv.InvoiceNumber, inv.OrderID, inv.OrgID, inv.SalespersonID, inv.Status, inv.Subtotal, inv.Discount,
		inv.TaxRate, inv.TaxAmount, inv.TotalAmount, inv.AmountPaid, inv.DueDate, inv.Notes, inv.CreatedBy,
	).Scan(&id)
	if db.IsUniqueViolation(err) {
		return 0, httpx.Conflict("invoice number %s already exists", inv.InvoiceNumber)
	}
	return id, err
}

func (t *txRepository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := t.tx.Exec(ctx, `UPDATE invoices SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.NotFound("invoice", id)
	}
	return nil
}

func (t *txRepository) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO invoice_payments (invoice_id, amount, method, reference, paid_at, recorded_by)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		p.InvoiceID, p.Amount, p.Method, p.Reference, p.PaidAt, p.RecordedBy).Scan(&id)
	return id, err
}

func (t *txRepository) SumPayments(ctx context.Context, invoiceID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM invoice_payments WHERE invoice_id = $1`, invoiceID).Scan(&sum)
	return sum, err
}

func (t *txRepository) SetPaid(ctx context.Context, id int64, paid decimal.Decimal, status Status) error {
	_, err := t.tx.Exec(ctx, `UPDATE invoices SET amount_paid = $1, status = $2, updated_at = NOW() WHERE id = $3`,
		paid, status, id)
	return err
}
