package quotes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/richhabits/richhabits-os/internal/finance"
	"github.com/richhabits/richhabits-os/internal/platform/db"
	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/workflow"
)

// Repository is the storage port used by Service.
type Repository interface {
	Get(ctx context.Context, id int64) (Quote, error)
	List(ctx context.Context, filter ListFilter) ([]Quote, int, error)
	ListExpirable(ctx context.Context, now time.Time) ([]Quote, error)
	NextQuoteCode(ctx context.Context, at time.Time) (string, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	Insert(ctx context.Context, q Quote) (int64, error)
	UpdateHeader(ctx context.Context, q Quote) error
	SaveTotals(ctx context.Context, id int64, t finance.Totals) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	Delete(ctx context.Context, id int64) error
	ListItems(ctx context.Context, quoteID int64) ([]LineItem, error)
	InsertItem(ctx context.Context, li LineItem) (int64, error)
	UpdateItem(ctx context.Context, li LineItem) error
	DeleteItem(ctx context.Context, quoteID, itemID int64) error
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

const quoteColumns = `id, quote_code, org_id, salesperson_id, title, status, subtotal, discount, tax_rate,
	tax_amount, total, valid_until, notes, created_by, created_at, updated_at`

func scanQuote(row pgx.Row) (Quote, error) {
	var q Quote
	err := row.Scan(&q.ID, &q.QuoteCode, &q.OrgID, &q.SalespersonID, &q.Title, &q.Status, &q.Subtotal, &q.Discount,
		&q.TaxRate, &q.TaxAmount, &q.Total, &q.ValidUntil, &q.Notes, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
	return q, err
}

const itemColumns = `id, quote_id, item_name, description, quantity, unit_price, line_total`

func queryItems(ctx context.Context, q interface {
	Query(context.Context, string, ...any) (pgx.Rows, error)
}, quoteID int64) ([]LineItem, error) {
	rows, err := q.Query(ctx, `SELECT `+itemColumns+` FROM quote_line_items WHERE quote_id = $1 ORDER BY id`, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []LineItem{}
	for rows.Next() {
		var li LineItem
		if err := rows.Scan(&li.ID, &li.QuoteID, &li.ItemName, &li.Description, &li.Quantity, &li.UnitPrice, &li.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, li)
	}
	return items, rows.Err()
}

// Get loads a quote with its items.
func (r *PGRepository) Get(ctx context.Context, id int64) (Quote, error) {
	q, err := scanQuote(r.pool.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Quote{}, httpx.NotFound("quote", id)
	}
	if err != nil {
		return Quote{}, fmt.Errorf("quotes: get %d: %w", id, err)
	}
	q.Items, err = queryItems(ctx, r.pool, id)
	if err != nil {
		return Quote{}, fmt.Errorf("quotes: get items %d: %w", id, err)
	}
	return q, nil
}

// List returns quotes matching filter, newest first, plus the total match count.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Quote, int, error) {
	var where []string
	var args []any
	argPos := 1
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", argPos))
		args = append(args, filter.Status)
		argPos++
	}
	if filter.SalespersonID != 0 {
		where = append(where, fmt.Sprintf("salesperson_id = $%d", argPos))
		args = append(args, filter.SalespersonID)
		argPos++
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR quote_code ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+s+"%")
		argPos++
	}
	clause := "TRUE"
	if len(where) > 0 {
		clause = strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quotes WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("quotes: count: %w", err)
	}
	query := fmt.Sprintf(`SELECT %s FROM quotes WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		quoteColumns, clause, argPos, argPos+1)
	args = append(args, filter.Page.PerPage, filter.Page.Offset())
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("quotes: list: %w", err)
	}
	defer rows.Close()
	var out []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("quotes: scan: %w", err)
		}
		out = append(out, q)
	}
	return out, total, rows.Err()
}

// ListExpirable returns sent quotes whose validity ended before now.
func (r *PGRepository) ListExpirable(ctx context.Context, now time.Time) ([]Quote, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+quoteColumns+` FROM quotes
		WHERE status = $1 AND valid_until IS NOT NULL AND valid_until < $2
		ORDER BY id`, workflow.QuoteSent, now)
	if err != nil {
		return nil, fmt.Errorf("quotes: list expirable: %w", err)
	}
	defer rows.Close()
	var out []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("quotes: scan: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// NextQuoteCode draws from a sequence so concurrent creates never collide.
func (r *PGRepository) NextQuoteCode(ctx context.Context, at time.Time) (string, error) {
	var seq int64
	if err := r.pool.QueryRow(ctx, `SELECT nextval('quote_code_seq')`).Scan(&seq); err != nil {
		return "", fmt.Errorf("quotes: next code: %w", err)
	}
	return FormatQuoteCode(at, seq), nil
}

// FormatQuoteCode renders QTE-YYYYMM-NNNN.
func FormatQuoteCode(at time.Time, seq int64) string {
	return fmt.Sprintf("QTE-%s-%04d", at.Format("200601"), seq)
}

func (t *txRepository) Insert(ctx context.Context, q Quote) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO quotes (
			quote_code, org_id, salesperson_id, title, status, subtotal, discount, tax_rate,
			tax_amount, total, valid_until, notes, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`,
		q.QuoteCode, q.OrgID, q.SalespersonID, q.Title, q.Status, q.Subtotal, q.Discount, q.TaxRate,
		q.TaxAmount, q.Total, q.ValidUntil, q.Notes, q.CreatedBy,
	).Scan(&id)
	if db.IsUniqueViolation(err) {
		return 0, httpx.Conflict("quote code %s already exists", q.QuoteCode)
	}
	return id, err
}

func (t *txRepository) UpdateHeader(ctx context.Context, q Quote) error {
	tag, err := t.tx.Exec(ctx, `UPDATE quotes SET title = $1, discount = $2, tax_rate = $3, valid_until = $4,
		notes = $5, updated_at = NOW() WHERE id = $6`,
		q.Title, q.Discount, q.TaxRate, q.ValidUntil, q.Notes, q.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.NotFound("quote", q.ID)
	}
	return nil
}

func (t *txRepository) SaveTotals(ctx context.Context, id int64, totals finance.Totals) error {
	_, err := t.tx.Exec(ctx, `UPDATE quotes SET subtotal = $1, discount = $2, tax_rate = $3, tax_amount = $4,
		total = $5, updated_at = NOW() WHERE id = $6`,
		totals.Subtotal, totals.Discount, totals.TaxRate, totals.Tax, totals.Total, id)
	return err
}

func (t *txRepository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := t.tx.Exec(ctx, `UPDATE quotes SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.NotFound("quote", id)
	}
	return nil
}

// Delete removes a quote; line items cascade.
func (t *txRepository) Delete(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM quotes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.NotFound("quote", id)
	}
	return nil
}

func (t *txRepository) ListItems(ctx context.Context, quoteID int64) ([]LineItem, error) {
	return queryItems(ctx, t.tx, quoteID)
}

func (t *txRepository) InsertItem(ctx context.Context, li LineItem) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO quote_line_items (quote_id, item_name, description, quantity, unit_price, line_total)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		li.QuoteID, li.ItemName, li.Description, li.Quantity, li.UnitPrice, li.LineTotal).Scan(&id)
	return id, err
}

func (t *txRepository) UpdateItem(ctx context.Context, li LineItem) error {
	tag, err := t.tx.Exec(ctx, `UPDATE quote_line_items SET item_name = $1, description = $2, quantity = $3,
		unit_price = $4, line_total = $5 WHERE id = $6 AND quote_id = $7`,
		li.ItemName, li.Description, li.Quantity, li.UnitPrice, li.LineTotal, li.ID, li.QuoteID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.NotFound("quote line item", li.ID)
	}
	return nil
}

func (t *txRepository) DeleteItem(ctx context.Context, quoteID, itemID int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM quote_line_items WHERE id = $1 AND quote_id = $2`, itemID, quoteID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.NotFound("quote line item", itemID)
	}
	return nil
}
