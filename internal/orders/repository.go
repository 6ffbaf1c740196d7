package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/richhabits/richhabits-os/internal/platform/db"
	"github.com/richhabits/richhabits-os/internal/platform/httpx"
)

// Repository is the storage port used by Service.
type Repository interface {
	Get(ctx context.Context, id int64) (Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, int, error)
	NextOrderCode(ctx context.Context, at time.Time) (string, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	Insert(ctx context.Context, o Order) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]any) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	ReplaceItems(ctx context.Context, orderID int64, items []LineItem) error
	Archive(ctx context.Context, id int64, at time.Time) error
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

const orderColumns = `id, order_code, org_id, salesperson_id, order_name, status, priority,
	design_approved, sizes_validated, deposit_received, total_amount, notes, created_by,
	archived_at, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderCode, &o.OrgID, &o.SalespersonID, &o.OrderName, &o.Status, &o.Priority,
		&o.DesignApproved, &o.SizesValidated, &o.DepositReceived, &o.TotalAmount, &o.Notes, &o.CreatedBy,
		&o.ArchivedAt, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// Get loads an order with its items.
func (r *PGRepository) Get(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, httpx.NotFound("order", id)
	}
	if err != nil {
		return Order{}, fmt.Errorf("orders: get %d: %w", id, err)
	}

	rows, err := r.pool.Query(ctx, `SELECT id, order_id, item_name, size, quantity, unit_price, line_total
		FROM order_line_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return Order{}, fmt.Errorf("orders: get items %d: %w", id, err)
	}
	defer rows.Close()
	o.Items = []LineItem{}
	for rows.Next() {
		var li LineItem
		if err := rows.Scan(&li.ID, &li.OrderID, &li.ItemName, &li.Size, &li.Quantity, &li.UnitPrice, &li.LineTotal); err != nil {
			return Order{}, fmt.Errorf("orders: scan item: %w", err)
		}
		o.Items = append(o.Items, li)
	}
	return o, rows.Err()
}

// List returns non-archived orders matching filter, newest first, plus the total match count.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	where := []string{"archived_at IS NULL"}
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
		where = append(where, fmt.Sprintf("(order_name ILIKE $%d OR order_code ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+s+"%")
		argPos++
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("orders: count: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM orders WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, clause, argPos, argPos+1)
	args = append(args, filter.Page.PerPage, filter.Page.Offset())
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("orders: list: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("orders: scan: %w", err)
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

// NextOrderCode draws from a sequence so concurrent creates never collide.
func (r *PGRepository) NextOrderCode(ctx context.Context, at time.Time) (string, error) {
	var seq int64
	if err := r.pool.QueryRow(ctx, `SELECT nextval('order_code_seq')`).Scan(&seq); err != nil {
		return "", fmt.Errorf("orders: next code: %w", err)
	}
	return FormatOrderCode(at, seq), nil
}

// FormatOrderCode renders ORD-YYYYMM-NNNN.
func FormatOrderCode(at time.Time, seq int64) string {
	return fmt.Sprintf("ORD-%s-%04d", at.Format("200601"), seq)
}

func (t *txRepository) Insert(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO orders (
			order_code, org_id, salesperson_id, order_name, status, priority,
			design_approved, sizes_validated, deposit_received, total_amount, notes, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		o.OrderCode, o.OrgID, o.SalespersonID, o.OrderName, o.Status, o.Priority,
		o.DesignApproved, o.SizesValidated, o.DepositReceived, o.TotalAmount, o.Notes, o.CreatedBy,
	).Scan(&id)
	if db.IsUniqueViolation(err) {
		return 0, httpx.Conflict("order code %s already exists", o.OrderCode)
	}
	return id, err
}

// Update applies a column → value patch.
func (t *txRepository) Update(ctx context.Context, id int64, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}

	var setClauses []string
	var args []any
	argPos := 1

	for field, value := range updates {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field, argPos))
		args = append(args, value)
		argPos++
	}
	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE orders SET %s WHERE id = $%d`, strings.Join(setClauses, ", "), argPos)
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.NotFound("order", id)
	}
	return nil
}

func (t *txRepository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := t.tx.Exec(ctx, `UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.NotFound("order", id)
	}
	return nil
}

func (t *txRepository) ReplaceItems(ctx context.Context, orderID int64, items []LineItem) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM order_line_items WHERE order_id = $1`, orderID); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(items))
	for _, li := range items {
		rows = append(rows, []any{orderID, li.ItemName, li.Size, li.Quantity, li.UnitPrice, li.LineTotal})
	}
	_, err := t.tx.CopyFrom(ctx, pgx.Identifier{"order_line_items"},
		[]string{"order_id", "item_name", "size", "quantity", "unit_price", "line_total"},
		pgx.CopyFromRows(rows))
	return err
}

func (t *txRepository) Archive(ctx context.Context, id int64, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE orders SET archived_at = $1, updated_at = NOW() WHERE id = $2 AND archived_at IS NULL`, at, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.NotFound("order", id)
	}
	return nil
}

