package manufacturing

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
	Get(ctx context.Context, id int64) (Job, error)
	List(ctx context.Context, filter ListFilter) ([]Job, int, error)
	Order(ctx context.Context, orderID int64) (OrderInfo, error)
	Insert(ctx context.Context, j Job) (int64, error)
	Update(ctx context.Context, j Job) error
	UpdateStatus(ctx context.Context, id int64, status Status, startedAt, completedAt *time.Time) error
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const jobSelect = `SELECT j.id, j.order_id, o.order_code, o.salesperson_id, j.status, j.assigned_to_user_id, j.notes,
	j.started_at, j.completed_at, j.created_at, j.updated_at
	FROM manufacturing_jobs j JOIN orders o ON o.id = j.order_id`

func scanJob(row pgx.Row) (Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.OrderID, &j.OrderCode, &j.SalespersonID, &j.Status, &j.AssignedToUserID, &j.Notes,
		&j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	return j, err
}

// Get loads one job with its order code.
func (r *PGRepository) Get(ctx context.Context, id int64) (Job, error) {
	j, err := scanJob(r.pool.QueryRow(ctx, jobSelect+` WHERE j.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, httpx.NotFound("manufacturing job", id)
	}
	if err != nil {
		return Job{}, fmt.Errorf("manufacturing: get %d: %w", id, err)
	}
	return j, nil
}

// List returns jobs matching filter, oldest first so the floor works in arrival order.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Job, int, error) {
	var where []string
	var args []any
	add := func(column string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.Status != "" {
		add("j.status", filter.Status)
	}
	if filter.AssignedTo != 0 {
		add("j.assigned_to_user_id", filter.AssignedTo)
	}
	if filter.SalespersonID != 0 {
		add("o.salesperson_id", filter.SalespersonID)
	}
	clause := "TRUE"
	if len(where) > 0 {
		clause = strings.Join(where, " AND ")
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM manufacturing_jobs j JOIN orders o ON o.id = j.order_id WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("manufacturing: count: %w", err)
	}
	query := fmt.Sprintf(`%s WHERE %s ORDER BY j.created_at, j.id LIMIT $%d OFFSET $%d`, jobSelect, clause, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, query, append(args, filter.Page.PerPage, filter.Page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("manufacturing: list: %w", err)
	}
	defer rows.Close()
	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("manufacturing: scan: %w", err)
		}
		out = append(out, j)
	}
	return out, total, rows.Err()
}

// Order loads the order a job is created for.
func (r *PGRepository) Order(ctx context.Context, orderID int64) (OrderInfo, error) {
	var o OrderInfo
	err := r.pool.QueryRow(ctx, `SELECT id, order_code, salesperson_id, status FROM orders
		WHERE id = $1 AND archived_at IS NULL`, orderID).Scan(&o.ID, &o.OrderCode, &o.SalespersonID, &o.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return OrderInfo{}, httpx.NotFound("order", orderID)
	}
	if err != nil {
		return OrderInfo{}, fmt.Errorf("manufacturing: order %d: %w", orderID, err)
	}
	return o, nil
}

// Insert stores a job. A second open job for the same order violates a partial unique index.
func (r *PGRepository) Insert(ctx context.Context, j Job) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO manufacturing_jobs (order_id, status, assigned_to_user_id, notes)
		VALUES ($1, $2, $3, $4) RETURNING id`, j.OrderID, j.Status, j.AssignedToUserID, j.Notes).Scan(&id)
	if db.IsUniqueViolation(err) {
		return 0, httpx.Conflict("order %d already has an open manufacturing job", j.OrderID)
	}
	if err != nil {
		return 0, fmt.Errorf("manufacturing: insert: %w", err)
	}
	return id, nil
}

// Update rewrites assignment and notes.
func (r *PGRepository) Update(ctx context.Context, j Job) error {
	tag, err := r.pool.Exec(ctx, `UPDATE manufacturing_jobs SET assigned_to_user_id = $1, notes = $2, updated_at = NOW()
		WHERE id = $3`, j.AssignedToUserID, j.Notes, j.ID)
	if err != nil {
		return fmt.Errorf("manufacturing: update %d: %w", j.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.NotFound("manufacturing job", j.ID)
	}
	return nil
}

// UpdateStatus sets status and stage timestamps.
func (r *PGRepository) UpdateStatus(ctx context.Context, id int64, status Status, startedAt, completedAt *time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE manufacturing_jobs SET status = $1, started_at = $2, completed_at = $3,
		updated_at = NOW() WHERE id = $4`, status, startedAt, completedAt, id)
	if err != nil {
		return fmt.Errorf("manufacturing: update status %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.NotFound("manufacturing job", id)
	}
	return nil
}
