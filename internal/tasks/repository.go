package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/richhabits/richhabits-os/internal/platform/httpx"
)

// Repository is the storage port used by Service.
type Repository interface {
	Get(ctx context.Context, id int64) (Task, error)
	List(ctx context.Context, filter ListFilter) ([]Task, int, error)
	Insert(ctx context.Context, t Task) (int64, error)
	Update(ctx context.Context, t Task) error
	UpdateStatus(ctx context.Context, id int64, status Status, completedAt *time.Time) error
	Archive(ctx context.Context, id int64, at time.Time) error
}

// PGRepository provides PostgreSQL backed persistence. Every task write touches one row, so no
// transaction wrapper is needed.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const taskColumns = `id, title, description, status, priority, due_date, assigned_to_user_id, created_by_user_id,
	order_id, completed_at, archived_at, created_at, updated_at`

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.DueDate, &t.AssignedToUserID,
		&t.CreatedByUserID, &t.OrderID, &t.CompletedAt, &t.ArchivedAt, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// Get loads one task, archived or not.
func (r *PGRepository) Get(ctx context.Context, id int64) (Task, error) {
	t, err := scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, httpx.NotFound("task", id)
	}
	if err != nil {
		return Task{}, fmt.Errorf("tasks: get %d: %w", id, err)
	}
	return t, nil
}

// List returns live tasks matching filter, soonest due first.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Task, int, error) {
	where := []string{"archived_at IS NULL"}
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.ReplaceAll(cond, "$?", fmt.Sprintf("$%d", len(args))))
	}
	if filter.Status != "" {
		add("status = $?", filter.Status)
	}
	if filter.AssignedTo != 0 {
		add("assigned_to_user_id = $?", filter.AssignedTo)
	}
	if filter.OrderID != 0 {
		add("order_id = $?", filter.OrderID)
	}
	if filter.VisibleTo != 0 {
		add("(assigned_to_user_id = $? OR created_by_user_id = $?)", filter.VisibleTo)
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("tasks: count: %w", err)
	}
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE %s ORDER BY due_date NULLS LAST, id LIMIT $%d OFFSET $%d`,
		taskColumns, clause, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, query, append(args, filter.Page.PerPage, filter.Page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("tasks: list: %w", err)
	}
	defer rows.Close()
	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("tasks: scan: %w", err)
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

// Insert stores a new task.
func (r *PGRepository) Insert(ctx context.Context, t Task) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO tasks (
			title, description, status, priority, due_date, assigned_to_user_id, created_by_user_id, order_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		t.Title, t.Description, t.Status, t.Priority, t.DueDate, t.AssignedToUserID, t.CreatedByUserID, t.OrderID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("tasks: insert: %w", err)
	}
	return id, nil
}

// Update rewrites the editable columns.
func (r *PGRepository) Update(ctx context.Context, t Task) error {
	tag, err := r.pool.Exec(ctx, `UPDATE tasks SET title = $1, description = $2, priority = $3, due_date = $4,
		assigned_to_user_id = $5, order_id = $6, updated_at = NOW() WHERE id = $7 AND archived_at IS NULL`,
		t.Title, t.Description, t.Priority, t.DueDate, t.AssignedToUserID, t.OrderID, t.ID)
	if err != nil {
		return fmt.Errorf("tasks: update %d: %w", t.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.NotFound("task", t.ID)
	}
	return nil
}

// UpdateStatus sets status and completion time.
func (r *PGRepository) UpdateStatus(ctx context.Context, id int64, status Status, completedAt *time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE tasks SET status = $1, completed_at = $2, updated_at = NOW()
		WHERE id = $3 AND archived_at IS NULL`, status, completedAt, id)
	if err != nil {
		return fmt.Errorf("tasks: update status %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.NotFound("task", id)
	}
	return nil
}

// Archive soft-deletes a task.
func (r *PGRepository) Archive(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE tasks SET archived_at = $1, updated_at = NOW()
		WHERE id = $2 AND archived_at IS NULL`, at, id)
	if err != nil {
		return fmt.Errorf("tasks: archive %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.NotFound("task", id)
	}
	return nil
}
