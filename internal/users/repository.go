package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/rbac"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, name, role, commission_rate, is_active, created_at, updated_at`

// Get returns one user.
func (r *Repository) Get(ctx context.Context, id int64) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, httpx.NotFound("user", id)
	}
	if err != nil {
		return User{}, fmt.Errorf("users: get %d: %w", id, err)
	}
	return u, nil
}

// List returns users matching filter ordered by name.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users
		WHERE ($1 = '' OR role = $1) AND (NOT $2 OR is_active)
		ORDER BY name`, string(filter.Role), filter.ActiveOnly)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("users: scan: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u    User
		role string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &role, &u.CommissionRate, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	parsed, err := rbac.ParseRole(role)
	if err != nil {
		return User{}, err
	}
	u.Role = parsed
	return u, nil
}
