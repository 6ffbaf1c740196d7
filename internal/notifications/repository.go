package notifications

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository is the PostgreSQL Repository.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Insert(ctx context.Context, n New) (Notification, error) {
	out := Notification{UserID: n.UserID, Title: n.Title, Message: n.Message, Type: n.Type, Link: n.Link}
	err := r.pool.QueryRow(ctx, `INSERT INTO notifications (user_id, title, message, type, link)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		n.UserID, n.Title, n.Message, string(n.Type), n.Link).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return Notification{}, fmt.Errorf("notifications: insert: %w", err)
	}
	return out, nil
}

func (r *PGRepository) ListForUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, title, message, type, link, is_read, created_at
		FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR NOT is_read)
		ORDER BY created_at DESC, id DESC
		LIMIT $3`, userID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("notifications: list: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var typ string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &typ, &n.Link, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("notifications: scan: %w", err)
		}
		n.Type = Type(typ)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *PGRepository) CountUnread(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("notifications: count unread: %w", err)
	}
	return n, nil
}

func (r *PGRepository) MarkRead(ctx context.Context, userID, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("notifications: mark read: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PGRepository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return 0, fmt.Errorf("notifications: mark all read: %w", err)
	}
	return tag.RowsAffected(), nil
}
