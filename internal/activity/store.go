package activity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store writes and reads activity_log rows.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore returns a new Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Record persists the entry.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if s == nil {
		return errors.New("activity: store not initialised")
	}
	if err := e.validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO activity_log
		(entity_type, entity_id, action, user_id, previous_state, new_state, occurred_at)
		VALUES ($1, $2, $3, NULLIF($4::bigint, 0), $5, $6, COALESCE($7, NOW()))`,
		e.EntityType, e.EntityID, e.Action, e.UserID, nullJSON(e.PreviousState), nullJSON(e.NewState), nullTime(e))
	if err != nil {
		return fmt.Errorf("activity: insert: %w", err)
	}
	return nil
}

// List returns up to limit entries newest first, skipping offset.
func (s *Store) List(ctx context.Context, f Filter, offset, limit int) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, entity_type, entity_id, action, COALESCE(user_id, 0),
			COALESCE(previous_state, 'null'::jsonb), COALESCE(new_state, 'null'::jsonb), occurred_at
		FROM activity_log
		WHERE ($1 = '' OR entity_type = $1)
		  AND ($2 = 0 OR entity_id = $2)
		  AND ($3 = 0 OR user_id = $3)
		ORDER BY occurred_at DESC, id DESC
		OFFSET $4 LIMIT $5`, f.EntityType, f.EntityID, f.UserID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("activity: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var prev, next []byte
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.UserID, &prev, &next, &e.At); err != nil {
			return nil, fmt.Errorf("activity: scan: %w", err)
		}
		e.PreviousState = trimNull(prev)
		e.NewState = trimNull(next)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (e Entry) validate() error {
	if e.Action == "" || e.EntityType == "" || e.EntityID == 0 {
		return errors.New("activity: entry requires action, entity_type and entity_id")
	}
	return nil
}

func nullJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func nullTime(e Entry) any {
	if e.At.IsZero() {
		return nil
	}
	return e.At
}

func trimNull(raw []byte) []byte {
	if string(raw) == "null" {
		return nil
	}
	return raw
}
