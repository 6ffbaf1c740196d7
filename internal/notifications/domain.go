// Package notifications stores in-app notifications and serves each user's inbox.
package notifications

import (
	"context"
	"time"
)

// Type classifies a notification for the client.
type Type string

const (
	TypeInfo    Type = "info"
	TypeSuccess Type = "success"
	TypeWarning Type = "warning"
	TypeTask    Type = "task"
	TypeOrder   Type = "order"
)

// Notification is one inbox item.
type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      Type      `json:"type"`
	Link      string    `json:"link,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// New is the input for creating a notification.
type New struct {
	UserID  int64
	Title   string
	Message string
	Type    Type
	Link    string
}

// Notifier is the notification collaborator used by domain services.
type Notifier interface {
	Notify(ctx context.Context, n New) error
}

// Repository persists notifications.
type Repository interface {
	Insert(ctx context.Context, n New) (Notification, error)
	ListForUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]Notification, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, userID, id int64) (bool, error)
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
}
