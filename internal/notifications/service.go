package notifications

import (
	"context"
	"strings"

	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/rbac"
)

const inboxLimit = 50

// Service implements Notifier and the inbox operations.
type Service struct {
	repo Repository
}

// NewService builds the service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Notify creates a notification for n.UserID.
func (s *Service) Notify(ctx context.Context, n New) error {
	n.Title = strings.TrimSpace(n.Title)
	if n.UserID <= 0 {
		return httpx.InvalidField("user_id", "is required")
	}
	if n.Title == "" {
		return httpx.InvalidField("title", "is required")
	}
	if n.Type == "" {
		n.Type = TypeInfo
	}
	if _, err := s.repo.Insert(ctx, n); err != nil {
		return httpx.Wrap("notifications: notify", err)
	}
	return nil
}

// Inbox is a user's notification listing.
type Inbox struct {
	Items  []Notification `json:"items"`
	Unread int            `json:"unread"`
}

// Inbox lists the actor's notifications, newest first.
func (s *Service) Inbox(ctx context.Context, actor rbac.Principal, unreadOnly bool) (Inbox, error) {
	items, err := s.repo.ListForUser(ctx, actor.UserID, unreadOnly, inboxLimit)
	if err != nil {
		return Inbox{}, httpx.Wrap("notifications: inbox", err)
	}
	unread, err := s.repo.CountUnread(ctx, actor.UserID)
	if err != nil {
		return Inbox{}, httpx.Wrap("notifications: inbox", err)
	}
	if items == nil {
		items = []Notification{}
	}
	return Inbox{Items: items, Unread: unread}, nil
}

// UnreadCount returns how many notifications the user has not read.
func (s *Service) UnreadCount(ctx context.Context, userID int64) (int, error) {
	n, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, httpx.Wrap("notifications: unread count", err)
	}
	return n, nil
}

// MarkRead marks one of the actor's notifications read. Other users' notifications are reported as
// missing.
func (s *Service) MarkRead(ctx context.Context, actor rbac.Principal, id int64) error {
	ok, err := s.repo.MarkRead(ctx, actor.UserID, id)
	if err != nil {
		return httpx.Wrap("notifications: mark read", err)
	}
	if !ok {
		return httpx.NotFound("notification", id)
	}
	return nil
}

// MarkAllRead marks every notification of the actor read.
func (s *Service) MarkAllRead(ctx context.Context, actor rbac.Principal) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, actor.UserID)
	if err != nil {
		return 0, httpx.Wrap("notifications: mark all read", err)
	}
	return n, nil
}
