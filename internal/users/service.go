package users

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/richhabits/richhabits-os/internal/platform/cache"
	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/rbac"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (User, error)
	List(ctx context.Context, filter ListFilter) ([]User, error)
}

// Service handles user lookups and the cached principal resolution used on every request.
type Service struct {
	repo   RepositoryPort
	cache  *cache.JSONCache
	logger *slog.Logger
	group  singleflight.Group
}

// NewService builds Service instance. cache may be nil.
func NewService(repo RepositoryPort, principals *cache.JSONCache, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: principals, logger: logger}
}

const resolveTimeout = 5 * time.Second

// Resolve implements rbac.PrincipalResolver. Inactive users resolve as not found.
func (s *Service) Resolve(ctx context.Context, userID int64) (rbac.Principal, error) {
	key := strconv.FormatInt(userID, 10)
	v, err, _ := s.group.Do(key, func() (any, error) {
		// Shared by every waiter, so one caller cancelling must not fail the rest.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()
		var p rbac.Principal
		err := s.cache.Fetch(loadCtx, key, &p, func(ctx context.Context) (any, error) {
			u, err := s.repo.Get(ctx, userID)
			if err != nil {
				return nil, err
			}
			if !u.IsActive {
				return nil, httpx.NotFound("user", userID)
			}
			return u.Principal(), nil
		})
		return p, err
	})
	if err != nil {
		return rbac.Principal{}, httpx.Wrap("users: resolve", err)
	}
	return v.(rbac.Principal), nil
}

// Invalidate drops the cached principal, e.g. on logout or role change.
func (s *Service) Invalidate(ctx context.Context, userID int64) {
	if err := s.cache.Delete(ctx, strconv.FormatInt(userID, 10)); err != nil {
		s.logger.Warn("users: invalidate principal cache", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

// Get returns a user record.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, httpx.Wrap("users: get", err)
	}
	return u, nil
}

// ListUsers returns users. Actors without view-all rights only see themselves.
func (s *Service) ListUsers(ctx context.Context, actor rbac.Principal, filter ListFilter) ([]User, error) {
	if !actor.Can(rbac.Users, rbac.ActionViewAll) {
		u, err := s.Get(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		return []User{u}, nil
	}
	out, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, httpx.Wrap("users: list", err)
	}
	if out == nil {
		out = []User{}
	}
	return out, nil
}
