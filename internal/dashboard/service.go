package dashboard

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/richhabits/richhabits-os/internal/commissions"
	"github.com/richhabits/richhabits-os/internal/platform/cache"
	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/rbac"
)

// CommissionSource provides the caller's own commission position.
type CommissionSource interface {
	Summary(ctx context.Context, actor rbac.Principal, salespersonID int64) (commissions.Summary, error)
}

// UnreadCounter counts unread notifications.
type UnreadCounter interface {
	UnreadCount(ctx context.Context, userID int64) (int, error)
}

// Service builds dashboard summaries.
type Service struct {
	repo        Repository
	commissions CommissionSource
	unread      UnreadCounter
	cache       *cache.JSONCache
	logger      *slog.Logger
	now         func() time.Time
}

// NewService wires the dashboard service. A nil cache recomputes on every call.
func NewService(repo Repository, commissionSource CommissionSource, unread UnreadCounter, summaries *cache.JSONCache, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		commissions: commissionSource,
		unread:      unread,
		cache:       summaries,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Summary returns the dashboard for actor. Aggregates are cached per role and user; the unread
// notification count is always read fresh.
func (s *Service) Summary(ctx context.Context, actor rbac.Principal) (Summary, error) {
	if !actor.Can(rbac.Dashboard, rbac.ActionView) {
		return Summary{}, httpx.Forbidden("you cannot view the dashboard")
	}
	var out Summary
	key := string(actor.Role) + ":" + strconv.FormatInt(actor.UserID, 10)
	err := s.cache.Fetch(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.build(ctx, actor)
	})
	if err != nil {
		return Summary{}, httpx.Wrap("dashboard: summary", err)
	}
	if s.unread != nil {
		n, err := s.unread.UnreadCount(ctx, actor.UserID)
		if err != nil {
			s.logger.Warn("dashboard unread count", slog.Int64("user_id", actor.UserID), slog.Any("error", err))
		} else {
			out.UnreadNotifications = n
		}
	}
	return out, nil
}

func (s *Service) build(ctx context.Context, actor rbac.Principal) (Summary, error) {
	now := s.now()
	out := Summary{Role: actor.Role, GeneratedAt: now}

	// owner returns 0 when the role sees every record of resource.
	owner := func(resource rbac.Resource) int64 {
		if actor.Can(resource, rbac.ActionViewAll) {
			return 0
		}
		return actor.UserID
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	if actor.Can(rbac.Orders, rbac.ActionView) {
		id := owner(rbac.Orders)
		g.Go(func() (err error) {
			out.Orders, err = s.repo.OrderStatusCounts(gctx, id)
			return err
		})
	}
	if actor.Can(rbac.Quotes, rbac.ActionView) {
		id := owner(rbac.Quotes)
		g.Go(func() (err error) {
			out.Quotes, err = s.repo.QuoteStatusCounts(gctx, id)
			return err
		})
	}
	if actor.Can(rbac.Manufacturing, rbac.ActionView) {
		id := owner(rbac.Manufacturing)
		g.Go(func() (err error) {
			out.Manufacturing, err = s.repo.JobStatusCounts(gctx, id)
			return err
		})
	}
	if actor.Can(rbac.Invoices, rbac.ActionView) {
		id := owner(rbac.Invoices)
		g.Go(func() error {
			snap, err := s.repo.InvoiceSnapshot(gctx, id, now)
			if err != nil {
				return err
			}
			out.Invoices = &snap
			return nil
		})
	}
	taskOwner := owner(rbac.Tasks)
	g.Go(func() (err error) {
		out.Tasks, err = s.repo.TaskSnapshot(gctx, taskOwner, now)
		return err
	})
	if actor.Role == rbac.RoleSales && s.commissions != nil {
		g.Go(func() error {
			sum, err := s.commissions.Summary(gctx, actor, actor.UserID)
			if err != nil {
				return err
			}
			out.Commission = &CommissionSnapshot{Earned: sum.Earned, Paid: sum.Paid, Pending: sum.Pending}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return out, nil
}
