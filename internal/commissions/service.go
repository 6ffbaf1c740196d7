package commissions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/richhabits/richhabits-os/internal/activity"
	"github.com/richhabits/richhabits-os/internal/finance"
	"github.com/richhabits/richhabits-os/internal/notifications"
	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/rbac"
)

const (
	entityType = "commission"

	summaryConcurrency = 4
)

// Service computes commission positions and records payouts.
type Service struct {
	repo     Repository
	activity activity.Recorder
	notifier notifications.Notifier
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService builds Service instance.
func NewService(repo Repository, recorder activity.Recorder, notifier notifications.Notifier, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		activity: recorder,
		notifier: notifier,
		logger:   logger,
		validate: httpx.NewValidator(),
		now:      time.Now,
	}
}

// Summary returns earned, paid and pending commission for one salesperson.
func (s *Service) Summary(ctx context.Context, actor rbac.Principal, salespersonID int64) (Summary, error) {
	if !CanUserViewCommission(actor, salespersonID) {
		return Summary{}, httpx.Forbidden("you cannot view this commission")
	}
	sp, err := s.repo.Salesperson(ctx, salespersonID)
	if err != nil {
		return Summary{}, httpx.Wrap("commissions: summary", err)
	}
	return s.summarize(ctx, sp)
}

// ListSummaries returns the position of every active salesperson.
func (s *Service) ListSummaries(ctx context.Context, actor rbac.Principal) ([]Summary, error) {
	if !actor.Can(rbac.Commissions, rbac.ActionViewAll) {
		if !actor.Can(rbac.Commissions, rbac.ActionView) {
			return nil, httpx.Forbidden("you cannot view commissions")
		}
		own, err := s.Summary(ctx, actor, actor.UserID)
		if err != nil {
			return nil, err
		}
		return []Summary{own}, nil
	}

	people, err := s.repo.ListSalespeople(ctx)
	if err != nil {
		return nil, httpx.Wrap("commissions: list", err)
	}
	out := make([]Summary, len(people))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryConcurrency)
	for i, sp := range people {
		g.Go(func() error {
			sum, err := s.summarize(gctx, sp)
			if err != nil {
				return err
			}
			out[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) summarize(ctx context.Context, sp Salesperson) (Summary, error) {
	totals, err := s.repo.CompletedOrderTotals(ctx, sp.UserID)
	if err != nil {
		return Summary{}, httpx.Wrap("commissions: summary", err)
	}
	payments, err := s.repo.ListPayments(ctx, sp.UserID)
	if err != nil {
		return Summary{}, httpx.Wrap("commissions: summary", err)
	}
	paid := make([]decimal.Decimal, len(payments))
	for i, p := range payments {
		paid[i] = p.TotalAmount
	}
	earned, err := finance.Commission(totals, sp.CommissionRate)
	if err != nil {
		return Summary{}, err
	}
	pending, err := finance.PendingCommission(totals, sp.CommissionRate, paid)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Salesperson:     sp,
		CompletedOrders: len(totals),
		SalesTotal:      finance.Sum(totals),
		Earned:          earned,
		Paid:            finance.Sum(paid),
		Pending:         pending,
	}, nil
}

// ListPayments returns the payout history of a salesperson.
func (s *Service) ListPayments(ctx context.Context, actor rbac.Principal, salespersonID int64) ([]Payment, error) {
	if !CanUserViewCommission(actor, salespersonID) {
		return nil, httpx.Forbidden("you cannot view this commission")
	}
	out, err := s.repo.ListPayments(ctx, salespersonID)
	if err != nil {
		return nil, httpx.Wrap("commissions: list payments", err)
	}
	return out, nil
}

// RecordPayment stores a payout. The amount may not exceed what is still pending.
func (s *Service) RecordPayment(ctx context.Context, actor rbac.Principal, salespersonID int64, req PaymentRequest) (Payment, error) {
	if !CanUserPayCommission(actor) {
		return Payment{}, httpx.Forbidden("you cannot record commission payments")
	}
	req.Period = strings.TrimSpace(req.Period)
	if err := httpx.Validate(s.validate, req); err != nil {
		return Payment{}, err
	}
	if err := finance.CheckPositive("amount", req.Amount); err != nil {
		return Payment{}, err
	}
	sp, err := s.repo.Salesperson(ctx, salespersonID)
	if err != nil {
		return Payment{}, httpx.Wrap("commissions: record payment", err)
	}
	totals, err := s.repo.CompletedOrderTotals(ctx, salespersonID)
	if err != nil {
		return Payment{}, httpx.Wrap("commissions: record payment", err)
	}

	paidAt := s.now()
	if req.PaidAt != nil {
		paidAt = *req.PaidAt
	}
	payment := Payment{
		SalespersonID: salespersonID,
		TotalAmount:   finance.Round2(req.Amount),
		Period:        req.Period,
		Notes:         req.Notes,
		PaidAt:        paidAt,
		RecordedBy:    actor.UserID,
		CreatedAt:     s.now(),
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		prior, err := tx.PaymentAmounts(ctx, salespersonID)
		if err != nil {
			return err
		}
		pending, err := finance.PendingCommission(totals, sp.CommissionRate, prior)
		if err != nil {
			return err
		}
		if payment.TotalAmount.GreaterThan(pending) {
			return httpx.InvalidField("amount", "exceeds pending commission of "+finance.FormatUSD(pending))
		}
		payment.ID, err = tx.InsertPayment(ctx, payment)
		return err
	})
	if err != nil {
		return Payment{}, httpx.Wrap("commissions: record payment", err)
	}

	s.record(ctx, activity.New(entityType, payment.ID, activity.ActionPayment, actor.UserID, nil, payment))
	s.notify(ctx, notifications.New{
		UserID:  salespersonID,
		Title:   "Commission paid",
		Message: fmt.Sprintf("%s commission for %s was paid.", finance.FormatUSD(payment.TotalAmount), payment.Period),
		Type:    notifications.TypeSuccess,
		Link:    fmt.Sprintf("/commissions/%d", salespersonID),
	})
	return payment, nil
}

func (s *Service) record(ctx context.Context, e activity.Entry) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Record(ctx, e); err != nil {
		s.logger.Warn("commissions: activity log failed", slog.Int64("payment_id", e.EntityID), slog.Any("error", err))
	}
}

func (s *Service) notify(ctx context.Context, n notifications.New) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("commissions: notification failed", slog.Int64("user_id", n.UserID), slog.Any("error", err))
	}
}
