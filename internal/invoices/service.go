package invoices

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/richhabits/richhabits-os/internal/activity"
	"github.com/richhabits/richhabits-os/internal/finance"
	"github.com/richhabits/richhabits-os/internal/notifications"
	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/rbac"
	"github.com/richhabits/richhabits-os/internal/shared"
	"github.com/richhabits/richhabits-os/internal/workflow"
)

const entityType = "invoice"

// Service handles invoicing and payment recording.
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

type statusSnapshot struct {
	Status Status `json:"status"`
}

type paymentSnapshot struct {
	Amount     decimal.Decimal `json:"amount"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
	Status     Status          `json:"status"`
}

// CreateInvoice creates a draft invoice. Billing an order without an explicit subtotal bills the
// order's total and inherits its salesperson.
func (s *Service) CreateInvoice(ctx context.Context, actor rbac.Principal, req CreateInvoiceRequest) (Invoice, error) {
	if !actor.Can(rbac.Invoices, rbac.ActionWrite) {
		return Invoice{}, httpx.Forbidden("you cannot create invoices")
	}
	req.Notes = strings.TrimSpace(req.Notes)
	if err := httpx.Validate(s.validate, req); err != nil {
		return Invoice{}, err
	}
	if err := finance.CheckRate("tax_rate", req.TaxRate); err != nil {
		return Invoice{}, err
	}

	subtotal := req.Subtotal
	orgID := req.OrgID
	salesperson := actor.UserID
	if req.OrderID != nil {
		summary, err := s.repo.OrderSummary(ctx, *req.OrderID)
		if err != nil {
			return Invoice{}, httpx.Wrap("invoices: create", err)
		}
		salesperson = summary.SalespersonID
		if subtotal.IsZero() {
			subtotal = summary.Total
		}
		if orgID == nil {
			orgID = summary.OrgID
		}
	}
	if req.SalespersonID != nil {
		salesperson = *req.SalespersonID
	}
	if subtotal.IsNegative() {
		return Invoice{}, httpx.InvalidField("subtotal", "must not be negative")
	}
	if err := finance.CheckMoney("subtotal", subtotal); err != nil {
		return Invoice{}, err
	}
	if err := finance.CheckDiscount(subtotal, req.Discount); err != nil {
		return Invoice{}, err
	}
	tax, err := finance.Tax(subtotal, req.Discount, req.TaxRate)
	if err != nil {
		return Invoice{}, err
	}

	now := s.now()
	number, err := s.repo.NextInvoiceNumber(ctx, now)
	if err != nil {
		return Invoice{}, httpx.Wrap("invoices: create", err)
	}
	inv := Invoice{
		InvoiceNumber: number,
		OrderID:       req.OrderID,
		OrgID:         orgID,
		SalespersonID: salesperson,
		Status:        workflow.InvoiceDraft,
		Subtotal:      subtotal,
		Discount:      req.Discount,
		TaxRate:       req.TaxRate,
		TaxAmount:     tax,
		TotalAmount:   finance.Total(subtotal, req.Discount, tax),
		AmountPaid:    decimal.Zero,
		DueDate:       req.DueDate,
		Notes:         req.Notes,
		CreatedBy:     actor.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.Insert(ctx, inv)
		inv.ID = id
		return err
	})
	if err != nil {
		return Invoice{}, httpx.Wrap("invoices: create", err)
	}
	s.record(ctx, activity.New(entityType, inv.ID, activity.ActionCreated, actor.UserID, nil, statusSnapshot{Status: inv.Status}))
	return inv, nil
}

// UpdateInvoiceStatus applies a manual transition. Paid and partially paid are reached only by
// recording payments, and an invoice with money received cannot be cancelled.
func (s *Service) UpdateInvoiceStatus(ctx context.Context, actor rbac.Principal, id int64, newStatus Status) (Invoice, error) {
	inv, err := s.load(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if !CanUserModifyInvoice(actor, inv) {
		return Invoice{}, httpx.Forbidden("you cannot modify this invoice")
	}
	if inv.Status == newStatus {
		return inv, nil
	}
	if err := workflow.Invoices.Validate(inv.Status, newStatus); err != nil {
		return Invoice{}, err
	}
	switch newStatus {
	case workflow.InvoicePaid, workflow.InvoicePartiallyPaid:
		return Invoice{}, httpx.InvalidField("status", "is derived from recorded payments")
	case workflow.InvoiceCancelled:
		if inv.AmountPaid.IsPositive() {
			return Invoice{}, httpx.Invalid("invoice %s has payments and cannot be cancelled", inv.InvoiceNumber)
		}
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, id, newStatus)
	})
	if err != nil {
		return Invoice{}, httpx.Wrap("invoices: update status", err)
	}
	previous := inv.Status
	inv.Status = newStatus
	inv.UpdatedAt = s.now()
	s.record(ctx, activity.New(entityType, id, activity.ActionStatusChanged, actor.UserID,
		statusSnapshot{Status: previous}, statusSnapshot{Status: newStatus}))
	if newStatus == workflow.InvoiceSent && inv.SalespersonID != actor.UserID {
		s.notify(ctx, notifications.New{
			UserID:  inv.SalespersonID,
			Title:   "Invoice sent",
			Message: fmt.Sprintf("%s for %s was sent to the customer.", inv.InvoiceNumber, finance.FormatUSD(inv.TotalAmount)),
			Type:    notifications.TypeInfo,
			Link:    invoiceLink(id),
		})
	}
	return inv, nil
}

// RecordPayment stores a payment and re-derives amount_paid and status from the stored payments.
func (s *Service) RecordPayment(ctx context.Context, actor rbac.Principal, invoiceID int64, req PaymentRequest) (Invoice, Payment, error) {
	req.Method = strings.TrimSpace(req.Method)
	if err := httpx.Validate(s.validate, req); err != nil {
		return Invoice{}, Payment{}, err
	}
	if err := finance.CheckPositive("amount", req.Amount); err != nil {
		return Invoice{}, Payment{}, err
	}
	inv, err := s.load(ctx, invoiceID)
	if err != nil {
		return Invoice{}, Payment{}, err
	}
	if !CanUserModifyInvoice(actor, inv) {
		return Invoice{}, Payment{}, httpx.Forbidden("you cannot record payments")
	}
	if !inv.AcceptsPayments() {
		return Invoice{}, Payment{}, httpx.Invalid("invoice %s is %s and does not accept payments", inv.InvoiceNumber, inv.Status)
	}

	paidAt := s.now()
	if req.PaidAt != nil {
		paidAt = *req.PaidAt
	}
	payment := Payment{
		InvoiceID:  invoiceID,
		Amount:     finance.Round2(req.Amount),
		Method:     req.Method,
		Reference:  req.Reference,
		PaidAt:     paidAt,
		RecordedBy: actor.UserID,
		CreatedAt:  s.now(),
	}
	previous := inv.Status
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		prior, err := tx.SumPayments(ctx, invoiceID)
		if err != nil {
			return err
		}
		outstanding, err := finance.Outstanding(inv.TotalAmount, prior)
		if err != nil {
			return err
		}
		if payment.Amount.GreaterThan(outstanding) {
			return httpx.InvalidField("amount", "exceeds outstanding balance of "+finance.FormatUSD(outstanding))
		}
		if payment.ID, err = tx.InsertPayment(ctx, payment); err != nil {
			return err
		}
		paid := prior.Add(payment.Amount)
		status := statusForPaid(inv.TotalAmount, paid)
		if err := workflow.Invoices.Validate(inv.Status, status); err != nil {
			return err
		}
		inv.AmountPaid = paid
		inv.Status = status
		return tx.SetPaid(ctx, invoiceID, paid, status)
	})
	if err != nil {
		return Invoice{}, Payment{}, httpx.Wrap("invoices: record payment", err)
	}
	inv.UpdatedAt = s.now()

	s.record(ctx, activity.New(entityType, invoiceID, activity.ActionPayment, actor.UserID,
		statusSnapshot{Status: previous},
		paymentSnapshot{Amount: payment.Amount, AmountPaid: inv.AmountPaid, Status: inv.Status}))
	if inv.SalespersonID != actor.UserID {
		s.notify(ctx, notifications.New{
			UserID:  inv.SalespersonID,
			Title:   "Payment received",
			Message: fmt.Sprintf("%s received %s; %s outstanding.", inv.InvoiceNumber, finance.FormatUSD(payment.Amount), finance.FormatUSD(inv.Outstanding())),
			Type:    notifications.TypeSuccess,
			Link:    invoiceLink(invoiceID),
		})
	}
	return inv, payment, nil
}

// GetInvoice returns an invoice the actor may view.
func (s *Service) GetInvoice(ctx context.Context, actor rbac.Principal, id int64) (Invoice, error) {
	inv, err := s.load(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if !CanUserViewInvoice(actor, inv) {
		return Invoice{}, httpx.Forbidden("you cannot view this invoice")
	}
	return inv, nil
}

// ListPayments returns the payments of an invoice the actor may view.
func (s *Service) ListPayments(ctx context.Context, actor rbac.Principal, id int64) ([]Payment, error) {
	if _, err := s.GetInvoice(ctx, actor, id); err != nil {
		return nil, err
	}
	out, err := s.repo.ListPayments(ctx, id)
	if err != nil {
		return nil, httpx.Wrap("invoices: list payments", err)
	}
	return out, nil
}

// ListInvoices lists invoices, scoped to the actor's own unless the role has view-all rights.
func (s *Service) ListInvoices(ctx context.Context, actor rbac.Principal, filter ListFilter) (shared.Page[Invoice], error) {
	if !actor.Can(rbac.Invoices, rbac.ActionView) {
		return shared.Page[Invoice]{}, httpx.Forbidden("you cannot view invoices")
	}
	if !actor.Can(rbac.Invoices, rbac.ActionViewAll) {
		filter.SalespersonID = actor.UserID
	}
	if filter.Status != "" && !workflow.Invoices.IsKnown(filter.Status) {
		return shared.Page[Invoice]{}, httpx.InvalidField("status", "unknown invoice status")
	}
	if filter.Page.PerPage == 0 {
		filter.Page = shared.PageRequest{Page: 1, PerPage: 20}
	}
	out, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return shared.Page[Invoice]{}, httpx.Wrap("invoices: list", err)
	}
	return shared.NewPage(out, filter.Page, total), nil
}

// Aging groups the outstanding balance of open invoices by days past due as of asOf.
func (s *Service) Aging(ctx context.Context, actor rbac.Principal, asOf time.Time) (Aging, error) {
	if !actor.Can(rbac.Invoices, rbac.ActionView) {
		return Aging{}, httpx.Forbidden("you cannot view invoices")
	}
	var scope int64
	if !actor.Can(rbac.Invoices, rbac.ActionViewAll) {
		scope = actor.UserID
	}
	open, err := s.repo.ListOpen(ctx, scope)
	if err != nil {
		return Aging{}, httpx.Wrap("invoices: aging", err)
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	return bucketAging(open, asOf), nil
}

func bucketAging(open []Invoice, asOf time.Time) Aging {
	var a Aging
	for _, inv := range open {
		due := inv.Outstanding()
		days := 0
		if inv.DueDate != nil {
			days = int(asOf.Sub(*inv.DueDate).Hours() / 24)
		}
		switch {
		case days <= 0:
			a.Current = a.Current.Add(due)
		case days <= 30:
			a.Days30 = a.Days30.Add(due)
		case days <= 60:
			a.Days60 = a.Days60.Add(due)
		case days <= 90:
			a.Days90 = a.Days90.Add(due)
		default:
			a.Days90Plus = a.Days90Plus.Add(due)
		}
	}
	return a
}

func (s *Service) load(ctx context.Context, id int64) (Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return Invoice{}, httpx.Wrap("invoices: get", err)
	}
	return inv, nil
}

func (s *Service) record(ctx context.Context, e activity.Entry) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Record(ctx, e); err != nil {
		s.logger.Warn("invoices: activity log failed", slog.Int64("invoice_id", e.EntityID), slog.String("action", e.Action), slog.Any("error", err))
	}
}

func (s *Service) notify(ctx context.Context, n notifications.New) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("invoices: notification failed", slog.Int64("user_id", n.UserID), slog.Any("error", err))
	}
}

func invoiceLink(id int64) string {
	return fmt.Sprintf("/invoices/%d", id)
}
