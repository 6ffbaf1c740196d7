package quotes

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

const entityType = "quote"

// Service provides quote business logic. Every change to lines or pricing inputs recomputes the
// stored totals in the same transaction.
type Service struct {
	repo     Repository
	activity activity.Recorder
	notifier notifications.Notifier
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService constructs a quote service.
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

type totalsSnapshot struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Total    decimal.Decimal `json:"total"`
}

// CreateQuote creates a draft quote with optional initial lines.
func (s *Service) CreateQuote(ctx context.Context, actor rbac.Principal, req CreateQuoteRequest) (Quote, error) {
	if !actor.Can(rbac.Quotes, rbac.ActionWrite) {
		return Quote{}, httpx.Forbidden("you cannot create quotes")
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := httpx.Validate(s.validate, req); err != nil {
		return Quote{}, err
	}
	if err := finance.CheckRate("tax_rate", req.TaxRate); err != nil {
		return Quote{}, err
	}

	salesperson := actor.UserID
	if req.SalespersonID != nil && *req.SalespersonID != actor.UserID {
		if !actor.Can(rbac.Quotes, rbac.ActionViewAll) {
			return Quote{}, httpx.Forbidden("you cannot assign quotes to another salesperson")
		}
		salesperson = *req.SalespersonID
	}
	items, err := buildItems(req.Items)
	if err != nil {
		return Quote{}, err
	}
	totals, err := finance.ComputeTotals(items, req.Discount, req.TaxRate)
	if err != nil {
		return Quote{}, err
	}
	if err := finance.CheckDiscount(totals.Subtotal, totals.Discount); err != nil {
		return Quote{}, err
	}

	now := s.now()
	code, err := s.repo.NextQuoteCode(ctx, now)
	if err != nil {
		return Quote{}, httpx.Wrap("quotes: create", err)
	}
	quote := Quote{
		QuoteCode:     code,
		OrgID:         req.OrgID,
		SalespersonID: salesperson,
		Title:         req.Title,
		Status:        workflow.QuoteDraft,
		ValidUntil:    req.ValidUntil,
		Notes:         req.Notes,
		CreatedBy:     actor.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
		Items:         items,
	}
	quote.applyTotals(totals)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.Insert(ctx, quote)
		if err != nil {
			return err
		}
		quote.ID = id
		for i := range quote.Items {
			quote.Items[i].QuoteID = id
			itemID, err := tx.InsertItem(ctx, quote.Items[i])
			if err != nil {
				return err
			}
			quote.Items[i].ID = itemID
		}
		return nil
	})
	if err != nil {
		return Quote{}, httpx.Wrap("quotes: create", err)
	}

	s.record(ctx, activity.New(entityType, quote.ID, activity.ActionCreated, actor.UserID, nil, statusSnapshot{Status: quote.Status}))
	return quote, nil
}

// UpdateQuote patches header fields of a draft quote and recomputes totals.
func (s *Service) UpdateQuote(ctx context.Context, actor rbac.Principal, id int64, req UpdateQuoteRequest) (Quote, error) {
	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		if trimmed == "" {
			return Quote{}, httpx.InvalidField("title", "is required")
		}
		req.Title = &trimmed
	}
	if err := httpx.Validate(s.validate, req); err != nil {
		return Quote{}, err
	}
	quote, err := s.editable(ctx, actor, id)
	if err != nil {
		return Quote{}, err
	}

	if req.Title != nil {
		quote.Title = *req.Title
	}
	if req.Discount != nil {
		quote.Discount = *req.Discount
	}
	if req.TaxRate != nil {
		if err := finance.CheckRate("tax_rate", *req.TaxRate); err != nil {
			return Quote{}, err
		}
		quote.TaxRate = *req.TaxRate
	}
	if req.ValidUntil != nil {
		quote.ValidUntil = req.ValidUntil
	}
	if req.Notes != nil {
		quote.Notes = *req.Notes
	}
	totals, err := finance.ComputeTotals(quote.Items, quote.Discount, quote.TaxRate)
	if err != nil {
		return Quote{}, err
	}
	// Removing lines may later leave the discount above the subtotal; the taxable base floors at zero then.
	if req.Discount != nil {
		if err := finance.CheckDiscount(totals.Subtotal, totals.Discount); err != nil {
			return Quote{}, err
		}
	}
	quote.applyTotals(totals)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateHeader(ctx, quote); err != nil {
			return err
		}
		return tx.SaveTotals(ctx, id, totals)
	})
	if err != nil {
		return Quote{}, httpx.Wrap("quotes: update", err)
	}
	s.record(ctx, activity.New(entityType, id, activity.ActionUpdated, actor.UserID, nil,
		totalsSnapshot{Subtotal: totals.Subtotal, Total: totals.Total}))
	return s.load(ctx, id)
}

// AddLineItem appends a line to a draft quote.
func (s *Service) AddLineItem(ctx context.Context, actor rbac.Principal, quoteID int64, in LineItemInput) (Quote, error) {
	in.ItemName = strings.TrimSpace(in.ItemName)
	if err := httpx.Validate(s.validate, in); err != nil {
		return Quote{}, err
	}
	quote, err := s.editable(ctx, actor, quoteID)
	if err != nil {
		return Quote{}, err
	}
	built, err := buildItems([]LineItemInput{in})
	if err != nil {
		return Quote{}, err
	}
	item := built[0]
	item.QuoteID = quoteID

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.InsertItem(ctx, item); err != nil {
			return err
		}
		return s.recalculate(ctx, tx, quote)
	})
	if err != nil {
		return Quote{}, httpx.Wrap("quotes: add item", err)
	}
	s.record(ctx, activity.New(entityType, quoteID, activity.ActionItemAdded, actor.UserID, nil,
		map[string]string{"item_name": item.ItemName}))
	return s.load(ctx, quoteID)
}

// UpdateLineItem edits one line of a draft quote.
func (s *Service) UpdateLineItem(ctx context.Context, actor rbac.Principal, quoteID, itemID int64, patch LineItemPatch) (Quote, error) {
	if patch.ItemName != nil {
		trimmed := strings.TrimSpace(*patch.ItemName)
		if trimmed == "" {
			return Quote{}, httpx.InvalidField("item_name", "is required")
		}
		patch.ItemName = &trimmed
	}
	if err := httpx.Validate(s.validate, patch); err != nil {
		return Quote{}, err
	}
	quote, err := s.editable(ctx, actor, quoteID)
	if err != nil {
		return Quote{}, err
	}
	var item *LineItem
	for i := range quote.Items {
		if quote.Items[i].ID == itemID {
			item = &quote.Items[i]
			break
		}
	}
	if item == nil {
		return Quote{}, httpx.NotFound("quote line item", itemID)
	}
	if patch.ItemName != nil {
		item.ItemName = *patch.ItemName
	}
	if patch.Description != nil {
		item.Description = *patch.Description
	}
	if patch.Quantity != nil {
		item.Quantity = *patch.Quantity
	}
	if patch.UnitPrice != nil {
		item.UnitPrice = *patch.UnitPrice
	}
	if item.LineTotal, err = finance.LineTotal(item.Quantity, item.UnitPrice); err != nil {
		return Quote{}, err
	}
	updated := *item

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateItem(ctx, updated); err != nil {
			return err
		}
		return s.recalculate(ctx, tx, quote)
	})
	if err != nil {
		return Quote{}, httpx.Wrap("quotes: update item", err)
	}
	s.record(ctx, activity.New(entityType, quoteID, activity.ActionItemUpdated, actor.UserID, nil,
		map[string]int64{"item_id": itemID}))
	return s.load(ctx, quoteID)
}

// RemoveLineItem deletes one line of a draft quote.
func (s *Service) RemoveLineItem(ctx context.Context, actor rbac.Principal, quoteID, itemID int64) (Quote, error) {
	quote, err := s.editable(ctx, actor, quoteID)
	if err != nil {
		return Quote{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeleteItem(ctx, quoteID, itemID); err != nil {
			return err
		}
		return s.recalculate(ctx, tx, quote)
	})
	if err != nil {
		return Quote{}, httpx.Wrap("quotes: remove item", err)
	}
	s.record(ctx, activity.New(entityType, quoteID, activity.ActionItemRemoved, actor.UserID,
		map[string]int64{"item_id": itemID}, nil))
	return s.load(ctx, quoteID)
}

// recalculate re-reads the lines inside tx so totals always match what is stored.
func (s *Service) recalculate(ctx context.Context, tx TxRepository, quote Quote) error {
	items, err := tx.ListItems(ctx, quote.ID)
	if err != nil {
		return err
	}
	totals, err := finance.ComputeTotals(items, quote.Discount, quote.TaxRate)
	if err != nil {
		return err
	}
	return tx.SaveTotals(ctx, quote.ID, totals)
}

// UpdateQuoteStatus moves a quote along its workflow. Moving to the current status is a no-op.
func (s *Service) UpdateQuoteStatus(ctx context.Context, actor rbac.Principal, id int64, newStatus Status) (Quote, error) {
	quote, err := s.load(ctx, id)
	if err != nil {
		return Quote{}, err
	}
	if !CanUserModifyQuote(actor, quote) {
		return Quote{}, httpx.Forbidden("you cannot modify this quote")
	}
	if quote.Status == newStatus {
		return quote, nil
	}
	if err := workflow.Quotes.Validate(quote.Status, newStatus); err != nil {
		return Quote{}, err
	}
	if err := s.transition(ctx, actor.UserID, &quote, newStatus); err != nil {
		return Quote{}, err
	}
	if quote.SalespersonID != actor.UserID {
		s.notify(ctx, notifications.New{
			UserID:  quote.SalespersonID,
			Title:   "Quote status updated",
			Message: fmt.Sprintf("%s (%s) is now %s.", quote.QuoteCode, finance.FormatUSD(quote.Total), newStatus),
			Type:    notifications.TypeInfo,
			Link:    quoteLink(id),
		})
	}
	return quote, nil
}

func (s *Service) transition(ctx context.Context, actorID int64, quote *Quote, to Status) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, quote.ID, to)
	})
	if err != nil {
		return httpx.Wrap("quotes: update status", err)
	}
	previous := quote.Status
	quote.Status = to
	quote.UpdatedAt = s.now()
	s.record(ctx, activity.New(entityType, quote.ID, activity.ActionStatusChanged, actorID,
		statusSnapshot{Status: previous}, statusSnapshot{Status: to}))
	return nil
}

// DeleteQuote hard-deletes a draft quote. Any other status is rejected as a validation error.
func (s *Service) DeleteQuote(ctx context.Context, actor rbac.Principal, id int64) error {
	quote, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !CanUserModifyQuote(actor, quote) || !actor.Can(rbac.Quotes, rbac.ActionDelete) {
		return httpx.Forbidden("you cannot delete this quote")
	}
	if !quote.CanDelete() {
		return httpx.Invalid("only draft quotes can be deleted; %s is %s", quote.QuoteCode, quote.Status)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return httpx.Wrap("quotes: delete", err)
	}
	s.record(ctx, activity.New(entityType, id, activity.ActionDeleted, actor.UserID, statusSnapshot{Status: quote.Status}, nil))
	return nil
}

// GetQuote returns a quote the actor may view.
func (s *Service) GetQuote(ctx context.Context, actor rbac.Principal, id int64) (Quote, error) {
	quote, err := s.load(ctx, id)
	if err != nil {
		return Quote{}, err
	}
	if !CanUserViewQuote(actor, quote) {
		return Quote{}, httpx.Forbidden("you cannot view this quote")
	}
	return quote, nil
}

// ListQuotes lists quotes, scoped to the actor's own unless the role has view-all rights.
func (s *Service) ListQuotes(ctx context.Context, actor rbac.Principal, filter ListFilter) (shared.Page[Quote], error) {
	if !actor.Can(rbac.Quotes, rbac.ActionView) {
		return shared.Page[Quote]{}, httpx.Forbidden("you cannot view quotes")
	}
	if !actor.Can(rbac.Quotes, rbac.ActionViewAll) {
		filter.SalespersonID = actor.UserID
	}
	if filter.Status != "" && !workflow.Quotes.IsKnown(filter.Status) {
		return shared.Page[Quote]{}, httpx.InvalidField("status", "unknown quote status")
	}
	if filter.Page.PerPage == 0 {
		filter.Page = shared.PageRequest{Page: 1, PerPage: 20}
	}
	out, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return shared.Page[Quote]{}, httpx.Wrap("quotes: list", err)
	}
	return shared.NewPage(out, filter.Page, total), nil
}

// ExpireStale moves every sent quote whose validity ended before now to expired. It returns the
// number of quotes expired; a failure on one quote is logged and the sweep continues.
func (s *Service) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.repo.ListExpirable(ctx, now)
	if err != nil {
		return 0, httpx.Wrap("quotes: expire", err)
	}
	expired := 0
	for i := range stale {
		quote := stale[i]
		if err := workflow.Quotes.Validate(quote.Status, workflow.QuoteExpired); err != nil {
			continue
		}
		if err := s.transition(ctx, 0, &quote, workflow.QuoteExpired); err != nil {
			s.logger.Warn("quotes: expire failed", slog.Int64("quote_id", quote.ID), slog.Any("error", err))
			continue
		}
		expired++
		s.notify(ctx, notifications.New{
			UserID:  quote.SalespersonID,
			Title:   "Quote expired",
			Message: fmt.Sprintf("%s passed its validity date and was marked expired.", quote.QuoteCode),
			Type:    notifications.TypeWarning,
			Link:    quoteLink(quote.ID),
		})
	}
	return expired, nil
}

func (s *Service) editable(ctx context.Context, actor rbac.Principal, id int64) (Quote, error) {
	quote, err := s.load(ctx, id)
	if err != nil {
		return Quote{}, err
	}
	if !CanUserModifyQuote(actor, quote) {
		return Quote{}, httpx.Forbidden("you cannot modify this quote")
	}
	if !quote.CanEdit() {
		return Quote{}, httpx.Invalid("quote %s is %s; only draft quotes can be edited", quote.QuoteCode, quote.Status)
	}
	return quote, nil
}

func (s *Service) load(ctx context.Context, id int64) (Quote, error) {
	quote, err := s.repo.Get(ctx, id)
	if err != nil {
		return Quote{}, httpx.Wrap("quotes: get", err)
	}
	return quote, nil
}

func (s *Service) record(ctx context.Context, e activity.Entry) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Record(ctx, e); err != nil {
		s.logger.Warn("quotes: activity log failed", slog.Int64("quote_id", e.EntityID), slog.String("action", e.Action), slog.Any("error", err))
	}
}

func (s *Service) notify(ctx context.Context, n notifications.New) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("quotes: notification failed", slog.Int64("user_id", n.UserID), slog.Any("error", err))
	}
}

func buildItems(in []LineItemInput) ([]LineItem, error) {
	items := make([]LineItem, 0, len(in))
	for _, li := range in {
		total, err := finance.LineTotal(li.Quantity, li.UnitPrice)
		if err != nil {
			return nil, err
		}
		items = append(items, LineItem{
			ItemName:    strings.TrimSpace(li.ItemName),
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			LineTotal:   total,
		})
	}
	return items, nil
}

func quoteLink(id int64) string {
	return fmt.Sprintf("/quotes/%d", id)
}
