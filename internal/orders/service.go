package orders

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/richhabits/richhabits-os/internal/activity"
	"github.com/richhabits/richhabits-os/internal/finance"
	"github.com/richhabits/richhabits-os/internal/notifications"
	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/rbac"
	"github.com/richhabits/richhabits-os/internal/shared"
	"github.com/richhabits/richhabits-os/internal/workflow"
)

const entityType = "order"

// Service provides business logic for orders.
type Service struct {
	repo     Repository
	activity activity.Recorder
	notifier notifications.Notifier
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService constructs an order service.
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

// CreateOrder creates an order in status new. The salesperson defaults to the actor; only roles with
// view-all rights may book an order for someone else.
func (s *Service) CreateOrder(ctx context.Context, actor rbac.Principal, req CreateOrderRequest) (Order, error) {
	if !actor.Can(rbac.Orders, rbac.ActionWrite) {
		return Order{}, httpx.Forbidden("you cannot create orders")
	}
	req.OrderName = strings.TrimSpace(req.OrderName)
	if err := httpx.Validate(s.validate, req); err != nil {
		return Order{}, err
	}

	salesperson := actor.UserID
	if req.SalespersonID != nil && *req.SalespersonID != actor.UserID {
		if !actor.Can(rbac.Orders, rbac.ActionViewAll) {
			return Order{}, httpx.Forbidden("you cannot assign orders to another salesperson")
		}
		salesperson = *req.SalespersonID
	}
	priority := req.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	items, err := buildItems(req.Items)
	if err != nil {
		return Order{}, err
	}
	total, err := finance.Subtotal(items)
	if err != nil {
		return Order{}, err
	}

	now := s.now()
	code, err := s.repo.NextOrderCode(ctx, now)
	if err != nil {
		return Order{}, httpx.Wrap("orders: create", err)
	}

	order := Order{
		OrderCode:     code,
		OrgID:         req.OrgID,
		SalespersonID: salesperson,
		OrderName:     req.OrderName,
		Status:        workflow.OrderNew,
		Priority:      priority,
		TotalAmount:   total,
		Notes:         req.Notes,
		CreatedBy:     actor.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
		Items:         items,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.Insert(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id
		return tx.ReplaceItems(ctx, id, items)
	})
	if err != nil {
		return Order{}, httpx.Wrap("orders: create", err)
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}

	s.record(ctx, activity.New(entityType, order.ID, activity.ActionCreated, actor.UserID, nil, statusSnapshot{Status: order.Status}))
	if salesperson != actor.UserID {
		s.notify(ctx, notifications.New{
			UserID:  salesperson,
			Title:   "New order assigned",
			Message: fmt.Sprintf("%s (%s) was booked for you by %s.", order.OrderName, order.OrderCode, actorName(actor)),
			Type:    notifications.TypeOrder,
			Link:    orderLink(order.ID),
		})
	}
	return order, nil
}

// UpdateOrder patches editable fields. Status is changed only through UpdateOrderStatus.
func (s *Service) UpdateOrder(ctx context.Context, actor rbac.Principal, id int64, req UpdateOrderRequest) (Order, error) {
	if req.OrderName != nil {
		trimmed := strings.TrimSpace(*req.OrderName)
		if trimmed == "" {
			return Order{}, httpx.InvalidField("order_name", "is required")
		}
		req.OrderName = &trimmed
	}
	if err := httpx.Validate(s.validate, req); err != nil {
		return Order{}, err
	}
	existing, err := s.load(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !CanUserModifyOrder(actor, existing) {
		return Order{}, httpx.Forbidden("you cannot modify this order")
	}
	if !existing.CanEdit() {
		return Order{}, httpx.Invalid("order %s is %s and can no longer be edited", existing.OrderCode, existing.Status)
	}

	updates := make(map[string]any)
	if req.OrderName != nil {
		updates["order_name"] = *req.OrderName
	}
	if req.Priority != nil {
		updates["priority"] = *req.Priority
	}
	if req.DesignApproved != nil {
		updates["design_approved"] = *req.DesignApproved
	}
	if req.SizesValidated != nil {
		updates["sizes_validated"] = *req.SizesValidated
	}
	if req.DepositReceived != nil {
		updates["deposit_received"] = *req.DepositReceived
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}

	var items []LineItem
	if req.Items != nil {
		items, err = buildItems(*req.Items)
		if err != nil {
			return Order{}, err
		}
		total, err := finance.Subtotal(items)
		if err != nil {
			return Order{}, err
		}
		updates["total_amount"] = total
	}

	if len(updates) == 0 {
		return existing, nil
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.Update(ctx, id, updates); err != nil {
			return err
		}
		if req.Items != nil {
			return tx.ReplaceItems(ctx, id, items)
		}
		return nil
	})
	if err != nil {
		return Order{}, httpx.Wrap("orders: update", err)
	}

	s.record(ctx, activity.New(entityType, id, activity.ActionUpdated, actor.UserID, nil, fieldNames(updates)))
	return s.load(ctx, id)
}

// UpdateOrderStatus moves an order along the workflow. Moving to the current status is a no-op.
func (s *Service) UpdateOrderStatus(ctx context.Context, actor rbac.Principal, id int64, newStatus Status) (Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !CanUserModifyOrder(actor, order) {
		return Order{}, httpx.Forbidden("you cannot modify this order")
	}
	if order.Status == newStatus {
		return order, nil
	}
	if err := workflow.Orders.Validate(order.Status, newStatus); err != nil {
		return Order{}, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, id, newStatus)
	})
	if err != nil {
		return Order{}, httpx.Wrap("orders: update status", err)
	}

	previous := order.Status
	order.Status = newStatus
	order.UpdatedAt = s.now()

	s.record(ctx, activity.New(entityType, id, activity.ActionStatusChanged, actor.UserID,
		statusSnapshot{Status: previous}, statusSnapshot{Status: newStatus}))
	if order.SalespersonID != actor.UserID {
		s.notify(ctx, notifications.New{
			UserID:  order.SalespersonID,
			Title:   "Order status updated",
			Message: fmt.Sprintf("%s moved from %s to %s.", order.OrderCode, previous, newStatus),
			Type:    notifications.TypeOrder,
			Link:    orderLink(id),
		})
	}
	return order, nil
}

// DeleteOrder soft-archives an order. Archived orders disappear from listings and lookups.
func (s *Service) DeleteOrder(ctx context.Context, actor rbac.Principal, id int64) error {
	order, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !CanUserModifyOrder(actor, order) || !actor.Can(rbac.Orders, rbac.ActionDelete) {
		return httpx.Forbidden("you cannot delete this order")
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Archive(ctx, id, s.now())
	})
	if err != nil {
		return httpx.Wrap("orders: delete", err)
	}
	s.record(ctx, activity.New(entityType, id, activity.ActionArchived, actor.UserID, statusSnapshot{Status: order.Status}, nil))
	return nil
}

// GetOrderByID returns an order the actor may view.
func (s *Service) GetOrderByID(ctx context.Context, actor rbac.Principal, id int64) (Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !CanUserViewOrder(actor, order) {
		return Order{}, httpx.Forbidden("you cannot view this order")
	}
	return order, nil
}

// ListOrders lists orders. Without view-all rights the listing is limited to the actor's own orders.
func (s *Service) ListOrders(ctx context.Context, actor rbac.Principal, filter ListFilter) (shared.Page[Order], error) {
	if !actor.Can(rbac.Orders, rbac.ActionView) {
		return shared.Page[Order]{}, httpx.Forbidden("you cannot view orders")
	}
	if !actor.Can(rbac.Orders, rbac.ActionViewAll) {
		filter.SalespersonID = actor.UserID
	}
	if filter.Status != "" && !workflow.Orders.IsKnown(filter.Status) {
		return shared.Page[Order]{}, httpx.InvalidField("status", "unknown order status")
	}
	if filter.Page.PerPage == 0 {
		filter.Page = shared.PageRequest{Page: 1, PerPage: 20}
	}
	out, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return shared.Page[Order]{}, httpx.Wrap("orders: list", err)
	}
	return shared.NewPage(out, filter.Page, total), nil
}

// AllowedTransitions lists the statuses the order can move to next.
func (s *Service) AllowedTransitions(ctx context.Context, actor rbac.Principal, id int64) ([]Status, error) {
	order, err := s.GetOrderByID(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !CanUserModifyOrder(actor, order) {
		return []Status{}, nil
	}
	return workflow.Orders.Next(order.Status), nil
}

func (s *Service) load(ctx context.Context, id int64) (Order, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return Order{}, httpx.Wrap("orders: get", err)
	}
	if order.IsArchived() {
		return Order{}, httpx.NotFound("order", id)
	}
	return order, nil
}

// record and notify are best-effort: the primary write already succeeded.
func (s *Service) record(ctx context.Context, e activity.Entry) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Record(ctx, e); err != nil {
		s.logger.Warn("orders: activity log failed", slog.Int64("order_id", e.EntityID), slog.String("action", e.Action), slog.Any("error", err))
	}
}

func (s *Service) notify(ctx context.Context, n notifications.New) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("orders: notification failed", slog.Int64("user_id", n.UserID), slog.Any("error", err))
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
			ItemName:  strings.TrimSpace(li.ItemName),
			Size:      li.Size,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
			LineTotal: total,
		})
	}
	return items, nil
}

func fieldNames(updates map[string]any) map[string][]string {
	names := make([]string, 0, len(updates))
	for k := range updates {
		names = append(names, k)
	}
	sort.Strings(names)
	return map[string][]string{"fields": names}
}

func orderLink(id int64) string {
	return fmt.Sprintf("/orders/%d", id)
}

func actorName(p rbac.Principal) string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("user %d", p.UserID)
}
