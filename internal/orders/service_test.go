package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/rbac"
	"github.com/richhabits/richhabits-os/internal/workflow"
)

var (
	admin       = rbac.Principal{UserID: 1, Name: "Ada", Role: rbac.RoleAdmin}
	ops         = rbac.Principal{UserID: 2, Name: "Olu", Role: rbac.RoleOps}
	sales       = rbac.Principal{UserID: 10, Name: "Sam", Role: rbac.RoleSales}
	other       = rbac.Principal{UserID: 11, Name: "Sky", Role: rbac.RoleSales}
	financeUser = rbac.Principal{UserID: 20, Name: "Fin", Role: rbac.RoleFinance}
	maker       = rbac.Principal{UserID: 30, Name: "Max", Role: rbac.RoleManufacturer}
)

type fixture struct {
	svc      *Service
	repo     *mockRepository
	activity *recordingActivity
	notifier *recordingNotifier
}

func newFixture() fixture {
	repo := newMockRepository()
	act := &recordingActivity{}
	notif := &recordingNotifier{}
	return fixture{
		svc:      NewService(repo, act, notif, discardLogger()),
		repo:     repo,
		activity: act,
		notifier: notif,
	}
}

func TestCreateOrderDefaults(t *testing.T) {
	f := newFixture()

	order, err := f.svc.CreateOrder(context.Background(), sales, CreateOrderRequest{
		OrderName: "  Varsity Hoodies  ",
		Items: []LineItemInput{
			{ItemName: "Hoodie", Size: "M", Quantity: 12, UnitPrice: decimal.RequireFromString("45.00")},
			{ItemName: "Hoodie", Size: "L", Quantity: 10, UnitPrice: decimal.RequireFromString("38.50")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Varsity Hoodies", order.OrderName)
	assert.Equal(t, workflow.OrderNew, order.Status)
	assert.Equal(t, PriorityNormal, order.Priority)
	assert.Equal(t, sales.UserID, order.SalespersonID)
	assert.Equal(t, "925.00", order.TotalAmount.StringFixed(2))
	assert.Regexp(t, `^ORD-\d{6}-0001$`, order.OrderCode)

	stored, err := f.repo.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)

	require.Len(t, f.activity.entries, 1)
	assert.Equal(t, "created", f.activity.entries[0].Action)
	assert.Empty(t, f.notifier.sent)
}

func TestCreateOrderRequiresName(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateOrder(context.Background(), sales, CreateOrderRequest{OrderName: "   "})
	require.Error(t, err)
	assert.ErrorIs(t, err, httpx.ErrValidation)

	var verr *httpx.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "order_name")
	assert.Empty(t, f.repo.orders)
}

func TestCreateOrderRejectsNegativeQuantity(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateOrder(context.Background(), sales, CreateOrderRequest{
		OrderName: "Tees",
		Items:     []LineItemInput{{ItemName: "Tee", Quantity: -1, UnitPrice: decimal.NewFromInt(5)}},
	})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateOrderForAnotherSalesperson(t *testing.T) {
	f := newFixture()
	target := sales.UserID

	_, err := f.svc.CreateOrder(context.Background(), other, CreateOrderRequest{OrderName: "Caps", SalespersonID: &target})
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	order, err := f.svc.CreateOrder(context.Background(), ops, CreateOrderRequest{OrderName: "Caps", SalespersonID: &target})
	require.NoError(t, err)
	assert.Equal(t, sales.UserID, order.SalespersonID)
	assert.Equal(t, ops.UserID, order.CreatedBy)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, sales.UserID, f.notifier.sent[0].UserID)
}

func TestCreateOrderForbiddenForFinance(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateOrder(context.Background(), financeUser, CreateOrderRequest{OrderName: "x"})
	assert.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestUpdateOrderStatusHappyPath(t *testing.T) {
	f := newFixture()
	seeded := f.repo.seed(Order{OrderCode: "ORD-1", SalespersonID: sales.UserID, Status: workflow.OrderNew})

	order, err := f.svc.UpdateOrderStatus(context.Background(), ops, seeded.ID, workflow.OrderWaitingSizes)
	require.NoError(t, err)
	assert.Equal(t, workflow.OrderWaitingSizes, order.Status)

	stored, _ := f.repo.Get(context.Background(), seeded.ID)
	assert.Equal(t, workflow.OrderWaitingSizes, stored.Status)

	require.Len(t, f.activity.entries, 1)
	e := f.activity.entries[0]
	assert.Equal(t, "status_changed", e.Action)
	assert.Equal(t, ops.UserID, e.UserID)
	assert.JSONEq(t, `{"status":"new"}`, string(e.PreviousState))
	assert.JSONEq(t, `{"status":"waiting_sizes"}`, string(e.NewState))

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, sales.UserID, f.notifier.sent[0].UserID)
}

func TestUpdateOrderStatusInvalidTransitionLeavesStoreUnchanged(t *testing.T) {
	f := newFixture()
	seeded := f.repo.seed(Order{OrderCode: "ORD-1", SalespersonID: sales.UserID, Status: workflow.OrderNew})

	_, err := f.svc.UpdateOrderStatus(context.Background(), sales, seeded.ID, workflow.OrderShipped)
	require.Error(t, err)
	assert.ErrorIs(t, err, httpx.ErrInvalidTransition)

	var terr *workflow.TransitionError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "new", terr.From)
	assert.Equal(t, "shipped", terr.To)

	stored, _ := f.repo.Get(context.Background(), seeded.ID)
	assert.Equal(t, workflow.OrderNew, stored.Status)
	assert.Zero(t, f.repo.writes)
	assert.Empty(t, f.activity.entries)
}

func TestUpdateOrderStatusSameStatusIsNoOp(t *testing.T) {
	f := newFixture()
	seeded := f.repo.seed(Order{SalespersonID: sales.UserID, Status: workflow.OrderProduction})

	order, err := f.svc.UpdateOrderStatus(context.Background(), sales, seeded.ID, workflow.OrderProduction)
	require.NoError(t, err)
	assert.Equal(t, workflow.OrderProduction, order.Status)
	assert.Zero(t, f.repo.writes)
	assert.Empty(t, f.activity.entries)
}

func TestUpdateOrderStatusNotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.UpdateOrderStatus(context.Background(), admin, 404, workflow.OrderWaitingSizes)
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestUpdateOrderStatusOwnership(t *testing.T) {
	f := newFixture()
	seeded := f.repo.seed(Order{SalespersonID: sales.UserID, Status: workflow.OrderNew})

	_, err := f.svc.UpdateOrderStatus(context.Background(), other, seeded.ID, workflow.OrderWaitingSizes)
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	_, err = f.svc.UpdateOrderStatus(context.Background(), financeUser, seeded.ID, workflow.OrderWaitingSizes)
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	_, err = f.svc.UpdateOrderStatus(context.Background(), admin, seeded.ID, workflow.OrderWaitingSizes)
	assert.NoError(t, err)
}

func TestSideEffectFailuresDoNotFailTheUpdate(t *testing.T) {
	f := newFixture()
	f.activity.err = errors.New("log down")
	f.notifier.err = errors.New("notify down")
	seeded := f.repo.seed(Order{SalespersonID: sales.UserID, Status: workflow.OrderNew})

	order, err := f.svc.UpdateOrderStatus(context.Background(), ops, seeded.ID, workflow.OrderWaitingSizes)
	require.NoError(t, err)
	assert.Equal(t, workflow.OrderWaitingSizes, order.Status)
}

func TestStorageFailureIsServiceError(t *testing.T) {
	f := newFixture()
	f.repo.statusError = errors.New("connection reset")
	seeded := f.repo.seed(Order{SalespersonID: sales.UserID, Status: workflow.OrderNew})

	_, err := f.svc.UpdateOrderStatus(context.Background(), sales, seeded.ID, workflow.OrderWaitingSizes)
	assert.ErrorIs(t, err, httpx.ErrService)
	assert.Equal(t, 500, httpx.StatusOf(err))
}

func TestUpdateOrderPatchesAndRecomputesTotal(t *testing.T) {
	f := newFixture()
	seeded := f.repo.seed(Order{SalespersonID: sales.UserID, Status: workflow.OrderNew, OrderName: "Old"})

	name := "New name"
	approved := true
	items := []LineItemInput{{ItemName: "Tee", Quantity: 3, UnitPrice: decimal.RequireFromString("9.99")}}
	order, err := f.svc.UpdateOrder(context.Background(), sales, seeded.ID, UpdateOrderRequest{
		OrderName:      &name,
		DesignApproved: &approved,
		Items:          &items,
	})
	require.NoError(t, err)
	assert.Equal(t, "New name", order.OrderName)
	assert.True(t, order.DesignApproved)
	assert.Equal(t, "29.97", order.TotalAmount.StringFixed(2))
	assert.Len(t, order.Items, 1)
	assert.Equal(t, workflow.OrderNew, order.Status)
}

func TestUpdateOrderRejectsCompletedAndStrangers(t *testing.T) {
	f := newFixture()
	done := f.repo.seed(Order{SalespersonID: sales.UserID, Status: workflow.OrderCompleted})
	open := f.repo.seed(Order{SalespersonID: sales.UserID, Status: workflow.OrderNew})
	notes := "x"

	_, err := f.svc.UpdateOrder(context.Background(), sales, done.ID, UpdateOrderRequest{Notes: &notes})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = f.svc.UpdateOrder(context.Background(), other, open.ID, UpdateOrderRequest{Notes: &notes})
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	empty := " "
	_, err = f.svc.UpdateOrder(context.Background(), sales, open.ID, UpdateOrderRequest{OrderName: &empty})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestDeleteOrderArchives(t *testing.T) {
	f := newFixture()
	seeded := f.repo.seed(Order{SalespersonID: sales.UserID, Status: workflow.OrderNew})

	assert.ErrorIs(t, f.svc.DeleteOrder(context.Background(), sales, seeded.ID), httpx.ErrForbidden)
	require.NoError(t, f.svc.DeleteOrder(context.Background(), ops, seeded.ID))

	_, err := f.svc.GetOrderByID(context.Background(), ops, seeded.ID)
	assert.ErrorIs(t, err, httpx.ErrNotFound)

	page, err := f.svc.ListOrders(context.Background(), admin, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestGetOrderByIDVisibility(t *testing.T) {
	f := newFixture()
	seeded := f.repo.seed(Order{SalespersonID: sales.UserID, Status: workflow.OrderNew})

	for _, p := range []rbac.Principal{admin, ops, sales, financeUser, maker} {
		_, err := f.svc.GetOrderByID(context.Background(), p, seeded.ID)
		assert.NoError(t, err, p.Role)
	}
	_, err := f.svc.GetOrderByID(context.Background(), other, seeded.ID)
	assert.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestListOrdersScoping(t *testing.T) {
	f := newFixture()
	f.repo.seed(Order{SalespersonID: sales.UserID, Status: workflow.OrderNew})
	f.repo.seed(Order{SalespersonID: other.UserID, Status: workflow.OrderNew})
	f.repo.seed(Order{SalespersonID: other.UserID, Status: workflow.OrderShipped})

	page, err := f.svc.ListOrders(context.Background(), sales, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	page, err = f.svc.ListOrders(context.Background(), financeUser, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
	assert.Equal(t, 3, page.Pagination.Total)

	page, err = f.svc.ListOrders(context.Background(), admin, ListFilter{Status: workflow.OrderShipped})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	_, err = f.svc.ListOrders(context.Background(), admin, ListFilter{Status: "bogus"})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestAllowedTransitions(t *testing.T) {
	f := newFixture()
	seeded := f.repo.seed(Order{SalespersonID: sales.UserID, Status: workflow.OrderInvoiced})

	next, err := f.svc.AllowedTransitions(context.Background(), sales, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, []Status{workflow.OrderProduction}, next)

	next, err = f.svc.AllowedTransitions(context.Background(), financeUser, seeded.ID)
	require.NoError(t, err)
	assert.Empty(t, next)
}

func TestCanUserModifyOrder(t *testing.T) {
	own := Order{SalespersonID: sales.UserID}
	assert.True(t, CanUserModifyOrder(admin, own))
	assert.True(t, CanUserModifyOrder(ops, own))
	assert.True(t, CanUserModifyOrder(sales, own))
	assert.False(t, CanUserModifyOrder(other, own))
	assert.False(t, CanUserModifyOrder(financeUser, own))
	assert.False(t, CanUserModifyOrder(maker, own))

	assert.True(t, CanUserViewOrder(financeUser, own))
	assert.False(t, CanUserViewOrder(other, own))
}

func TestIsValidOrderStatusTransition(t *testing.T) {
	assert.True(t, IsValidOrderStatusTransition(workflow.OrderShipped, workflow.OrderCompleted))
	assert.True(t, IsValidOrderStatusTransition(workflow.OrderShipped, workflow.OrderShipped))
	assert.False(t, IsValidOrderStatusTransition(workflow.OrderCompleted, workflow.OrderShipped))
}
