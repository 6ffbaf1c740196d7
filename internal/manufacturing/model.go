// Package manufacturing tracks production jobs through the shop floor stages.
package manufacturing

import (
	"time"

	"github.com/richhabits/richhabits-os/internal/rbac"
	"github.com/richhabits/richhabits-os/internal/shared"
	"github.com/richhabits/richhabits-os/internal/workflow"
)

// Status aliases the manufacturing workflow state.
type Status = workflow.JobStatus

// Job is the production run for one order.
type Job struct {
	ID               int64      `json:"id"`
	OrderID          int64      `json:"order_id"`
	OrderCode        string     `json:"order_code,omitempty"`
	SalespersonID    int64      `json:"salesperson_id"`
	Status           Status     `json:"status"`
	AssignedToUserID *int64     `json:"assigned_to_user_id,omitempty"`
	Notes            string     `json:"notes"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// OrderInfo is the part of an order a job needs.
type OrderInfo struct {
	ID            int64
	OrderCode     string
	SalespersonID int64
	Status        workflow.OrderStatus
}

// ready reports whether the order may go to the floor.
func (o OrderInfo) ready() bool {
	return o.Status == workflow.OrderInvoiced || o.Status == workflow.OrderProduction
}

// CanUserModifyJob allows manufacturing writers with view-all rights.
func CanUserModifyJob(user rbac.Principal, _ Job) bool {
	return user.Can(rbac.Manufacturing, rbac.ActionWrite) && user.Can(rbac.Manufacturing, rbac.ActionViewAll)
}

// CanUserViewJob allows view-all readers and the salesperson who owns the order.
func CanUserViewJob(user rbac.Principal, j Job) bool {
	if user.Can(rbac.Manufacturing, rbac.ActionViewAll) {
		return true
	}
	return user.Can(rbac.Manufacturing, rbac.ActionView) && j.SalespersonID == user.UserID
}

// CreateJobRequest is the input of CreateJob.
type CreateJobRequest struct {
	OrderID          int64  `json:"order_id" validate:"required,gt=0"`
	AssignedToUserID *int64 `json:"assigned_to_user_id,omitempty" validate:"omitempty,gt=0"`
	Notes            string `json:"notes" validate:"max=4000"`
}

// UpdateJobRequest patches assignment and notes.
type UpdateJobRequest struct {
	AssignedToUserID *int64  `json:"assigned_to_user_id,omitempty" validate:"omitempty,gt=0"`
	Notes            *string `json:"notes,omitempty" validate:"omitempty,max=4000"`
}

// UpdateStatusRequest is the body of the status endpoint.
type UpdateStatusRequest struct {
	Status Status `json:"status"`
}

// ListFilter narrows ListJobs.
type ListFilter struct {
	Status        Status
	AssignedTo    int64
	SalespersonID int64
	Page          shared.PageRequest
}
