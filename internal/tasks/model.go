// Package tasks manages internal to-dos, optionally tied to an order.
package tasks

import (
	"time"

	"github.com/richhabits/richhabits-os/internal/rbac"
	"github.com/richhabits/richhabits-os/internal/shared"
	"github.com/richhabits/richhabits-os/internal/workflow"
)

// Status aliases the task workflow state.
type Status = workflow.TaskStatus

// Priority ranks tasks.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Task is a unit of work for one user.
type Task struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Status           Status     `json:"status"`
	Priority         Priority   `json:"priority"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	AssignedToUserID *int64     `json:"assigned_to_user_id,omitempty"`
	CreatedByUserID  int64      `json:"created_by_user_id"`
	OrderID          *int64     `json:"order_id,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	ArchivedAt       *time.Time `json:"archived_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// IsArchived reports whether the task was soft-deleted.
func (t Task) IsArchived() bool {
	return t.ArchivedAt != nil
}

// IsAssignedTo reports whether userID is the assignee.
func (t Task) IsAssignedTo(userID int64) bool {
	return t.AssignedToUserID != nil && *t.AssignedToUserID == userID
}

func (t Task) involves(userID int64) bool {
	return t.CreatedByUserID == userID || t.IsAssignedTo(userID)
}

// CanUserViewTask allows view-all readers, the assignee and the creator.
func CanUserViewTask(user rbac.Principal, t Task) bool {
	if user.Can(rbac.Tasks, rbac.ActionViewAll) {
		return true
	}
	return user.Can(rbac.Tasks, rbac.ActionView) && t.involves(user.UserID)
}

// CanUserModifyTask allows writers who can see every task, or who are involved in this one.
func CanUserModifyTask(user rbac.Principal, t Task) bool {
	if !user.Can(rbac.Tasks, rbac.ActionWrite) {
		return false
	}
	return user.Can(rbac.Tasks, rbac.ActionViewAll) || t.involves(user.UserID)
}

// CanUserArchiveTask allows roles with delete rights and the task's creator.
func CanUserArchiveTask(user rbac.Principal, t Task) bool {
	if !CanUserModifyTask(user, t) {
		return false
	}
	return user.Can(rbac.Tasks, rbac.ActionDelete) || t.CreatedByUserID == user.UserID
}

// CreateTaskRequest is the input of CreateTask.
type CreateTaskRequest struct {
	Title            string     `json:"title" validate:"required,max=200"`
	Description      string     `json:"description" validate:"max=4000"`
	Priority         Priority   `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	AssignedToUserID *int64     `json:"assigned_to_user_id,omitempty" validate:"omitempty,gt=0"`
	OrderID          *int64     `json:"order_id,omitempty" validate:"omitempty,gt=0"`
}

// UpdateTaskRequest patches a task. Nil fields are left untouched.
type UpdateTaskRequest struct {
	Title            *string    `json:"title,omitempty" validate:"omitempty,max=200"`
	Description      *string    `json:"description,omitempty" validate:"omitempty,max=4000"`
	Priority         *Priority  `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	AssignedToUserID *int64     `json:"assigned_to_user_id,omitempty" validate:"omitempty,gt=0"`
	OrderID          *int64     `json:"order_id,omitempty" validate:"omitempty,gt=0"`
}

// UpdateStatusRequest is the body of the status endpoint.
type UpdateStatusRequest struct {
	Status Status `json:"status"`
}

// ListFilter narrows ListTasks. VisibleTo limits results to tasks the user created or is assigned.
type ListFilter struct {
	Status     Status
	AssignedTo int64
	OrderID    int64
	VisibleTo  int64
	Page       shared.PageRequest
}
