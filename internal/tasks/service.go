package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/richhabits/richhabits-os/internal/activity"
	"github.com/richhabits/richhabits-os/internal/notifications"
	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/rbac"
	"github.com/richhabits/richhabits-os/internal/shared"
	"github.com/richhabits/richhabits-os/internal/workflow"
)

const entityType = "task"

// Service handles task business logic.
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

type assignmentSnapshot struct {
	AssignedToUserID *int64 `json:"assigned_to_user_id"`
}

// CreateTask creates a pending task and notifies the assignee unless they assigned it to themself.
func (s *Service) CreateTask(ctx context.Context, actor rbac.Principal, req CreateTaskRequest) (Task, error) {
	if !actor.Can(rbac.Tasks, rbac.ActionWrite) {
		return Task{}, httpx.Forbidden("you cannot create tasks")
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := httpx.Validate(s.validate, req); err != nil {
		return Task{}, err
	}
	priority := req.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	now := s.now()
	task := Task{
		Title:            req.Title,
		Description:      req.Description,
		Status:           workflow.TaskPending,
		Priority:         priority,
		DueDate:          req.DueDate,
		AssignedToUserID: req.AssignedToUserID,
		CreatedByUserID:  actor.UserID,
		OrderID:          req.OrderID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	id, err := s.repo.Insert(ctx, task)
	if err != nil {
		return Task{}, httpx.Wrap("tasks: create", err)
	}
	task.ID = id

	s.record(ctx, activity.New(entityType, id, activity.ActionCreated, actor.UserID, nil, statusSnapshot{Status: task.Status}))
	s.notifyAssignee(ctx, actor, task, "New task assigned")
	return task, nil
}

// UpdateTask patches editable fields. Reassigning notifies the new assignee.
func (s *Service) UpdateTask(ctx context.Context, actor rbac.Principal, id int64, req UpdateTaskRequest) (Task, error) {
	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		if trimmed == "" {
			return Task{}, httpx.InvalidField("title", "is required")
		}
		req.Title = &trimmed
	}
	if err := httpx.Validate(s.validate, req); err != nil {
		return Task{}, err
	}
	task, err := s.load(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if !CanUserModifyTask(actor, task) {
		return Task{}, httpx.Forbidden("you cannot modify this task")
	}

	previousAssignee := task.AssignedToUserID
	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Priority != nil {
		task.Priority = *req.Priority
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	}
	if req.AssignedToUserID != nil {
		task.AssignedToUserID = req.AssignedToUserID
	}
	if req.OrderID != nil {
		task.OrderID = req.OrderID
	}
	if err := s.repo.Update(ctx, task); err != nil {
		return Task{}, httpx.Wrap("tasks: update", err)
	}
	task.UpdatedAt = s.now()

	reassigned := req.AssignedToUserID != nil && (previousAssignee == nil || *previousAssignee != *req.AssignedToUserID)
	if reassigned {
		s.record(ctx, activity.New(entityType, id, activity.ActionUpdated, actor.UserID,
			assignmentSnapshot{AssignedToUserID: previousAssignee}, assignmentSnapshot{AssignedToUserID: task.AssignedToUserID}))
		s.notifyAssignee(ctx, actor, task, "Task reassigned to you")
	} else {
		s.record(ctx, activity.New(entityType, id, activity.ActionUpdated, actor.UserID, nil, nil))
	}
	return task, nil
}

// UpdateTaskStatus moves a task along its workflow. Completing a task notifies its creator.
func (s *Service) UpdateTaskStatus(ctx context.Context, actor rbac.Principal, id int64, newStatus Status) (Task, error) {
	task, err := s.load(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if !CanUserModifyTask(actor, task) {
		return Task{}, httpx.Forbidden("you cannot modify this task")
	}
	if task.Status == newStatus {
		return task, nil
	}
	if err := workflow.Tasks.Validate(task.Status, newStatus); err != nil {
		return Task{}, err
	}
	var completedAt *time.Time
	if newStatus == workflow.TaskCompleted {
		now := s.now()
		completedAt = &now
	}
	if err := s.repo.UpdateStatus(ctx, id, newStatus, completedAt); err != nil {
		return Task{}, httpx.Wrap("tasks: update status", err)
	}
	previous := task.Status
	task.Status = newStatus
	task.CompletedAt = completedAt
	task.UpdatedAt = s.now()

	s.record(ctx, activity.New(entityType, id, activity.ActionStatusChanged, actor.UserID,
		statusSnapshot{Status: previous}, statusSnapshot{Status: newStatus}))
	if newStatus == workflow.TaskCompleted && task.CreatedByUserID != actor.UserID {
		s.notify(ctx, notifications.New{
			UserID:  task.CreatedByUserID,
			Title:   "Task completed",
			Message: fmt.Sprintf("%q was completed by %s.", task.Title, actorName(actor)),
			Type:    notifications.TypeTask,
			Link:    taskLink(id),
		})
	}
	return task, nil
}

// DeleteTask soft-archives a task.
func (s *Service) DeleteTask(ctx context.Context, actor rbac.Principal, id int64) error {
	task, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !CanUserArchiveTask(actor, task) {
		return httpx.Forbidden("you cannot delete this task")
	}
	if err := s.repo.Archive(ctx, id, s.now()); err != nil {
		return httpx.Wrap("tasks: delete", err)
	}
	s.record(ctx, activity.New(entityType, id, activity.ActionArchived, actor.UserID, statusSnapshot{Status: task.Status}, nil))
	return nil
}

// GetTask returns a task the actor may view.
func (s *Service) GetTask(ctx context.Context, actor rbac.Principal, id int64) (Task, error) {
	task, err := s.load(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if !CanUserViewTask(actor, task) {
		return Task{}, httpx.Forbidden("you cannot view this task")
	}
	return task, nil
}

// ListTasks lists live tasks. Without view-all rights only tasks the actor created or is assigned
// are returned.
func (s *Service) ListTasks(ctx context.Context, actor rbac.Principal, filter ListFilter) (shared.Page[Task], error) {
	if !actor.Can(rbac.Tasks, rbac.ActionView) {
		return shared.Page[Task]{}, httpx.Forbidden("you cannot view tasks")
	}
	filter.VisibleTo = 0
	if !actor.Can(rbac.Tasks, rbac.ActionViewAll) {
		filter.VisibleTo = actor.UserID
	}
	if filter.Status != "" && !workflow.Tasks.IsKnown(filter.Status) {
		return shared.Page[Task]{}, httpx.InvalidField("status", "unknown task status")
	}
	if filter.Page.PerPage == 0 {
		filter.Page = shared.PageRequest{Page: 1, PerPage: 20}
	}
	out, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return shared.Page[Task]{}, httpx.Wrap("tasks: list", err)
	}
	return shared.NewPage(out, filter.Page, total), nil
}

func (s *Service) load(ctx context.Context, id int64) (Task, error) {
	task, err := s.repo.Get(ctx, id)
	if err != nil {
		return Task{}, httpx.Wrap("tasks: get", err)
	}
	if task.IsArchived() {
		return Task{}, httpx.NotFound("task", id)
	}
	return task, nil
}

func (s *Service) notifyAssignee(ctx context.Context, actor rbac.Principal, task Task, title string) {
	if task.AssignedToUserID == nil || *task.AssignedToUserID == actor.UserID {
		return
	}
	s.notify(ctx, notifications.New{
		UserID:  *task.AssignedToUserID,
		Title:   title,
		Message: fmt.Sprintf("%s assigned you %q.", actorName(actor), task.Title),
		Type:    notifications.TypeTask,
		Link:    taskLink(task.ID),
	})
}

func (s *Service) record(ctx context.Context, e activity.Entry) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Record(ctx, e); err != nil {
		s.logger.Warn("tasks: activity log failed", slog.Int64("task_id", e.EntityID), slog.String("action", e.Action), slog.Any("error", err))
	}
}

func (s *Service) notify(ctx context.Context, n notifications.New) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("tasks: notification failed", slog.Int64("user_id", n.UserID), slog.Any("error", err))
	}
}

func taskLink(id int64) string {
	return fmt.Sprintf("/tasks/%d", id)
}

func actorName(p rbac.Principal) string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("user %d", p.UserID)
}
