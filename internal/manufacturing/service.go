package manufacturing

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

const entityType = "manufacturing_job"

// Service drives manufacturing jobs.
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

// CreateJob opens a pending job for an invoiced or in-production order.
func (s *Service) CreateJob(ctx context.Context, actor rbac.Principal, req CreateJobRequest) (Job, error) {
	if !CanUserModifyJob(actor, Job{}) {
		return Job{}, httpx.Forbidden("you cannot create manufacturing jobs")
	}
	req.Notes = strings.TrimSpace(req.Notes)
	if err := httpx.Validate(s.validate, req); err != nil {
		return Job{}, err
	}
	order, err := s.repo.Order(ctx, req.OrderID)
	if err != nil {
		return Job{}, httpx.Wrap("manufacturing: create", err)
	}
	if !order.ready() {
		return Job{}, httpx.InvalidField("order_id", fmt.Sprintf("order %s is %s; it must be invoiced first", order.OrderCode, order.Status))
	}
	now := s.now()
	job := Job{
		OrderID:          order.ID,
		OrderCode:        order.OrderCode,
		SalespersonID:    order.SalespersonID,
		Status:           workflow.JobPending,
		AssignedToUserID: req.AssignedToUserID,
		Notes:            req.Notes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if job.ID, err = s.repo.Insert(ctx, job); err != nil {
		return Job{}, httpx.Wrap("manufacturing: create", err)
	}
	s.record(ctx, activity.New(entityType, job.ID, activity.ActionCreated, actor.UserID, nil, statusSnapshot{Status: job.Status}))
	s.notifyAssignee(ctx, actor, job, "Manufacturing job assigned")
	return job, nil
}

// UpdateJob changes assignment or notes.
func (s *Service) UpdateJob(ctx context.Context, actor rbac.Principal, id int64, req UpdateJobRequest) (Job, error) {
	if err := httpx.Validate(s.validate, req); err != nil {
		return Job{}, err
	}
	job, err := s.load(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if !CanUserModifyJob(actor, job) {
		return Job{}, httpx.Forbidden("you cannot modify this job")
	}
	reassigned := req.AssignedToUserID != nil && !sameUser(job.AssignedToUserID, req.AssignedToUserID)
	if req.AssignedToUserID != nil {
		job.AssignedToUserID = req.AssignedToUserID
	}
	if req.Notes != nil {
		job.Notes = strings.TrimSpace(*req.Notes)
	}
	if err := s.repo.Update(ctx, job); err != nil {
		return Job{}, httpx.Wrap("manufacturing: update", err)
	}
	job.UpdatedAt = s.now()
	s.record(ctx, activity.New(entityType, id, activity.ActionUpdated, actor.UserID, nil, nil))
	if reassigned {
		s.notifyAssignee(ctx, actor, job, "Manufacturing job assigned")
	}
	return job, nil
}

// UpdateJobStatus advances a job. Leaving pending stamps started_at; completion stamps completed_at
// and tells the salesperson; a failed quality check tells the assignee.
func (s *Service) UpdateJobStatus(ctx context.Context, actor rbac.Principal, id int64, newStatus Status) (Job, error) {
	job, err := s.load(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if !CanUserModifyJob(actor, job) {
		return Job{}, httpx.Forbidden("you cannot modify this job")
	}
	if job.Status == newStatus {
		return job, nil
	}
	if err := workflow.Jobs.Validate(job.Status, newStatus); err != nil {
		return Job{}, err
	}
	now := s.now()
	startedAt, completedAt := job.StartedAt, job.CompletedAt
	if startedAt == nil && job.Status == workflow.JobPending {
		startedAt = &now
	}
	if newStatus == workflow.JobCompleted {
		completedAt = &now
	}
	if err := s.repo.UpdateStatus(ctx, id, newStatus, startedAt, completedAt); err != nil {
		return Job{}, httpx.Wrap("manufacturing: update status", err)
	}
	previous := job.Status
	job.Status, job.StartedAt, job.CompletedAt, job.UpdatedAt = newStatus, startedAt, completedAt, now

	s.record(ctx, activity.New(entityType, id, activity.ActionStatusChanged, actor.UserID,
		statusSnapshot{Status: previous}, statusSnapshot{Status: newStatus}))
	switch {
	case newStatus == workflow.JobCompleted && job.SalespersonID != actor.UserID:
		s.notify(ctx, notifications.New{
			UserID:  job.SalespersonID,
			Title:   "Production finished",
			Message: fmt.Sprintf("Order %s is packed and ready to ship.", job.OrderCode),
			Type:    notifications.TypeOrder,
			Link:    fmt.Sprintf("/orders/%d", job.OrderID),
		})
	case previous == workflow.JobQualityCheck && newStatus == workflow.JobPrinting:
		s.notifyAssignee(ctx, actor, job, "Quality check failed")
	}
	return job, nil
}

// GetJob returns a job the actor may view.
func (s *Service) GetJob(ctx context.Context, actor rbac.Principal, id int64) (Job, error) {
	job, err := s.load(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if !CanUserViewJob(actor, job) {
		return Job{}, httpx.Forbidden("you cannot view this job")
	}
	return job, nil
}

// ListJobs lists jobs; salespeople see only jobs for their own orders.
func (s *Service) ListJobs(ctx context.Context, actor rbac.Principal, filter ListFilter) (shared.Page[Job], error) {
	if !actor.Can(rbac.Manufacturing, rbac.ActionView) {
		return shared.Page[Job]{}, httpx.Forbidden("you cannot view manufacturing jobs")
	}
	if !actor.Can(rbac.Manufacturing, rbac.ActionViewAll) {
		filter.SalespersonID = actor.UserID
	}
	if filter.Status != "" && !workflow.Jobs.IsKnown(filter.Status) {
		return shared.Page[Job]{}, httpx.InvalidField("status", "unknown manufacturing status")
	}
	if filter.Page.PerPage == 0 {
		filter.Page = shared.PageRequest{Page: 1, PerPage: 20}
	}
	out, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return shared.Page[Job]{}, httpx.Wrap("manufacturing: list", err)
	}
	return shared.NewPage(out, filter.Page, total), nil
}

// AllowedTransitions lists the stages the job can move to next.
func (s *Service) AllowedTransitions(ctx context.Context, actor rbac.Principal, id int64) ([]Status, error) {
	job, err := s.GetJob(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !CanUserModifyJob(actor, job) {
		return []Status{}, nil
	}
	return workflow.Jobs.Next(job.Status), nil
}

func (s *Service) load(ctx context.Context, id int64) (Job, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return Job{}, httpx.Wrap("manufacturing: get", err)
	}
	return job, nil
}

func (s *Service) notifyAssignee(ctx context.Context, actor rbac.Principal, job Job, title string) {
	if job.AssignedToUserID == nil || *job.AssignedToUserID == actor.UserID {
		return
	}
	s.notify(ctx, notifications.New{
		UserID:  *job.AssignedToUserID,
		Title:   title,
		Message: fmt.Sprintf("Order %s is at %s.", job.OrderCode, job.Status),
		Type:    notifications.TypeTask,
		Link:    fmt.Sprintf("/manufacturing/%d", job.ID),
	})
}

func (s *Service) record(ctx context.Context, e activity.Entry) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Record(ctx, e); err != nil {
		s.logger.Warn("manufacturing: activity log failed", slog.Int64("job_id", e.EntityID), slog.String("action", e.Action), slog.Any("error", err))
	}
}

func (s *Service) notify(ctx context.Context, n notifications.New) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("manufacturing: notification failed", slog.Int64("user_id", n.UserID), slog.Any("error", err))
	}
}

func sameUser(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
