package activity

import (
	"context"

	"github.com/richhabits/richhabits-os/internal/platform/httpx"
	"github.com/richhabits/richhabits-os/internal/rbac"
)

// Lister reads the trail.
type Lister interface {
	List(ctx context.Context, f Filter, offset, limit int) ([]Entry, error)
}

// Service serves trail queries.
type Service struct {
	repo Lister
}

// NewService builds the activity service.
func NewService(repo Lister) *Service {
	return &Service{repo: repo}
}

// Trail returns a page of entries. Actors without view-all rights only see their own actions.
func (s *Service) Trail(ctx context.Context, actor rbac.Principal, f Filter) (Result, error) {
	if !actor.Can(rbac.Activity, rbac.ActionView) {
		return Result{}, httpx.Forbidden("activity trail is not available to your role")
	}
	if !actor.Can(rbac.Activity, rbac.ActionViewAll) {
		f.UserID = actor.UserID
	}
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	rows, err := s.repo.List(ctx, f, (page-1)*pageSize, pageSize+1)
	if err != nil {
		return Result{}, httpx.Wrap("activity: trail", err)
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	if rows == nil {
		rows = []Entry{}
	}
	return Result{Entries: rows, Paging: PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}}, nil
}
