package shared

import (
	"math"
	"net/http"
	"strconv"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	page, perPage = normalizePage(page, perPage)
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// PageRequest is the page window requested by a client.
type PageRequest struct {
	Page    int
	PerPage int
}

// Offset returns the row offset for the window.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// PageFromRequest reads ?page= and ?per_page= with defaults and an upper bound.
func PageFromRequest(r *http.Request) PageRequest {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	page, perPage = normalizePage(page, perPage)
	return PageRequest{Page: page, PerPage: perPage}
}

func normalizePage(page, perPage int) (int, int) {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	if page <= 0 {
		page = 1
	}
	return page, perPage
}

// Page wraps a listing with its pagination metadata.
type Page[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// NewPage builds a Page, never returning a nil item slice.
func NewPage[T any](items []T, req PageRequest, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Pagination: NewPagination(req.Page, req.PerPage, total)}
}
