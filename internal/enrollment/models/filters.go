package models

import (
	"strings"

	id "careon/pkg/domain"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Filters narrows an application listing. Zero values mean "any".
type Filters struct {
	Status   Status
	UserID   id.UserID
	Search   string
	Page     int
	PageSize int
}

// Normalize applies paging defaults and bounds.
func (f Filters) Normalize() Filters {
	f.Search = strings.TrimSpace(f.Search)
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

// Offset is the number of rows to skip for the current page.
func (f Filters) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// Matches evaluates the filter against one application in memory: search is
// case-insensitive on representative or business name, or a substring of the
// business number.
func (f Filters) Matches(a *Application) bool {
	if f.Status != "" && a.Status() != f.Status {
		return false
	}
	if !f.UserID.IsNil() && a.UserID() != f.UserID {
		return false
	}
	if f.Search == "" {
		return true
	}
	q := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(a.Representative().Name), q) ||
		strings.Contains(strings.ToLower(a.Business().Name), q) ||
		strings.Contains(a.Business().Number, f.Search)
}

type ListResult struct {
	Items      []*Application
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// NewListResult assembles a page; f must already be normalized.
func NewListResult(items []*Application, total int, f Filters) *ListResult {
	totalPages := 0
	if f.PageSize > 0 {
		totalPages = (total + f.PageSize - 1) / f.PageSize
	}
	if items == nil {
		items = []*Application{}
	}
	return &ListResult{
		Items:      items,
		Total:      total,
		Page:       f.Page,
		PageSize:   f.PageSize,
		TotalPages: totalPages,
	}
}
