package domain

import "fmt"

const (
	DefaultPageLimit = 100
	MaxPageLimit     = 1000
)

// PageRequest is an offset window over an ordered result set.
type PageRequest struct {
	Skip  int
	Limit int
}

// Normalize applies the default limit and rejects out-of-range windows.
func (p PageRequest) Normalize() (PageRequest, error) {
	if p.Limit == 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Skip < 0 {
		return p, WrapError(ErrInvalidInput, "page request", fmt.Errorf("skip must be >= 0, got %d", p.Skip))
	}
	if p.Limit < 1 || p.Limit > MaxPageLimit {
		return p, WrapError(ErrInvalidInput, "page request", fmt.Errorf("limit must be within 1..%d, got %d", MaxPageLimit, p.Limit))
	}
	return p, nil
}

// Page is one window of results plus the total number of matches.
type Page[T any] struct {
	Items []T `json:"data"`
	Count int `json:"count"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
}

func NewPage[T any](items []T, total int, req PageRequest) Page[T] {
	if items == nil {
		items = []T{}
	}
	page, pages := 1, 1
	if req.Limit > 0 {
		page = req.Skip/req.Limit + 1
		pages = (total + req.Limit - 1) / req.Limit
	}
	return Page[T]{
		Items: items,
		Count: len(items),
		Total: total,
		Page:  page,
		Pages: pages,
	}
}
