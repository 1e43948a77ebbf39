package core

import "math"

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// Page is one page of a listing or search.
type Page[T any] struct {
	Data            []T   `json:"data"`
	CurrentPage     int   `json:"currentPage"`
	PageSize        int   `json:"pageSize"`
	TotalRecords    int64 `json:"totalRecords"`
	TotalPages      int   `json:"totalPages"`
	HasNextPage     bool  `json:"hasNextPage"`
	HasPreviousPage bool  `json:"hasPreviousPage"`
}

// pageRequest is a normalized page/pageSize pair.
type pageRequest struct {
	page     int
	pageSize int
}

// normalizePage clamps page to >= 1 and pageSize to [1, maxSize], using
// defaultSize when pageSize is not positive.
func normalizePage(page, pageSize, defaultSize, maxSize int) pageRequest {
	if defaultSize < 1 {
		defaultSize = DefaultPageSize
	}
	if maxSize < 1 {
		maxSize = MaxPageSize
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultSize
	}
	if pageSize > maxSize {
		pageSize = maxSize
	}
	if maxPage := math.MaxInt32 / pageSize; page > maxPage {
		page = maxPage
	}
	return pageRequest{page: page, pageSize: pageSize}
}

func (p pageRequest) limit() int32  { return int32(p.pageSize) }
func (p pageRequest) offset() int32 { return int32((p.page - 1) * p.pageSize) }

// newPage assembles a Page. A page past the end is returned empty with the
// true totals.
func newPage[T any](items []T, total int64, req pageRequest) Page[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := int((total + int64(req.pageSize) - 1) / int64(req.pageSize))
	return Page[T]{
		Data:            items,
		CurrentPage:     req.page,
		PageSize:        req.pageSize,
		TotalRecords:    total,
		TotalPages:      totalPages,
		HasNextPage:     req.page < totalPages,
		HasPreviousPage: req.page > 1,
	}
}
