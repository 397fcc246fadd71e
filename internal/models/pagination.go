package models

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// PageParams are the raw paging inputs of a list request.
type PageParams struct {
	Page     int
	PageSize int
}

// Normalize clamps the page to >= 1 and the size to (0, MaxPageSize].
func (p PageParams) Normalize() PageParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Bounds returns the slice window [start, end) for a collection of total items. Pages past
// the end give an empty window at total.
func (p PageParams) Bounds(total int) (int, int) {
	p = p.Normalize()
	if p.Page-1 > total/p.PageSize {
		return total, total
	}
	start := (p.Page - 1) * p.PageSize
	if start > total {
		start = total
	}
	end := start + p.PageSize
	if end > total {
		end = total
	}
	return start, end
}
