package domain

import "math"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	// MaxPageNumber keeps Offset within int range for any page size.
	MaxPageNumber = math.MaxInt32 / MaxPageSize
)

// Page selects a 1-based page of results.
type Page struct {
	Number int
	Size   int
}

// Normalize fills defaults and clamps the page number and size.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Number > MaxPageNumber {
		p.Number = MaxPageNumber
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// PageInfo describes where a result page sits in the full result set.
type PageInfo struct {
	TotalItems  int
	ItemCount   int
	PageSize    int
	TotalPages  int
	CurrentPage int
}

// NewPageInfo computes paging metadata for a page holding itemCount of total items.
func NewPageInfo(p Page, total, itemCount int) PageInfo {
	pages := 0
	if p.Size > 0 {
		pages = (total + p.Size - 1) / p.Size
	}
	return PageInfo{
		TotalItems:  total,
		ItemCount:   itemCount,
		PageSize:    p.Size,
		TotalPages:  pages,
		CurrentPage: p.Number,
	}
}
