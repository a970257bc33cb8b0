// Package paging slices ordered result sequences into numbered pages.
package paging

import (
	"errors"
	"fmt"
)

// ErrInvalidPage is returned for a page number or page size below one.
var ErrInvalidPage = errors.New("invalid page")

// Page is one slice of a result sequence plus the metadata needed to
// navigate the rest of it.
type Page[T any] struct {
	Items      []T `json:"items" msgpack:"items"`
	PageNumber int `json:"pageNumber" msgpack:"page_number"`
	PageSize   int `json:"pageSize" msgpack:"page_size"`
	TotalCount int `json:"totalCount" msgpack:"total_count"`
	TotalPages int `json:"totalPages" msgpack:"total_pages"`
}

// HasNext reports whether a page follows this one.
func (p Page[T]) HasNext() bool {
	return p.PageNumber < p.TotalPages
}

// HasPrevious reports whether a page precedes this one.
func (p Page[T]) HasPrevious() bool {
	return p.PageNumber > 1 && p.TotalPages > 0
}

// TotalPages returns ceil(total/size), or 0 when total is 0.
func TotalPages(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// Paginate returns page pageNumber of items. Items is never nil; a page past
// the end is empty but still reports the correct totals.
func Paginate[T any](items []T, pageNumber, pageSize int) (Page[T], error) {
	if pageNumber < 1 {
		return Page[T]{}, fmt.Errorf("%w: page number %d must be at least 1", ErrInvalidPage, pageNumber)
	}
	if pageSize < 1 {
		return Page[T]{}, fmt.Errorf("%w: page size %d must be at least 1", ErrInvalidPage, pageSize)
	}

	total := len(items)
	page := Page[T]{
		Items:      []T{},
		PageNumber: pageNumber,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: TotalPages(total, pageSize),
	}

	// guard against overflow on absurd page numbers
	if pageNumber-1 > total/pageSize {
		return page, nil
	}
	offset := (pageNumber - 1) * pageSize
	if offset >= total {
		return page, nil
	}
	end := min(offset+pageSize, total)
	page.Items = append(page.Items, items[offset:end]...)
	return page, nil
}

// Map converts the items of p while keeping its metadata.
func Map[T, U any](p Page[T], fn func(T) U) Page[U] {
	out := Page[U]{
		Items:      make([]U, 0, len(p.Items)),
		PageNumber: p.PageNumber,
		PageSize:   p.PageSize,
		TotalCount: p.TotalCount,
		TotalPages: p.TotalPages,
	}
	for _, it := range p.Items {
		out.Items = append(out.Items, fn(it))
	}
	return out
}
