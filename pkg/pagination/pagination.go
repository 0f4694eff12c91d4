// Package pagination walks paged remote listings.
package pagination

import (
	"context"
	"errors"
	"fmt"
)

// Meta is the pagination block a remote listing reports alongside a page.
type Meta struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	Total       int `json:"total"`
}

// Page is one page of a remote listing.
type Page[T any] struct {
	Items []T
	Meta  Meta
}

// FetchFunc requests a single 1-based page of a remote listing.
type FetchFunc[T any] func(ctx context.Context, page, pageSize int) (Page[T], error)

// ErrPageLimit is returned when a walk reaches maxPages without the listing
// reporting its end.
var ErrPageLimit = errors.New("page limit reached")

// PageError records which page of a walk failed.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// WalkResult is the outcome of a completed walk.
type WalkResult[T any] struct {
	Items []T
	Pages int
}

// Walk requests pages 1, 2, ... in order and accumulates their items until
// the listing is exhausted. A walk stops after a page that is empty, shorter
// than pageSize, or whose metadata reports currentPage >= totalPages. Missing
// metadata (totalPages == 0) is ignored in favour of the page length.
//
// maxPages > 0 bounds the walk regardless of what the remote reports. The
// context is checked before every request. On any error the partial
// accumulator is discarded.
func Walk[T any](ctx context.Context, pageSize, maxPages int, fetch FetchFunc[T]) (WalkResult[T], error) {
	if pageSize <= 0 {
		return WalkResult[T]{}, fmt.Errorf("page size must be positive, got %d", pageSize)
	}

	var acc []T
	for page := 1; ; page++ {
		if maxPages > 0 && page > maxPages {
			return WalkResult[T]{}, &PageError{Page: page, Err: ErrPageLimit}
		}
		if err := ctx.Err(); err != nil {
			return WalkResult[T]{}, &PageError{Page: page, Err: err}
		}

		p, err := fetch(ctx, page, pageSize)
		if err != nil {
			return WalkResult[T]{}, &PageError{Page: page, Err: err}
		}

		if len(p.Items) == 0 {
			return WalkResult[T]{Items: acc, Pages: page}, nil
		}
		acc = append(acc, p.Items...)

		if len(p.Items) < pageSize {
			return WalkResult[T]{Items: acc, Pages: page}, nil
		}

		current := p.Meta.CurrentPage
		if current == 0 {
			current = page
		}
		if p.Meta.TotalPages > 0 && current >= p.Meta.TotalPages {
			return WalkResult[T]{Items: acc, Pages: page}, nil
		}
	}
}
