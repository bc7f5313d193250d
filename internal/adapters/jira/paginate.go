/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
	"context"
	"iter"
)

// page is one startAt/maxResults slice of a Jira listing. Total is -1 when
// the endpoint did not report it.
type page[T any] struct {
	Items      []T
	MaxResults int
	Total      int
	IsLast     bool
}

// done reports whether no further page should be requested. Jira may cap
// maxResults below what was asked for; the reported value wins then.
func (p page[T]) done(startAt, requested int) bool {
	n := len(p.Items)
	if n == 0 || p.IsLast {
		return true
	}
	size := requested
	if p.MaxResults > 0 && p.MaxResults < size {
		size = p.MaxResults
	}
	if n < size {
		return true
	}
	return p.Total >= 0 && startAt+n >= p.Total
}

type pageFunc[T any] func(ctx context.Context, startAt, max int) (page[T], error)

// paginate turns successive page fetches into one lazy sequence. A fetch
// error is yielded once and ends the sequence.
func paginate[T any](ctx context.Context, pageSize int, fetch pageFunc[T]) iter.Seq2[T, error] {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return func(yield func(T, error) bool) {
		var zero T
		startAt := 0
		for {
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}
			p, err := fetch(ctx, startAt, pageSize)
			if err != nil {
				yield(zero, err)
				return
			}
			for _, it := range p.Items {
				if !yield(it, nil) {
					return
				}
			}
			if p.done(startAt, pageSize) {
				return
			}
			startAt += len(p.Items)
		}
	}
}

// Collect drains seq, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for it, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, it)
	}
	return out, nil
}

func totalOf(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}
