/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import "iter"

// Epic owns the issues linked to it. Issues reference the epic by key only.
type Epic struct {
	Issue
	Issues []Issue
}

// Hierarchy is a snapshot of one initiative, its epics and their issues.
type Hierarchy struct {
	Initiative string
	Epics      []Epic
}

func (h Hierarchy) Empty() bool { return len(h.Epics) == 0 }

// Issues yields every issue below the epics in traversal order. An issue
// linked from two epics is yielded once.
func (h Hierarchy) Issues() iter.Seq[Issue] {
	return func(yield func(Issue) bool) {
		seen := map[string]bool{}
		for _, e := range h.Epics {
			for _, is := range e.Issues {
				if seen[is.Key] {
					continue
				}
				seen[is.Key] = true
				if !yield(is) {
					return
				}
			}
		}
	}
}

// Keys lists epic keys followed by each epic's issue keys.
func (h Hierarchy) Keys() []string {
	var out []string
	for _, e := range h.Epics {
		out = append(out, e.Key)
		for _, is := range e.Issues {
			out = append(out, is.Key)
		}
	}
	return out
}

func (h Hierarchy) IssueCount() int {
	n := 0
	for range h.Issues() {
		n++
	}
	return n
}
