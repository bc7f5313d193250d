/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import (
	"iter"
	"strings"
	"time"
)

// StatusField is the changelog field name of workflow transitions.
const StatusField = "status"

type Issue struct {
	Key            string
	Summary        string
	Status         string
	StatusCategory string // Jira status category key: new, indeterminate, done
	Type           string
	StoryPoints    *float64
	PointsInvalid  bool // the points field held a value that is not a number
	ParentKey      string
	Updated        time.Time
	Changelog      []ChangelogEntry
}

// ChangelogEntry is one field change of an issue. From is empty when the
// field had no previous value.
type ChangelogEntry struct {
	Field string
	From  string
	To    string
	At    time.Time
}

// IsDone reports whether the issue sits in a done-category status.
func (i Issue) IsDone() bool { return strings.EqualFold(i.StatusCategory, "done") }

// Points returns the estimate and whether one was present.
func (i Issue) Points() (float64, bool) {
	if i.StoryPoints == nil || i.PointsInvalid {
		return 0, false
	}
	return *i.StoryPoints, true
}

// Transitions yields the status changes that moved from one status to another.
// Initial assignments without a previous value are skipped.
func (i Issue) Transitions() iter.Seq[ChangelogEntry] {
	return func(yield func(ChangelogEntry) bool) {
		for _, e := range i.Changelog {
			if !strings.EqualFold(e.Field, StatusField) || strings.TrimSpace(e.From) == "" {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

type Board struct {
	ID   int
	Name string
	Type string
}

type Sprint struct {
	ID        int
	Name      string
	State     string // active, closed, future
	Start     time.Time
	End       time.Time
	Completed time.Time
}

func (s Sprint) Closed() bool { return strings.EqualFold(s.State, "closed") }
