/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidWindow = errors.New("invalid time window")

// TimeWindow is the half-open interval [Start, End).
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// NewTimeWindow clamps end to now and rejects windows that end up empty or
// start in the future.
func NewTimeWindow(start, end, now time.Time) (TimeWindow, error) {
	if end.After(now) {
		end = now
	}
	if !start.Before(end) {
		return TimeWindow{}, fmt.Errorf("%w: start %s is not before end %s", ErrInvalidWindow,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return TimeWindow{Start: start, End: end}, nil
}

// LastDays is [now-d, now).
func LastDays(now time.Time, d time.Duration) TimeWindow {
	return TimeWindow{Start: now.Add(-d), End: now}
}

func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w TimeWindow) Empty() bool { return !w.Start.Before(w.End) }

func (w TimeWindow) Duration() time.Duration {
	if w.Empty() {
		return 0
	}
	return w.End.Sub(w.Start)
}

func (w TimeWindow) String() string {
	if w.Empty() {
		return "empty window"
	}
	return w.Start.Format("2006-01-02") + " to " + w.End.Format("2006-01-02")
}
