/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package intent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/HamedShams/jira-pulse/internal/domain"
)

const day = 24 * time.Hour

var (
	fromToRe   = regexp.MustCompile(`(?i)\bfrom\s+(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2})\s+(?:to|until|through)\s+(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2})\b`)
	sinceRe    = regexp.MustCompile(`(?i)\bsince\s+(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2})\b`)
	lastNRe    = regexp.MustCompile(`(?i)\b(?:last|past|previous)\s+(\d+|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve)\s+(day|week|month|sprint)s?\b`)
	lastUnitRe = regexp.MustCompile(`(?i)\b(?:last|past|previous)\s+(day|week|fortnight|month|sprint)\b`)
	thisRe     = regexp.MustCompile(`(?i)\bthis\s+(week|month)\b`)
	todayRe    = regexp.MustCompile(`(?i)\btoday\b`)
	yesterRe   = regexp.MustCompile(`(?i)\byesterday\b`)
)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
}

// WindowResolver turns relative time phrases into concrete windows.
type WindowResolver struct {
	SprintLength time.Duration
	Default      time.Duration
}

// Resolve finds the first time phrase in text. ok is false when text has
// none; err is set when a phrase is present but yields an invalid window.
func (wr WindowResolver) Resolve(text string, now time.Time) (w domain.TimeWindow, ok bool, err error) {
	switch {
	case fromToRe.MatchString(text):
		m := fromToRe.FindStringSubmatch(text)
		start, err := parseDay(m[1], now)
		if err != nil {
			return w, true, err
		}
		end, err := parseDay(m[2], now)
		if err != nil {
			return w, true, err
		}
		// "from 12/28 to 01/02" spans the new year
		if start.After(end) && !strings.Contains(m[1], "-") {
			start = start.AddDate(-1, 0, 0)
		}
		w, err = domain.NewTimeWindow(start, end.Add(day), now)
		return w, true, err
	case sinceRe.MatchString(text):
		start, err := parseDay(sinceRe.FindStringSubmatch(text)[1], now)
		if err != nil {
			return w, true, err
		}
		w, err = domain.NewTimeWindow(start, now, now)
		return w, true, err
	case lastNRe.MatchString(text):
		m := lastNRe.FindStringSubmatch(text)
		n, err := count(m[1])
		if err != nil {
			return w, true, err
		}
		w, err = domain.NewTimeWindow(wr.back(now, strings.ToLower(m[2]), n), now, now)
		return w, true, err
	case lastUnitRe.MatchString(text):
		unit := strings.ToLower(lastUnitRe.FindStringSubmatch(text)[1])
		if unit == "fortnight" {
			return domain.LastDays(now, 14*day), true, nil
		}
		w, err = domain.NewTimeWindow(wr.back(now, unit, 1), now, now)
		return w, true, err
	case thisRe.MatchString(text):
		if strings.EqualFold(thisRe.FindStringSubmatch(text)[1], "month") {
			return domain.TimeWindow{Start: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), End: now}, true, nil
		}
		return domain.TimeWindow{Start: weekStart(now), End: now}, true, nil
	case yesterRe.MatchString(text):
		today := midnight(now)
		return domain.TimeWindow{Start: today.Add(-day), End: today}, true, nil
	case todayRe.MatchString(text):
		return domain.TimeWindow{Start: midnight(now), End: now}, true, nil
	}
	return w, false, nil
}

// Dates builds a window from ISO dates; the end date is inclusive.
func (wr WindowResolver) Dates(start, end string, now time.Time) (domain.TimeWindow, error) {
	s, err := parseDay(start, now)
	if err != nil {
		return domain.TimeWindow{}, err
	}
	e := now
	if end != "" {
		d, err := parseDay(end, now)
		if err != nil {
			return domain.TimeWindow{}, err
		}
		e = d.Add(day)
	}
	return domain.NewTimeWindow(s, e, now)
}

// Fallback is the window used when a request names no period.
func (wr WindowResolver) Fallback(now time.Time) domain.TimeWindow {
	d := wr.Default
	if d <= 0 {
		d = 7 * day
	}
	return domain.LastDays(now, d)
}

func (wr WindowResolver) back(now time.Time, unit string, n int) time.Time {
	switch unit {
	case "day":
		return now.Add(-time.Duration(n) * day)
	case "week":
		return now.Add(-time.Duration(n) * 7 * day)
	case "month":
		return now.AddDate(0, -n, 0)
	default:
		l := wr.SprintLength
		if l <= 0 {
			l = 14 * day
		}
		return now.Add(-time.Duration(n) * l)
	}
}

func count(s string) (int, error) {
	if n, ok := numberWords[strings.ToLower(s)]; ok {
		return n, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: bad count %q", domain.ErrInvalidWindow, s)
	}
	return n, nil
}

// parseDay accepts YYYY-MM-DD or MM/DD in now's location. A year-less date
// is the most recent one not after now.
func parseDay(s string, now time.Time) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("1/2", s, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", domain.ErrInvalidWindow, s)
	}
	d := time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())
	if d.After(now) {
		d = time.Date(now.Year()-1, t.Month(), t.Day(), 0, 0, 0, 0, now.Location())
	}
	return d, nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// weekStart returns Monday 00:00 of t's week.
func weekStart(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return midnight(t.AddDate(0, 0, -(weekday - 1)))
}
