/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package changes

import (
	"sort"
	"strings"

	"github.com/HamedShams/jira-pulse/internal/domain"
)

// LinkFunc builds the browse URL of an issue key.
type LinkFunc func(key string) string

// BrowseLinks returns a LinkFunc for a Jira site.
func BrowseLinks(baseURL string) LinkFunc {
	base := strings.TrimRight(baseURL, "/")
	return func(key string) string { return base + "/browse/" + key }
}

// Summarize keeps the status transitions inside w, optionally only those
// entering or leaving statusFilter, grouped per issue in hierarchy order.
// Issues without a qualifying transition are left out.
func Summarize(h domain.Hierarchy, w domain.TimeWindow, statusFilter string, link LinkFunc) domain.SummaryResult {
	filter := strings.TrimSpace(statusFilter)
	res := domain.SummaryResult{
		InitiativeKey: h.Initiative,
		Window:        w,
		StatusFilter:  filter,
		EpicCount:     len(h.Epics),
	}
	if link != nil && h.Initiative != "" {
		res.InitiativeURL = link(h.Initiative)
	}
	for is := range h.Issues() {
		res.IssueCount++
		if w.Empty() {
			continue
		}
		var ts []domain.Transition
		for e := range is.Transitions() {
			if !w.Contains(e.At) {
				continue
			}
			if filter != "" && !strings.EqualFold(e.From, filter) && !strings.EqualFold(e.To, filter) {
				continue
			}
			ts = append(ts, domain.Transition{From: e.From, To: e.To, At: e.At})
		}
		if len(ts) == 0 {
			continue
		}
		sort.SliceStable(ts, func(i, j int) bool { return ts[i].At.Before(ts[j].At) })
		ic := domain.IssueChanges{Key: is.Key, Summary: is.Summary, Status: is.Status, Transitions: ts}
		if link != nil {
			ic.Link = link(is.Key)
		}
		res.Issues = append(res.Issues, ic)
	}
	return res
}
