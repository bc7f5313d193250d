/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package render

import (
	"encoding/json"
	"fmt"

	"github.com/HamedShams/jira-pulse/internal/domain"
)

type compactWindow struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type compactSummary struct {
	Kind          string                `json:"kind"`
	Initiative    string                `json:"initiative"`
	InitiativeURL string                `json:"initiative_url,omitempty"`
	Window        compactWindow         `json:"window"`
	StatusFilter  string                `json:"status_filter,omitempty"`
	Epics         int                   `json:"epics"`
	Scanned       int                   `json:"issues_scanned"`
	Changed       []domain.IssueChanges `json:"changed"`
	Omitted       int                   `json:"omitted_issues,omitempty"`
}

type compactMetrics struct {
	Kind string `json:"kind"`
	domain.MetricsResult
	Omitted int `json:"omitted_sprints,omitempty"`
}

// Compact serializes a result for a model prompt, keeping at most limit
// groups (sprints or changed issues; limit <= 0 keeps all). Summaries are
// scrubbed of personal data.
func Compact(r domain.Result, limit int) ([]byte, error) {
	switch v := r.(type) {
	case *domain.MetricsResult:
		return Compact(*v, limit)
	case *domain.SummaryResult:
		return Compact(*v, limit)
	case domain.MetricsResult:
		out := compactMetrics{Kind: string(domain.KindProjectMetrics), MetricsResult: v}
		if limit > 0 && len(v.Sprints) > limit {
			out.Omitted = len(v.Sprints) - limit
			out.Sprints = v.Sprints[:limit]
		}
		return json.Marshal(out)
	case domain.SummaryResult:
		out := compactSummary{
			Kind:          string(domain.KindInitiativeSummary),
			Initiative:    v.InitiativeKey,
			InitiativeURL: v.InitiativeURL,
			Window:        compactWindow{From: v.Window.Start.UTC().Format(dateLayout), To: v.Window.End.UTC().Format(dateLayout)},
			StatusFilter:  v.StatusFilter,
			Epics:         v.EpicCount,
			Scanned:       v.IssueCount,
		}
		issues := v.Issues
		if limit > 0 && len(issues) > limit {
			out.Omitted = len(issues) - limit
			issues = issues[:limit]
		}
		out.Changed = make([]domain.IssueChanges, len(issues))
		for i, ic := range issues {
			ic.Summary = Scrub(ic.Summary)
			out.Changed[i] = ic
		}
		return json.Marshal(out)
	}
	return nil, fmt.Errorf("render: unsupported result %T", r)
}

// Groups reports how many truncatable groups a result has.
func Groups(r domain.Result) int {
	switch v := r.(type) {
	case domain.MetricsResult:
		return len(v.Sprints)
	case *domain.MetricsResult:
		return len(v.Sprints)
	case domain.SummaryResult:
		return len(v.Issues)
	case *domain.SummaryResult:
		return len(v.Issues)
	}
	return 0
}
