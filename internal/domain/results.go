/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import "time"

// Result is what the pipeline hands to the formatter.
type Result interface {
	Empty() bool
	// IssueKeys lists every issue key the result mentions.
	IssueKeys() []string
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type SprintMetrics struct {
	ID               int           `json:"id"`
	Name             string        `json:"name"`
	State            string        `json:"state"`
	Start            time.Time     `json:"start"`
	End              time.Time     `json:"end"`
	IssueCount       int           `json:"issues"`
	CompletedIssues  int           `json:"completed_issues"`
	Committed        float64       `json:"committed_points"`
	Completed        float64       `json:"completed_points"`
	Velocity         float64       `json:"velocity"`
	Churn            float64       `json:"churn"`
	ChurnRate        float64       `json:"churn_rate_pct"`
	MissingEstimates int           `json:"missing_estimates"`
	ByStatus         []StatusCount `json:"by_status"`
}

type MetricsResult struct {
	ProjectKey       string          `json:"project"`
	BoardID          int             `json:"board_id,omitempty"`
	BoardName        string          `json:"board,omitempty"`
	Sprints          []SprintMetrics `json:"sprints"` // most recent first
	AverageVelocity  float64         `json:"average_velocity"`
	MissingEstimates int             `json:"missing_estimates"`
	Caveats          []string        `json:"caveats,omitempty"`
}

func (m MetricsResult) Empty() bool { return len(m.Sprints) == 0 }

func (m MetricsResult) IssueKeys() []string { return nil }

func (m MetricsResult) TotalCommitted() float64 {
	var n float64
	for _, s := range m.Sprints {
		n += s.Committed
	}
	return n
}

func (m MetricsResult) TotalCompleted() float64 {
	var n float64
	for _, s := range m.Sprints {
		n += s.Completed
	}
	return n
}

type Transition struct {
	From string    `json:"from"`
	To   string    `json:"to"`
	At   time.Time `json:"at"`
}

type IssueChanges struct {
	Key         string       `json:"key"`
	Summary     string       `json:"summary,omitempty"`
	Link        string       `json:"link"`
	Status      string       `json:"status,omitempty"`
	Transitions []Transition `json:"transitions"`
}

type SummaryResult struct {
	InitiativeKey string         `json:"initiative"`
	InitiativeURL string         `json:"initiative_url,omitempty"`
	Window        TimeWindow     `json:"window"`
	StatusFilter  string         `json:"status_filter,omitempty"`
	EpicCount     int            `json:"epics"`
	IssueCount    int            `json:"issues_scanned"`
	Issues        []IssueChanges `json:"changed"`
}

func (s SummaryResult) Empty() bool { return len(s.Issues) == 0 }

func (s SummaryResult) IssueKeys() []string {
	out := make([]string, 0, len(s.Issues)+1)
	if s.InitiativeKey != "" {
		out = append(out, s.InitiativeKey)
	}
	for _, ic := range s.Issues {
		out = append(out, ic.Key)
	}
	return out
}

func (s SummaryResult) TransitionCount() int {
	n := 0
	for _, ic := range s.Issues {
		n += len(ic.Transitions)
	}
	return n
}
