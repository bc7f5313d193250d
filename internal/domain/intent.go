/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

type IntentKind string

const (
	KindProjectMetrics    IntentKind = "project_metrics"
	KindInitiativeSummary IntentKind = "initiative_summary"
)

// Intent is a closed set: ProjectMetrics or InitiativeSummary.
type Intent interface {
	Kind() IntentKind
	intent()
}

type ProjectMetrics struct {
	ProjectKey  string
	SprintCount int
}

func (ProjectMetrics) Kind() IntentKind { return KindProjectMetrics }
func (ProjectMetrics) intent()          {}

type InitiativeSummary struct {
	InitiativeKey string
	Window        TimeWindow
	StatusFilter  string // empty means no filter
}

func (InitiativeSummary) Kind() IntentKind { return KindInitiativeSummary }
func (InitiativeSummary) intent()          {}
