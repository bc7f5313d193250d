/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import (
	"sort"
	"strings"
)

// Stage is a workflow position shared across boards.
type Stage int

const (
	StageBacklog Stage = iota
	StageQueue
	StageInProgress
	StageReview
	StageTest
	StageDeploy
	StageBlocked
	StageDone
)

var stageNames = [...]string{"Backlog", "Queue", "InProgress", "Review", "Test", "Deploy", "Blocked", "Done"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "Unknown"
	}
	return stageNames[s]
}

// CanonicalStage maps a Jira status name onto a stage. ok is false when the
// name matches no known stage.
func CanonicalStage(status string) (Stage, bool) {
	key := strings.ToLower(strings.TrimSpace(status))
	switch {
	case key == "":
		return 0, false
	case key == "backlog":
		return StageBacklog, true
	case strings.Contains(key, "to do") || key == "todo" || key == "open" || key == "selected for development":
		return StageQueue, true
	case strings.Contains(key, "in progress") || key == "doing":
		return StageInProgress, true
	case strings.Contains(key, "review") || strings.Contains(key, "ready4test"):
		return StageReview, true
	case strings.Contains(key, "test") || strings.Contains(key, "qa"):
		return StageTest, true
	case strings.Contains(key, "deploy") || strings.Contains(key, "release"):
		return StageDeploy, true
	case strings.Contains(key, "block") || key == "pending" || key == "on hold":
		return StageBlocked, true
	case strings.Contains(key, "done") || strings.Contains(key, "resolve") || key == "closed":
		return StageDone, true
	default:
		return 0, false
	}
}

// SortStatusCounts orders counts by workflow stage. Statuses without a known
// stage follow, in first-encounter order; so do ties within a stage.
func SortStatusCounts(counts []StatusCount) {
	rank := func(c StatusCount) int {
		if st, ok := CanonicalStage(c.Status); ok {
			return int(st)
		}
		return len(stageNames)
	}
	sort.SliceStable(counts, func(i, j int) bool { return rank(counts[i]) < rank(counts[j]) })
}
