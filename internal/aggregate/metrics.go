/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package aggregate

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/HamedShams/jira-pulse/internal/domain"
	"github.com/rs/zerolog"
)

const DefaultSprintCount = 5

type SprintSource interface {
	Boards(ctx context.Context, projectKey string) ([]domain.Board, error)
	RecentSprints(ctx context.Context, boardID, n int) ([]domain.Sprint, error)
	IssuesForSprint(ctx context.Context, boardID, sprintID int) ([]domain.Issue, error)
}

type Aggregator struct {
	src            SprintSource
	defaultSprints int
	log            zerolog.Logger
}

func New(src SprintSource, defaultSprints int, log zerolog.Logger) *Aggregator {
	if defaultSprints <= 0 {
		defaultSprints = DefaultSprintCount
	}
	return &Aggregator{src: src, defaultSprints: defaultSprints, log: log.With().Str("component", "metrics").Logger()}
}

// Compute gathers the most recent sprintCount sprints of the project's board
// and their metrics. A project without a board or sprints gives an empty
// result carrying a caveat.
func (a *Aggregator) Compute(ctx context.Context, projectKey string, sprintCount int) (domain.MetricsResult, error) {
	if sprintCount <= 0 {
		sprintCount = a.defaultSprints
	}
	projectKey = strings.ToUpper(strings.TrimSpace(projectKey))
	res := domain.MetricsResult{ProjectKey: projectKey}

	boards, err := a.src.Boards(ctx, projectKey)
	if err != nil {
		return res, fmt.Errorf("boards of %s: %w", projectKey, err)
	}
	board, ok := pickBoard(boards)
	if !ok {
		res.Caveats = append(res.Caveats, "no board found for project "+projectKey)
		return res, nil
	}
	res.BoardID, res.BoardName = board.ID, board.Name

	sprints, err := a.src.RecentSprints(ctx, board.ID, sprintCount)
	if err != nil {
		return res, fmt.Errorf("sprints of board %d: %w", board.ID, err)
	}
	if len(sprints) == 0 {
		res.Caveats = append(res.Caveats, "no active or closed sprints on board "+board.Name)
		return res, nil
	}

	// a failing sprint is left out with a caveat; the request fails only
	// when no sprint could be read
	var firstErr error
	for _, sp := range sprints {
		issues, err := a.src.IssuesForSprint(ctx, board.ID, sp.ID)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("issues of sprint %d: %w", sp.ID, err)
			}
			a.log.Warn().Err(err).Int("sprint", sp.ID).Msg("sprint issues unavailable; skipping sprint")
			res.Caveats = append(res.Caveats, fmt.Sprintf("sprint %s left out: its issues could not be fetched", sp.Name))
			continue
		}
		res.Sprints = append(res.Sprints, SprintMetricsOf(sp, issues))
	}
	if len(res.Sprints) == 0 && firstErr != nil {
		return res, firstErr
	}
	Summarize(&res)
	a.log.Debug().Str("project", projectKey).Int("sprints", len(res.Sprints)).Int("missing_estimates", res.MissingEstimates).Msg("metrics computed")
	return res, nil
}

// pickBoard prefers the first scrum board; kanban boards have no sprints.
func pickBoard(boards []domain.Board) (domain.Board, bool) {
	if len(boards) == 0 {
		return domain.Board{}, false
	}
	for _, b := range boards {
		if strings.EqualFold(b.Type, "scrum") {
			return b, true
		}
	}
	return boards[0], true
}

// SprintMetricsOf computes one sprint's figures. Missing estimates count as
// zero points and are tallied.
func SprintMetricsOf(sp domain.Sprint, issues []domain.Issue) domain.SprintMetrics {
	m := domain.SprintMetrics{
		ID:         sp.ID,
		Name:       sp.Name,
		State:      sp.State,
		Start:      sp.Start,
		End:        sp.End,
		IssueCount: len(issues),
	}
	index := map[string]int{}
	for _, is := range issues {
		pts, ok := is.Points()
		if !ok {
			m.MissingEstimates++
		}
		m.Committed += pts
		if is.IsDone() {
			m.Completed += pts
			m.CompletedIssues++
		}
		status := is.Status
		if status == "" {
			status = "Unknown"
		}
		if i, seen := index[status]; seen {
			m.ByStatus[i].Count++
		} else {
			index[status] = len(m.ByStatus)
			m.ByStatus = append(m.ByStatus, domain.StatusCount{Status: status, Count: 1})
		}
	}
	domain.SortStatusCounts(m.ByStatus)
	m.Velocity = m.Completed
	m.Churn = m.Committed - m.Completed
	if m.Committed > 0 {
		m.ChurnRate = round2(m.Churn / m.Committed * 100)
	}
	return m
}

// Summarize fills the result-level figures: average velocity over closed
// sprints, total missing estimates and the caveat describing them.
func Summarize(res *domain.MetricsResult) {
	var closed int
	var sum float64
	res.MissingEstimates = 0
	for _, s := range res.Sprints {
		res.MissingEstimates += s.MissingEstimates
		if strings.EqualFold(s.State, "closed") {
			closed++
			sum += s.Velocity
		}
	}
	if closed > 0 {
		res.AverageVelocity = round2(sum / float64(closed))
	}
	if res.MissingEstimates > 0 {
		noun := "issues"
		if res.MissingEstimates == 1 {
			noun = "issue"
		}
		res.Caveats = append(res.Caveats, fmt.Sprintf("%d %s missing estimates (counted as 0 points)", res.MissingEstimates, noun))
	}
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
