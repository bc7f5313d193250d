package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HamedShams/jira-pulse/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	boards  []domain.Board
	sprints []domain.Sprint
	issues  map[int][]domain.Issue
	failing map[int]error
	err     error
	askedN  int
}

func (f *fakeSource) Boards(context.Context, string) ([]domain.Board, error) { return f.boards, f.err }

func (f *fakeSource) RecentSprints(_ context.Context, _ int, n int) ([]domain.Sprint, error) {
	f.askedN = n
	if len(f.sprints) > n {
		return f.sprints[:n], nil
	}
	return f.sprints, nil
}

func (f *fakeSource) IssuesForSprint(_ context.Context, _ int, sprintID int) ([]domain.Issue, error) {
	if err := f.failing[sprintID]; err != nil {
		return nil, err
	}
	return f.issues[sprintID], nil
}

func pts(f float64) *float64 { return &f }

func issue(key, status, category string, points *float64) domain.Issue {
	return domain.Issue{Key: key, Status: status, StatusCategory: category, StoryPoints: points}
}

func TestSprintMetricsOf_CommittedCompletedChurn(t *testing.T) {
	sp := domain.Sprint{ID: 1, Name: "Sprint 1", State: "closed"}
	m := SprintMetricsOf(sp, []domain.Issue{
		issue("T-1", "In Progress", "indeterminate", pts(5)),
		issue("T-2", "Done", "done", pts(3)),
		issue("T-3", "To Do", "new", nil),
	})

	assert.Equal(t, 8.0, m.Committed)
	assert.Equal(t, 3.0, m.Completed)
	assert.Equal(t, 1, m.CompletedIssues)
	assert.Equal(t, 3.0, m.Velocity)
	assert.Equal(t, 5.0, m.Churn)
	assert.Equal(t, 62.5, m.ChurnRate)
	assert.Equal(t, 1, m.MissingEstimates)
	assert.Equal(t, []domain.StatusCount{{Status: "To Do", Count: 1}, {Status: "In Progress", Count: 1}, {Status: "Done", Count: 1}}, m.ByStatus)
}

func TestCompute_AllEstimatesMissing(t *testing.T) {
	src := &fakeSource{
		boards:  []domain.Board{{ID: 9, Name: "XYZ", Type: "scrum"}},
		sprints: []domain.Sprint{{ID: 2, State: "active"}, {ID: 1, State: "closed"}},
		issues: map[int][]domain.Issue{
			2: {issue("X-1", "To Do", "new", nil), issue("X-2", "Done", "done", nil)},
			1: {issue("X-3", "Done", "done", nil)},
		},
	}
	res, err := New(src, 5, zerolog.Nop()).Compute(context.Background(), "xyz", 3)
	require.NoError(t, err)

	assert.Equal(t, "XYZ", res.ProjectKey)
	assert.Zero(t, res.TotalCommitted())
	assert.Zero(t, res.TotalCompleted())
	assert.Equal(t, 3, res.MissingEstimates)
	require.NotEmpty(t, res.Caveats)
	assert.Contains(t, res.Caveats[0], "3 issues missing estimates")
	assert.Equal(t, 3, src.askedN)
}

func TestCompute_OrderAndAverageVelocity(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{
		boards: []domain.Board{{ID: 1, Name: "kanban", Type: "kanban"}, {ID: 2, Name: "scrum", Type: "scrum"}},
		sprints: []domain.Sprint{
			{ID: 30, State: "active", End: now},
			{ID: 20, State: "closed", End: now.AddDate(0, 0, -14)},
			{ID: 10, State: "closed", End: now.AddDate(0, 0, -28)},
		},
		issues: map[int][]domain.Issue{
			30: {issue("A-1", "Done", "done", pts(13))},
			20: {issue("A-2", "Done", "done", pts(8)), issue("A-3", "In Progress", "indeterminate", pts(2))},
			10: {issue("A-4", "Closed", "done", pts(4))},
		},
	}
	res, err := New(src, 5, zerolog.Nop()).Compute(context.Background(), "A", 0)
	require.NoError(t, err)

	assert.Equal(t, 2, res.BoardID, "scrum board preferred")
	assert.Equal(t, 5, src.askedN, "default sprint count")
	require.Len(t, res.Sprints, 3)
	assert.Equal(t, []int{30, 20, 10}, []int{res.Sprints[0].ID, res.Sprints[1].ID, res.Sprints[2].ID})
	assert.Equal(t, 6.0, res.AverageVelocity, "active sprint excluded from the average")
	assert.Empty(t, res.Caveats)
}

func TestCompute_NoBoardIsReportableNotAnError(t *testing.T) {
	res, err := New(&fakeSource{}, 5, zerolog.Nop()).Compute(context.Background(), "NOPE", 2)
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.NotEmpty(t, res.Caveats)
}

func TestCompute_PropagatesSourceErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := New(&fakeSource{err: boom}, 5, zerolog.Nop()).Compute(context.Background(), "X", 1)
	assert.ErrorIs(t, err, boom)
}

func TestCompute_FailingSprintIsLeftOutWithCaveat(t *testing.T) {
	boom := errors.New("502 bad gateway")
	src := &fakeSource{
		boards: []domain.Board{{ID: 2, Name: "scrum", Type: "scrum"}},
		sprints: []domain.Sprint{
			{ID: 30, Name: "Sprint 30", State: "closed"},
			{ID: 20, Name: "Sprint 20", State: "closed"},
		},
		issues:  map[int][]domain.Issue{30: {issue("A-1", "Done", "done", pts(13))}},
		failing: map[int]error{20: boom},
	}
	res, err := New(src, 5, zerolog.Nop()).Compute(context.Background(), "A", 2)
	require.NoError(t, err)
	require.Len(t, res.Sprints, 1)
	assert.Equal(t, 30, res.Sprints[0].ID)
	assert.Equal(t, 13.0, res.AverageVelocity)
	assert.Contains(t, res.Caveats, "sprint Sprint 20 left out: its issues could not be fetched")

	src.failing[30] = boom
	_, err = New(src, 5, zerolog.Nop()).Compute(context.Background(), "A", 2)
	assert.ErrorIs(t, err, boom)
}

func TestSprintMetricsOf_InvalidPointsCountAsMissing(t *testing.T) {
	is := issue("T-1", "Done", "done", pts(3))
	is.PointsInvalid = true
	m := SprintMetricsOf(domain.Sprint{ID: 1}, []domain.Issue{is})
	assert.Zero(t, m.Committed)
	assert.Equal(t, 1, m.MissingEstimates)
	assert.Equal(t, 1, m.CompletedIssues)
}
