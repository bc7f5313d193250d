package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/HamedShams/jira-pulse/internal/adapters/jira"
	"github.com/HamedShams/jira-pulse/internal/changes"
	"github.com/HamedShams/jira-pulse/internal/domain"
	"github.com/HamedShams/jira-pulse/internal/hierarchy"
	"github.com/HamedShams/jira-pulse/internal/intent"
	"github.com/HamedShams/jira-pulse/internal/render"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC)

type fixedRouter struct {
	in  domain.Intent
	err error
}

func (f fixedRouter) Interpret(context.Context, string, domain.Conversation) (domain.Intent, error) {
	return f.in, f.err
}

type plainFormatter struct{}

func (plainFormatter) Format(_ context.Context, res domain.Result, _ string, _ domain.Conversation) string {
	return render.Plain(res)
}

type fakeResolver struct {
	h     domain.Hierarchy
	errs  []error
	calls int
}

func (f *fakeResolver) Resolve(_ context.Context, key string, _ ...hierarchy.Option) (domain.Hierarchy, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return domain.Hierarchy{}, err
	}
	return f.h, nil
}

type fakeMetrics struct {
	res   domain.MetricsResult
	err   error
	calls int
}

func (f *fakeMetrics) Compute(_ context.Context, key string, n int) (domain.MetricsResult, error) {
	f.calls++
	return f.res, f.err
}

func newAssistant(r Interpreter, h HierarchyResolver, m MetricsComputer) *Assistant {
	a := NewAssistant(r, plainFormatter{}, h, m, changes.BrowseLinks("https://acme.atlassian.net"), zerolog.Nop())
	a.sleep = func(context.Context, time.Duration) error { return nil }
	return a
}

func blockedHierarchy() domain.Hierarchy {
	return domain.Hierarchy{
		Initiative: "PROG-123",
		Epics: []domain.Epic{{
			Issue: domain.Issue{Key: "PROG-200"},
			Issues: []domain.Issue{{
				Key: "PROG-201", Summary: "Payment retries",
				Changelog: []domain.ChangelogEntry{{Field: domain.StatusField, From: "In Progress", To: "Blocked", At: now.Add(-48 * time.Hour)}},
			}},
		}},
	}
}

func TestHandle_InitiativeSummary(t *testing.T) {
	in := domain.InitiativeSummary{InitiativeKey: "PROG-123", Window: domain.LastDays(now, 14*24*time.Hour), StatusFilter: "Blocked"}
	res := &fakeResolver{h: blockedHierarchy()}
	a := newAssistant(fixedRouter{in: in}, res, &fakeMetrics{})
	hist := domain.Conversation{{Role: domain.RoleUser, Content: "hi"}, {Role: domain.RoleAssistant, Content: "hello"}}

	reply, err := a.Handle(context.Background(), "what got blocked", hist)
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "[PROG-201](https://acme.atlassian.net/browse/PROG-201)")
	assert.Contains(t, reply.Text, "In Progress → Blocked")
	require.Len(t, reply.History, 4)
	assert.Equal(t, domain.Turn{Role: domain.RoleUser, Content: "what got blocked"}, reply.History[2])
	assert.Equal(t, reply.Text, reply.History[3].Content)
	assert.Len(t, hist, 2)
}

func TestHandle_RetriesServerErrors(t *testing.T) {
	res := &fakeResolver{h: blockedHierarchy(), errs: []error{
		&jira.APIError{Op: "search", Status: http.StatusBadGateway},
		&jira.APIError{Op: "search", Status: http.StatusTooManyRequests},
	}}
	in := domain.InitiativeSummary{InitiativeKey: "PROG-123", Window: domain.LastDays(now, 14*24*time.Hour)}
	_, err := newAssistant(fixedRouter{in: in}, res, nil).Handle(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.calls)
}

func TestAnswer_MapsErrorsToMessages(t *testing.T) {
	unavailable := &jira.APIError{Op: "boards", Status: http.StatusServiceUnavailable}
	tests := []struct {
		name    string
		router  Interpreter
		metrics *fakeMetrics
		want    string
		calls   int
	}{
		{"parse", fixedRouter{err: &intent.ParseError{Reason: "no project key"}}, &fakeMetrics{}, intent.Clarification, 0},
		{"forbidden", fixedRouter{in: domain.ProjectMetrics{ProjectKey: "XYZ", SprintCount: 3}}, &fakeMetrics{err: &jira.APIError{Status: http.StatusForbidden}}, MsgFetchFailed, 1},
		{"unavailable", fixedRouter{in: domain.ProjectMetrics{ProjectKey: "XYZ", SprintCount: 3}}, &fakeMetrics{err: unavailable}, MsgUnavailable, jiraAttempts},
		{"deadline", fixedRouter{err: context.DeadlineExceeded}, &fakeMetrics{}, MsgTimeout, 0},
		{"other", fixedRouter{err: errors.New("boom")}, &fakeMetrics{}, MsgFailed, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAssistant(tt.router, &fakeResolver{}, tt.metrics)
			reply := a.Answer(context.Background(), "q", nil)
			assert.Equal(t, tt.want, reply.Text)
			assert.Equal(t, tt.calls, tt.metrics.calls)
			require.Len(t, reply.History, 2)
		})
	}
}

func TestHandle_EmptyResultIsNoData(t *testing.T) {
	in := domain.InitiativeSummary{InitiativeKey: "NOPE-1", Window: domain.LastDays(now, 24*time.Hour)}
	reply, err := newAssistant(fixedRouter{in: in}, &fakeResolver{}, nil).Handle(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.Contains(t, reply.Text, render.NoData)
	assert.Contains(t, reply.Text, "NOPE-1")
}

func TestHandle_ProjectMetrics(t *testing.T) {
	m := &fakeMetrics{res: domain.MetricsResult{ProjectKey: "XYZ", Sprints: []domain.SprintMetrics{{Name: "Sprint 9", State: "closed", Committed: 8, Completed: 5}}}}
	reply, err := newAssistant(fixedRouter{in: domain.ProjectMetrics{ProjectKey: "XYZ", SprintCount: 3}}, nil, m).Handle(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "Sprint 9")
	assert.Equal(t, "ok", Outcome(err))
}

func TestRetry_StopsOnCancelledContext(t *testing.T) {
	a := newAssistant(nil, nil, nil)
	a.sleep = sleepCtx
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := a.retry(ctx, "metrics", func() error { return &jira.APIError{Status: 500} })
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, jira.IsRetryable(err))
}
