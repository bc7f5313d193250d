package intent

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/HamedShams/jira-pulse/internal/domain"
	"github.com/HamedShams/jira-pulse/internal/llm"
	"github.com/HamedShams/jira-pulse/internal/render"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFormatter struct {
	reply string
	err   error
	got   []llm.Prompt
}

func (s *stubFormatter) Format(_ context.Context, p llm.Prompt) (string, error) {
	s.got = append(s.got, p)
	return s.reply, s.err
}

func summary(n int) domain.SummaryResult {
	res := domain.SummaryResult{InitiativeKey: "PROG-123", Window: domain.LastDays(now, 14*day), EpicCount: 1, IssueCount: n}
	for i := range n {
		res.Issues = append(res.Issues, domain.IssueChanges{
			Key:         "PROG-" + strconv.Itoa(200+i),
			Link:        "https://acme.atlassian.net/browse/PROG-" + strconv.Itoa(200+i),
			Summary:     strings.Repeat("word ", 20),
			Transitions: []domain.Transition{{From: "To Do", To: "In Progress", At: now.Add(-time.Hour)}},
		})
	}
	return res
}

func TestBridge_UsesModelOutput(t *testing.T) {
	m := &stubFormatter{reply: "  *PROG-123*: [PROG-200](https://acme.atlassian.net/browse/PROG-200) started  "}
	b := NewBridge(m, nil, 0, zerolog.Nop())
	hist := make(domain.Conversation, 10)

	out := b.Format(context.Background(), summary(1), "what changed", hist)
	assert.Equal(t, "*PROG-123*: [PROG-200](https://acme.atlassian.net/browse/PROG-200) started", out)
	require.Len(t, m.got, 1)
	assert.Len(t, m.got[0].History, historyTurns)
	assert.Contains(t, m.got[0].User, `"initiative":"PROG-123"`)
}

func TestBridge_RejectsForeignKeys(t *testing.T) {
	m := &stubFormatter{reply: "PROG-200 and PROG-999 moved"}
	out := NewBridge(m, nil, 0, zerolog.Nop()).Format(context.Background(), summary(1), "x", nil)
	assert.Equal(t, render.Plain(summary(1)), out)
}

func TestBridge_RejectsChangedNumbers(t *testing.T) {
	res := domain.MetricsResult{ProjectKey: "XYZ", Sprints: []domain.SprintMetrics{
		{Name: "Sprint 4", State: "closed", Committed: 8, Completed: 5, Velocity: 5, ChurnRate: 37.5},
		{Name: "Sprint 3", State: "closed", Committed: 10, Completed: 10, Velocity: 10},
	}}

	m := &stubFormatter{reply: "*XYZ*: Sprint 4 velocity 9.0, churn 37.5%"}
	out := NewBridge(m, nil, 0, zerolog.Nop()).Format(context.Background(), res, "metrics for XYZ last 2 sprints", nil)
	assert.Equal(t, render.Plain(res), out)

	// totals come from the rendered result
	m = &stubFormatter{reply: "*XYZ* (last 2 sprints): 15 of 18 points, Sprint 4 churn 37.50%, velocity 5.0"}
	out = NewBridge(m, nil, 0, zerolog.Nop()).Format(context.Background(), res, "metrics for XYZ last 2 sprints", nil)
	assert.Equal(t, m.reply, out)
}

func TestForeignNumbers(t *testing.T) {
	assert.Empty(t, foreignNumbers("[PROG-7](https://x.atlassian.net/browse/PROG-7) 03 → 3", "3"))
	assert.Equal(t, []string{"42"}, foreignNumbers("moved 42 times, 42 again", "1 2 3"))
	assert.Empty(t, foreignNumbers("0.0 and 00", "0"))
}

func TestBridge_FallsBackWhenModelsFail(t *testing.T) {
	m := &stubFormatter{err: &llm.ProviderError{Op: "format"}}
	res := domain.MetricsResult{ProjectKey: "XYZ", Sprints: []domain.SprintMetrics{{Name: "S1", State: "closed", Committed: 3}}}
	out := NewBridge(m, nil, 0, zerolog.Nop()).Format(context.Background(), res, "metrics for XYZ", nil)
	assert.NotEmpty(t, out)
	assert.Equal(t, render.Plain(res), out)
}

func TestBridge_EmptyResultSkipsModel(t *testing.T) {
	m := &stubFormatter{reply: "should not be used"}
	out := NewBridge(m, nil, 0, zerolog.Nop()).Format(context.Background(), summary(0), "x", nil)
	assert.Contains(t, out, render.NoData)
	assert.Empty(t, m.got)
}

func TestBridge_TruncatesToBudget(t *testing.T) {
	m := &stubFormatter{reply: "ok"}
	b := NewBridge(m, llm.EstimateCounter{}, 400, zerolog.Nop())
	out := b.Format(context.Background(), summary(20), "x", nil)
	assert.Equal(t, "ok", out)
	require.Len(t, m.got, 1)
	assert.Contains(t, m.got[0].User, `"omitted_issues"`)
}
