package services

import (
	"context"
	"errors"
	"testing"

	"github.com/HamedShams/jira-pulse/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	chat int64
	text string
}

type fakeNotifier struct {
	sent []sentMessage
	fail int64
}

func (f *fakeNotifier) SendLong(_ context.Context, chat int64, text string) error {
	if chat == f.fail {
		return errors.New("chat not found")
	}
	f.sent = append(f.sent, sentMessage{chat, text})
	return nil
}

func TestScheduledReport_PostsToEveryChat(t *testing.T) {
	m := &fakeMetrics{res: domain.MetricsResult{ProjectKey: "XYZ", Sprints: []domain.SprintMetrics{{Name: "Sprint 9", State: "active"}}}}
	a := newAssistant(fixedRouter{in: domain.ProjectMetrics{ProjectKey: "XYZ", SprintCount: 1}}, nil, m)
	tg := &fakeNotifier{fail: 3}
	err := NewScheduledReport(a, tg, "metrics for XYZ last sprint", []int64{1, 2, 3}, zerolog.Nop()).Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat 3")
	require.Len(t, tg.sent, 2)
	assert.Contains(t, tg.sent[0].text, "Sprint 9")
}

func TestScheduledReport_RequiresQuery(t *testing.T) {
	err := NewScheduledReport(nil, &fakeNotifier{}, "", []int64{1}, zerolog.Nop()).Run(context.Background())
	assert.Error(t, err)
}
