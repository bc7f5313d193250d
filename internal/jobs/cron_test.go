package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/HamedShams/jira-pulse/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReporter struct {
	runs int
	err  error
}

func (r *countingReporter) Run(ctx context.Context) error {
	r.runs++
	_, ok := ctx.Deadline()
	if !ok {
		return errors.New("no deadline")
	}
	return r.err
}

type countingSweeper struct{ n int }

func (s *countingSweeper) Sweep() int { s.n++; return 1 }

func TestNewCron_SchedulesConfiguredJobs(t *testing.T) {
	cfg := config.Config{TZ: "UTC", ReportCron: "0 9 * * 1", ReportQuery: "metrics for XYZ", SweepCron: "*/10 * * * *"}
	rep := &countingReporter{}
	sw := &countingSweeper{}
	cr, err := NewCron(cfg, zerolog.Nop(), rep, sw)
	require.NoError(t, err)
	assert.Equal(t, 2, cr.Entries())

	cr.report()
	cr.sweep()
	assert.Equal(t, 1, rep.runs)
	assert.Equal(t, 1, sw.n)

	cr.Start()
	cr.Stop()
}

func TestNewCron_SkipsUnconfiguredReport(t *testing.T) {
	cr, err := NewCron(config.Config{SweepCron: "*/10 * * * *"}, zerolog.Nop(), nil, &countingSweeper{})
	require.NoError(t, err)
	assert.Equal(t, 1, cr.Entries())
}

func TestNewCron_RejectsBadSpec(t *testing.T) {
	_, err := NewCron(config.Config{ReportCron: "every monday"}, zerolog.Nop(), &countingReporter{})
	assert.ErrorContains(t, err, "REPORT_CRON")

	_, err = NewCron(config.Config{TZ: "Mars/Olympus"}, zerolog.Nop(), nil)
	assert.ErrorContains(t, err, "timezone")
}
