/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/HamedShams/jira-pulse/internal/config"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Reporter produces and posts the scheduled report.
type Reporter interface{ Run(ctx context.Context) error }

// Sweeper drops expired in-memory state.
type Sweeper interface{ Sweep() int }

type Cron struct {
	cfg      config.Config
	log      zerolog.Logger
	rep      Reporter
	sweepers []Sweeper
	c        *cron.Cron
}

// NewCron schedules the report (when REPORT_CRON and a reporter are set) and
// the session sweep.
func NewCron(cfg config.Config, log zerolog.Logger, rep Reporter, sweepers ...Sweeper) (*Cron, error) {
	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		return nil, fmt.Errorf("cron: timezone %q: %w", cfg.TZ, err)
	}
	c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
	cr := &Cron{cfg: cfg, log: log.With().Str("component", "cron").Logger(), rep: rep, sweepers: sweepers, c: c}
	if cfg.ReportCron != "" && rep != nil {
		if _, err := c.AddFunc(cfg.ReportCron, cr.report); err != nil {
			return nil, fmt.Errorf("cron: REPORT_CRON %q: %w", cfg.ReportCron, err)
		}
	}
	if cfg.SweepCron != "" && len(sweepers) > 0 {
		if _, err := c.AddFunc(cfg.SweepCron, cr.sweep); err != nil {
			return nil, fmt.Errorf("cron: SWEEP_CRON %q: %w", cfg.SweepCron, err)
		}
	}
	return cr, nil
}

func (cr *Cron) Start() { cr.c.Start() }

// Stop waits for running jobs.
func (cr *Cron) Stop() { <-cr.c.Stop().Done() }

func (cr *Cron) Entries() int { return len(cr.c.Entries()) }

func (cr *Cron) report() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	cr.log.Info().Str("query", cr.cfg.ReportQuery).Msg("cron: scheduled report")
	if err := cr.rep.Run(ctx); err != nil {
		cr.log.Error().Err(err).Msg("cron: report failed")
	}
}

func (cr *Cron) sweep() {
	n := 0
	for _, s := range cr.sweepers {
		n += s.Sweep()
	}
	if n > 0 {
		cr.log.Debug().Int("removed", n).Msg("cron: swept expired sessions")
	}
}
