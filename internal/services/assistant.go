/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/HamedShams/jira-pulse/internal/adapters/jira"
	"github.com/HamedShams/jira-pulse/internal/changes"
	"github.com/HamedShams/jira-pulse/internal/domain"
	"github.com/HamedShams/jira-pulse/internal/hierarchy"
	"github.com/HamedShams/jira-pulse/internal/intent"
	"github.com/HamedShams/jira-pulse/internal/telemetry"
	"github.com/rs/zerolog"
)

type Interpreter interface {
	Interpret(ctx context.Context, text string, history domain.Conversation) (domain.Intent, error)
}

type Formatter interface {
	Format(ctx context.Context, res domain.Result, text string, history domain.Conversation) string
}

type HierarchyResolver interface {
	Resolve(ctx context.Context, initiativeKey string, opts ...hierarchy.Option) (domain.Hierarchy, error)
}

type MetricsComputer interface {
	Compute(ctx context.Context, projectKey string, sprintCount int) (domain.MetricsResult, error)
}

// Reply is the answer to one message plus the conversation including it.
type Reply struct {
	Text    string
	History domain.Conversation
}

const (
	jiraAttempts = 3
	backoffBase  = 300 * time.Millisecond
)

// Assistant runs one request end to end: interpret, fetch, aggregate and
// format. It holds no per-request state and is safe for concurrent use.
type Assistant struct {
	router    Interpreter
	format    Formatter
	hierarchy HierarchyResolver
	metrics   MetricsComputer
	link      changes.LinkFunc
	log       zerolog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewAssistant(router Interpreter, format Formatter, h HierarchyResolver, m MetricsComputer, link changes.LinkFunc, log zerolog.Logger) *Assistant {
	return &Assistant{
		router:    router,
		format:    format,
		hierarchy: h,
		metrics:   m,
		link:      link,
		log:       log.With().Str("component", "assistant").Logger(),
		sleep:     sleepCtx,
	}
}

// Handle answers text in the context of history. Errors are typed; use
// Answer for a reply that always carries text.
func (a *Assistant) Handle(ctx context.Context, text string, history domain.Conversation) (Reply, error) {
	start := time.Now()
	kind := "unknown"
	in, err := a.router.Interpret(ctx, text, history)
	if err != nil {
		a.record(ctx, kind, err, start)
		return Reply{History: history}, err
	}
	kind = string(in.Kind())
	res, err := a.dispatch(ctx, in)
	if err != nil {
		a.record(ctx, kind, err, start)
		return Reply{History: history}, err
	}
	out := a.format.Format(ctx, res, text, history)
	a.record(ctx, kind, nil, start)
	return Reply{Text: out, History: withTurn(history, text, out)}, nil
}

// Answer is Handle with failures turned into a user-facing message.
func (a *Assistant) Answer(ctx context.Context, text string, history domain.Conversation) Reply {
	r, err := a.Handle(ctx, text, history)
	if err == nil {
		return r
	}
	a.log.Warn().Err(err).Msg("request failed")
	msg := Explain(err)
	return Reply{Text: msg, History: withTurn(history, text, msg)}
}

func (a *Assistant) dispatch(ctx context.Context, in domain.Intent) (domain.Result, error) {
	switch v := in.(type) {
	case domain.ProjectMetrics:
		a.log.Info().Str("project", v.ProjectKey).Int("sprints", v.SprintCount).Msg("project metrics")
		var res domain.MetricsResult
		err := a.retry(ctx, "metrics", func() error {
			var err error
			res, err = a.metrics.Compute(ctx, v.ProjectKey, v.SprintCount)
			return err
		})
		return res, err
	case domain.InitiativeSummary:
		a.log.Info().Str("initiative", v.InitiativeKey).Stringer("window", v.Window).Str("status", v.StatusFilter).Msg("initiative summary")
		var h domain.Hierarchy
		err := a.retry(ctx, "hierarchy", func() error {
			var err error
			h, err = a.hierarchy.Resolve(ctx, v.InitiativeKey, hierarchy.WithChangelog(), hierarchy.WithUpdatedSince(v.Window.Start))
			return err
		})
		if err != nil {
			return nil, err
		}
		if h.Initiative == "" {
			h.Initiative = v.InitiativeKey
		}
		return changes.Summarize(h, v.Window, v.StatusFilter, a.link), nil
	}
	return nil, &intent.ParseError{Reason: fmt.Sprintf("unsupported intent %T", in)}
}

// retry repeats fn on retryable Jira errors with exponential backoff.
func (a *Assistant) retry(ctx context.Context, stage string, fn func() error) error {
	var err error
	for attempt := 0; attempt < jiraAttempts; attempt++ {
		if err = fn(); err == nil || !jira.IsRetryable(err) {
			return err
		}
		if attempt == jiraAttempts-1 {
			break
		}
		d := backoffBase * time.Duration(1<<attempt)
		a.log.Warn().Err(err).Str("stage", stage).Int("attempt", attempt+1).Dur("backoff", d).Msg("jira unavailable; retrying")
		if serr := a.sleep(ctx, d); serr != nil {
			return errors.Join(err, serr)
		}
	}
	return fmt.Errorf("%s: %w", stage, &ExhaustedError{Attempts: jiraAttempts, Err: err})
}

func (a *Assistant) record(ctx context.Context, kind string, err error, start time.Time) {
	telemetry.RecordPipeline(ctx, kind, Outcome(err), time.Since(start))
}

func withTurn(h domain.Conversation, user, assistant string) domain.Conversation {
	return h.Append(
		domain.Turn{Role: domain.RoleUser, Content: user},
		domain.Turn{Role: domain.RoleAssistant, Content: assistant},
	)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
