/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HamedShams/jira-pulse/internal/telemetry"
	"github.com/rs/zerolog"
)

var ErrEmptyResponse = errors.New("llm: empty response")

// Attempt records one failed route.
type Attempt struct {
	Route string
	Err   error
}

// ProviderError means every route of the chain failed.
type ProviderError struct {
	Op       string
	Attempts []Attempt
}

func (e *ProviderError) Error() string {
	if len(e.Attempts) == 0 {
		return "llm " + e.Op + ": no model routes configured"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Route+": "+a.Err.Error())
	}
	return "llm " + e.Op + ": all routes failed: " + strings.Join(parts, "; ")
}

func (e *ProviderError) Unwrap() []error {
	out := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		out = append(out, a.Err)
	}
	return out
}

// Chain tries its routes in order until one answers. Each attempt gets its
// own timeout. The chain holds no per-request state.
type Chain struct {
	routes  []Route
	timeout time.Duration
	log     zerolog.Logger
}

func NewChain(routes []Route, timeout time.Duration, log zerolog.Logger) *Chain {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Chain{routes: routes, timeout: timeout, log: log.With().Str("component", "llm").Logger()}
}

func (c *Chain) Routes() []Route { return append([]Route(nil), c.routes...) }

// Classify returns the first successful classification.
func (c *Chain) Classify(ctx context.Context, p Prompt) (string, error) {
	return c.run(ctx, "classify", func(ctx context.Context, r Route) (string, error) {
		return r.Backend.Classify(ctx, r.Model, p)
	})
}

// Format returns the first successful rendering.
func (c *Chain) Format(ctx context.Context, p Prompt) (string, error) {
	return c.run(ctx, "format", func(ctx context.Context, r Route) (string, error) {
		return r.Backend.Format(ctx, r.Model, p)
	})
}

func (c *Chain) run(ctx context.Context, op string, call func(context.Context, Route) (string, error)) (string, error) {
	perr := &ProviderError{Op: op}
	for _, r := range c.routes {
		if err := ctx.Err(); err != nil {
			perr.Attempts = append(perr.Attempts, Attempt{Route: r.String(), Err: err})
			break
		}
		out, err := c.attempt(ctx, r, call)
		if err == nil {
			telemetry.RecordLLMAttempt(ctx, r.Backend.Name(), r.Model, "ok")
			return out, nil
		}
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		telemetry.RecordLLMAttempt(ctx, r.Backend.Name(), r.Model, outcome)
		c.log.Warn().Err(err).Str("op", op).Str("route", r.String()).Msg("model route failed; trying next")
		perr.Attempts = append(perr.Attempts, Attempt{Route: r.String(), Err: err})
	}
	return "", perr
}

func (c *Chain) attempt(ctx context.Context, r Route, call func(context.Context, Route) (string, error)) (out string, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("backend panic: %v", rec)
		}
	}()
	out, err = call(ctx, r)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}
