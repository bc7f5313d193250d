/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package telemetry

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

var (
	mu               sync.Mutex
	pipelineRuns     metric.Int64Counter
	pipelineDuration metric.Float64Histogram
	jiraRequests     metric.Int64Counter
	llmAttempts      metric.Int64Counter
	tasksCounter     metric.Int64Counter
)

// InitMetrics (re)creates the instruments on the current global meter.
// Recording before InitMetrics is a no-op.
func InitMetrics() error {
	m := Meter()
	runs, err1 := m.Int64Counter("jirapulse_pipeline_runs_total", metric.WithDescription("Assistant requests by intent and outcome"))
	dur, err2 := m.Float64Histogram("jirapulse_pipeline_duration_seconds", metric.WithDescription("End-to-end assistant request duration"), metric.WithUnit("s"))
	jira, err3 := m.Int64Counter("jirapulse_jira_requests_total", metric.WithDescription("Jira REST calls by status class"))
	llm, err4 := m.Int64Counter("jirapulse_llm_attempts_total", metric.WithDescription("Model calls by backend, model and outcome"))
	tasks, err5 := m.Int64Counter("jirapulse_tasks_total", metric.WithDescription("Background tasks by outcome"))
	if err := errors.Join(err1, err2, err3, err4, err5); err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	pipelineRuns, pipelineDuration, jiraRequests, llmAttempts, tasksCounter = runs, dur, jira, llm, tasks
	return nil
}

func RecordPipeline(ctx context.Context, intent, outcome string, d time.Duration) {
	mu.Lock()
	runs, dur := pipelineRuns, pipelineDuration
	mu.Unlock()
	if runs != nil {
		runs.Add(ctx, 1, metric.WithAttributes(AttrIntent.String(intent), AttrOutcome.String(outcome)))
	}
	if dur != nil {
		dur.Record(ctx, d.Seconds(), metric.WithAttributes(AttrIntent.String(intent)))
	}
}

// RecordJiraRequest counts one Jira call; status 0 means a transport error.
func RecordJiraRequest(ctx context.Context, op string, status int) {
	mu.Lock()
	c := jiraRequests
	mu.Unlock()
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(AttrOp.String(op), AttrClass.String(StatusClass(status))))
}

func RecordLLMAttempt(ctx context.Context, backend, model, outcome string) {
	mu.Lock()
	c := llmAttempts
	mu.Unlock()
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(AttrBackend.String(backend), AttrModel.String(model), AttrOutcome.String(outcome)))
}

func RecordTask(ctx context.Context, outcome string) {
	mu.Lock()
	c := tasksCounter
	mu.Unlock()
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(AttrOutcome.String(outcome)))
}

// StatusClass buckets an HTTP status as "2xx", "4xx", ... or "error".
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
