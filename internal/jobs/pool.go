/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/HamedShams/jira-pulse/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrQueueFull = errors.New("jobs: queue full")
	ErrClosed    = errors.New("jobs: pool stopped")
)

const deliverTimeout = 15 * time.Second

// Task is one unit of background work. Deliver is always called exactly
// once: with Run's result, or with an error on failure, panic or deadline.
type Task struct {
	Run     func(ctx context.Context) (string, error)
	Deliver func(ctx context.Context, text string, err error)
}

type queued struct {
	id string
	Task
}

type result struct {
	text string
	err  error
}

// Pool runs tasks on a fixed set of workers fed by a bounded queue.
type Pool struct {
	workers int
	timeout time.Duration
	jobs    chan queued
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	log     zerolog.Logger
}

func NewPool(workers, queueSize int, timeout time.Duration, log zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Pool{workers: workers, timeout: timeout, jobs: make(chan queued, queueSize), log: log.With().Str("component", "pool").Logger()}
}

func (p *Pool) Start() {
	for w := 0; w < p.workers; w++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for q := range p.jobs {
				p.run(q)
			}
		}()
	}
}

// Submit queues t without blocking and returns its id.
func (p *Pool) Submit(t Task) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return "", ErrClosed
	}
	q := queued{id: uuid.NewString(), Task: t}
	select {
	case p.jobs <- q:
		return q.id, nil
	default:
		telemetry.RecordTask(context.Background(), "rejected")
		return "", ErrQueueFull
	}
}

// Stop lets queued tasks finish and waits for the workers.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) run(q queued) {
	log := p.log.With().Str("task", q.id).Logger()
	ctx := log.WithContext(context.Background())
	cancel := context.CancelFunc(func() {})
	if p.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
	}
	defer cancel()

	done := make(chan result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- result{err: fmt.Errorf("task panic: %v", rec)}
			}
		}()
		text, err := q.Run(ctx)
		done <- result{text: text, err: err}
	}()

	var r result
	select {
	case r = <-done:
	case <-ctx.Done():
		r = result{err: ctx.Err()}
	}
	outcome := "ok"
	if r.err != nil {
		outcome = "error"
		if errors.Is(r.err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		log.Error().Err(r.err).Msg("task failed")
	}
	telemetry.RecordTask(ctx, outcome)
	p.deliver(q, r, log)
}

func (p *Pool) deliver(q queued, r result, log zerolog.Logger) {
	if q.Deliver == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("deliver panic")
		}
	}()
	q.Deliver(ctx, r.text, r.err)
}
