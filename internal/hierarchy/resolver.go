/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package hierarchy

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/HamedShams/jira-pulse/internal/adapters/jira"
	"github.com/HamedShams/jira-pulse/internal/config"
	"github.com/HamedShams/jira-pulse/internal/domain"
	"github.com/rs/zerolog"
)

var keyRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]+-[0-9]+$`)

// ValidKey reports whether key looks like a Jira issue key.
func ValidKey(key string) bool { return keyRe.MatchString(key) }

type Searcher interface {
	Search(ctx context.Context, jql string, fields []string, pageSize int, opts ...jira.SearchOption) iter.Seq2[domain.Issue, error]
}

type Resolver struct {
	jira     Searcher
	log      zerolog.Logger
	workers  int
	pageSize int
	fields   []string
	epicJQL  string
	issueJQL string
}

func New(cfg config.Config, js Searcher, log zerolog.Logger) *Resolver {
	r := &Resolver{
		jira:     js,
		log:      log.With().Str("component", "hierarchy").Logger(),
		workers:  cfg.WorkersJira,
		pageSize: cfg.JiraPageSize,
		fields:   cfg.JiraFields,
		epicJQL:  cfg.EpicJQL,
		issueJQL: cfg.EpicIssueJQL,
	}
	if r.workers <= 0 {
		r.workers = 6
	}
	if !strings.Contains(r.epicJQL, "%s") {
		r.epicJQL = `"Parent Link" = %s ORDER BY key ASC`
	}
	if !strings.Contains(r.issueJQL, "%s") {
		r.issueJQL = `"Epic Link" = %s ORDER BY key ASC`
	}
	return r
}

type options struct {
	updatedSince time.Time
	changelog    bool
}

type Option func(*options)

// WithUpdatedSince limits epic issues to those updated on or after t.
func WithUpdatedSince(t time.Time) Option {
	return func(o *options) { o.updatedSince = t }
}

// WithChangelog fetches complete changelogs for epic issues.
func WithChangelog() Option {
	return func(o *options) { o.changelog = true }
}

// Resolve collects the epics under an initiative and the issues of every
// epic. Malformed or unknown initiative keys give an empty hierarchy.
func (r *Resolver) Resolve(ctx context.Context, initiativeKey string, opts ...Option) (domain.Hierarchy, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	key := strings.ToUpper(strings.TrimSpace(initiativeKey))
	h := domain.Hierarchy{Initiative: key}
	if !ValidKey(key) {
		r.log.Info().Str("initiative", initiativeKey).Msg("malformed initiative key; empty hierarchy")
		return h, nil
	}

	var epics []domain.Epic
	for is, err := range r.jira.Search(ctx, fmt.Sprintf(r.epicJQL, key), r.fields, r.pageSize) {
		if err != nil {
			if missingInitiative(err) {
				r.log.Info().Str("initiative", key).Err(err).Msg("initiative not resolvable; empty hierarchy")
				return h, nil
			}
			return domain.Hierarchy{}, fmt.Errorf("resolve epics of %s: %w", key, err)
		}
		if is.ParentKey == "" {
			is.ParentKey = key
		}
		epics = append(epics, domain.Epic{Issue: is})
	}
	if len(epics) == 0 {
		return h, nil
	}

	if err := r.fillEpics(ctx, epics, o); err != nil {
		return domain.Hierarchy{}, err
	}
	h.Epics = epics
	r.log.Debug().Str("initiative", key).Int("epics", len(epics)).Int("issues", h.IssueCount()).Msg("hierarchy resolved")
	return h, nil
}

// fillEpics fetches each epic's issues on a bounded worker pool. Results land
// in the epic's own slot, so epic order is kept.
func (r *Resolver) fillEpics(ctx context.Context, epics []domain.Epic, o options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var searchOpts []jira.SearchOption
	if o.changelog {
		searchOpts = append(searchOpts, jira.WithChangelog())
	}

	jobs := make(chan int)
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	workerCount := min(r.workers, len(epics))
	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				issues, err := r.epicIssues(ctx, epics[i].Key, o, searchOpts)
				if err != nil {
					errOnce.Do(func() {
						firstErr = err
						cancel()
					})
					continue
				}
				epics[i].Issues = issues
			}
		}()
	}
feed:
	for i := range epics {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

func (r *Resolver) epicIssues(ctx context.Context, epicKey string, o options, searchOpts []jira.SearchOption) ([]domain.Issue, error) {
	jql := r.issueQuery(epicKey, o)
	var out []domain.Issue
	for is, err := range r.jira.Search(ctx, jql, r.fields, r.pageSize, searchOpts...) {
		if err != nil {
			return nil, fmt.Errorf("resolve issues of %s: %w", epicKey, err)
		}
		if is.ParentKey == "" {
			is.ParentKey = epicKey
		}
		out = append(out, is)
	}
	return out, nil
}

// issueQuery narrows the epic template with an updated filter placed before
// any ORDER BY clause. Jira reads the date in its user's timezone, so the
// bound is the UTC day before since.
func (r *Resolver) issueQuery(epicKey string, o options) string {
	jql := fmt.Sprintf(r.issueJQL, epicKey)
	if o.updatedSince.IsZero() {
		return jql
	}
	bound := o.updatedSince.UTC().AddDate(0, 0, -1)
	cond := fmt.Sprintf(`updated >= "%s"`, bound.Format("2006-01-02"))
	lower := strings.ToLower(jql)
	if idx := strings.LastIndex(lower, " order by "); idx >= 0 {
		return "(" + jql[:idx] + ") AND " + cond + jql[idx:]
	}
	return "(" + jql + ") AND " + cond
}

// missingInitiative reports Jira's answer to a JQL naming an unknown issue.
func missingInitiative(err error) bool {
	s := jira.StatusOf(err)
	return s == http.StatusBadRequest || s == http.StatusNotFound
}
