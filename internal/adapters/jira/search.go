/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/HamedShams/jira-pulse/internal/domain"
)

type searchOptions struct {
	changelog bool
}

type SearchOption func(*searchOptions)

// WithChangelog expands each issue's changelog and completes it when Jira
// truncated the embedded history.
func WithChangelog() SearchOption {
	return func(o *searchOptions) { o.changelog = true }
}

// Search runs jql and yields every matching issue, fetching pages of
// pageSize on demand. A pageSize of 0 uses the configured default.
func (c *Client) Search(ctx context.Context, jql string, fields []string, pageSize int, opts ...SearchOption) iter.Seq2[domain.Issue, error] {
	var o searchOptions
	for _, opt := range opts {
		opt(&o)
	}
	if strings.TrimSpace(jql) == "" {
		return func(yield func(domain.Issue, error) bool) {
			yield(domain.Issue{}, errors.New("jira: empty jql"))
		}
	}
	if pageSize <= 0 {
		pageSize = c.pageSize
	}
	fl := c.fieldList(fields)
	fetch := func(ctx context.Context, startAt, max int) (page[domain.Issue], error) {
		var out searchResponse
		if err := c.searchPage(ctx, jql, fl, o.changelog, startAt, max, &out); err != nil {
			return page[domain.Issue]{}, err
		}
		issues, err := c.convert(ctx, out.Issues, o.changelog)
		if err != nil {
			return page[domain.Issue]{}, err
		}
		return page[domain.Issue]{Items: issues, MaxResults: out.MaxResults, Total: totalOf(out.Total)}, nil
	}
	return paginate(ctx, pageSize, fetch)
}

func (c *Client) searchPage(ctx context.Context, jql string, fields []string, changelog bool, startAt, max int, out *searchResponse) error {
	if c.apiVer == "2" {
		q := url.Values{}
		q.Set("jql", jql)
		q.Set("startAt", strconv.Itoa(startAt))
		q.Set("maxResults", strconv.Itoa(max))
		q.Set("fields", strings.Join(fields, ","))
		if changelog {
			q.Set("expand", "changelog")
		}
		return c.get(ctx, "search", c.apiPath("search"), q, out)
	}
	body := searchRequest{JQL: jql, StartAt: startAt, MaxResults: max, Fields: fields}
	if changelog {
		body.Expand = []string{"changelog"}
	}
	return c.do(ctx, "search", http.MethodPost, c.apiPath("search"), nil, body, out)
}

func (c *Client) convert(ctx context.Context, in []wireIssue, changelog bool) ([]domain.Issue, error) {
	out := make([]domain.Issue, 0, len(in))
	for _, w := range in {
		is, err := w.toDomain(c.pointsField)
		if err != nil {
			return nil, fmt.Errorf("jira: decode %s: %w", w.Key, err)
		}
		if is.PointsInvalid {
			c.log.Warn().Str("issue", is.Key).Str("field", c.pointsField).Msg("story points value is not numeric; treated as missing")
		}
		if changelog {
			if is.Changelog, err = c.completeChangelog(ctx, w); err != nil {
				return nil, err
			}
		}
		out = append(out, is)
	}
	return out, nil
}

// Issue fetches one issue with its full changelog.
func (c *Client) Issue(ctx context.Context, key string) (domain.Issue, error) {
	if key == "" {
		return domain.Issue{}, errors.New("jira: empty issue key")
	}
	q := url.Values{}
	q.Set("fields", strings.Join(c.fieldList(nil), ","))
	q.Set("expand", "changelog")
	var w wireIssue
	if err := c.get(ctx, "issue", c.apiPath("issue/"+url.PathEscape(key)), q, &w); err != nil {
		return domain.Issue{}, err
	}
	is, err := w.toDomain(c.pointsField)
	if err != nil {
		return domain.Issue{}, fmt.Errorf("jira: decode %s: %w", key, err)
	}
	if is.Changelog, err = c.completeChangelog(ctx, w); err != nil {
		return domain.Issue{}, err
	}
	return is, nil
}

// completeChangelog returns the embedded history when complete, otherwise
// pages through /issue/{key}/changelog. Deployments without that endpoint
// keep the embedded part.
func (c *Client) completeChangelog(ctx context.Context, w wireIssue) ([]domain.ChangelogEntry, error) {
	embedded := []wireHistory(nil)
	if w.Changelog != nil {
		embedded = w.Changelog.Histories
		if w.Changelog.Total <= len(embedded) {
			return historiesToEntries(embedded), nil
		}
	}
	all, err := Collect(c.Changelog(ctx, w.Key, 0))
	if err != nil {
		if s := StatusOf(err); s == http.StatusNotFound || s == http.StatusMethodNotAllowed {
			c.log.Warn().Str("issue", w.Key).Int("embedded", len(embedded)).Msg("changelog endpoint unavailable; using embedded history")
			return historiesToEntries(embedded), nil
		}
		return nil, err
	}
	return all, nil
}

// Changelog yields every change entry of an issue, oldest history first.
func (c *Client) Changelog(ctx context.Context, key string, pageSize int) iter.Seq2[domain.ChangelogEntry, error] {
	if pageSize <= 0 {
		pageSize = c.pageSize
	}
	path := c.apiPath("issue/" + url.PathEscape(key) + "/changelog")
	fetch := func(ctx context.Context, startAt, max int) (page[wireHistory], error) {
		q := url.Values{}
		q.Set("startAt", strconv.Itoa(startAt))
		q.Set("maxResults", strconv.Itoa(max))
		var out changelogPage
		if err := c.get(ctx, "changelog", path, q, &out); err != nil {
			return page[wireHistory]{}, err
		}
		return page[wireHistory]{Items: out.Values, MaxResults: out.MaxResults, Total: totalOf(out.Total), IsLast: out.IsLast}, nil
	}
	histories := paginate(ctx, pageSize, fetch)
	return func(yield func(domain.ChangelogEntry, error) bool) {
		var batch []wireHistory
		for h, err := range histories {
			if err != nil {
				yield(domain.ChangelogEntry{}, err)
				return
			}
			batch = append(batch, h)
		}
		for _, e := range historiesToEntries(batch) {
			if !yield(e, nil) {
				return
			}
		}
	}
}
