/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/HamedShams/jira-pulse/internal/config"
	"github.com/HamedShams/jira-pulse/internal/telemetry"
	jiralib "github.com/andygrunwald/go-jira"
	"github.com/rs/zerolog"
)

const (
	defaultPageSize = 100
	maxErrorBody    = 64 << 10
)

// Client is safe for concurrent use; it holds no per-request state.
type Client struct {
	api         *jiralib.Client
	apiVer      string
	pointsField string
	fields      []string
	pageSize    int
	log         zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) (*Client, error) {
	if cfg.JiraBaseURL == "" {
		return nil, errors.New("jira: empty baseURL")
	}
	base := http.DefaultTransport
	var hc *http.Client
	switch {
	case cfg.JiraPAT != "":
		tp := jiralib.PATAuthTransport{Token: cfg.JiraPAT, Transport: meteredTransport{next: base}}
		hc = tp.Client()
	default:
		tp := jiralib.BasicAuthTransport{Username: cfg.JiraEmail, Password: cfg.JiraAPIToken, Transport: meteredTransport{next: base}}
		hc = tp.Client()
	}
	hc.Timeout = cfg.HTTPTimeout
	if hc.Timeout <= 0 {
		hc.Timeout = 15 * time.Second
	}
	api, err := jiralib.NewClient(hc, cfg.JiraBaseURL)
	if err != nil {
		return nil, fmt.Errorf("jira: %w", err)
	}
	apiVer := cfg.JiraAPIVersion
	if apiVer != "3" {
		apiVer = "2"
	}
	pageSize := cfg.JiraPageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Client{
		api:         api,
		apiVer:      apiVer,
		pointsField: cfg.StoryPointsField,
		fields:      config.WithStoryPoints(cfg.JiraFields, cfg.StoryPointsField),
		pageSize:    pageSize,
		log:         log.With().Str("component", "jira").Logger(),
	}, nil
}

// PageSize is the configured default page size.
func (c *Client) PageSize() int { return c.pageSize }

// Fields is the configured default field list, story points included.
func (c *Client) Fields() []string { return append([]string(nil), c.fields...) }

func (c *Client) apiPath(p string) string {
	return "rest/api/" + c.apiVer + "/" + strings.TrimPrefix(p, "/")
}

func agilePath(p string) string {
	return "rest/agile/1.0/" + strings.TrimPrefix(p, "/")
}

// fieldList merges the caller's fields with the ones every typed issue needs
// and the story points field.
func (c *Client) fieldList(fields []string) []string {
	if len(fields) == 0 {
		fields = c.fields
	}
	need := []string{"summary", "status", "issuetype", "updated", "parent"}
	return config.WithStoryPoints(append(append([]string(nil), fields...), need...), c.pointsField)
}

func (c *Client) get(ctx context.Context, op, path string, q url.Values, out any) error {
	return c.do(ctx, op, http.MethodGet, path, q, nil, out)
}

func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, body, out any) error {
	u := path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := c.api.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("jira %s: build request: %w", op, err)
	}
	resp, err := c.api.Do(req, out)
	if err == nil {
		return nil
	}
	if resp != nil && resp.Response != nil && resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		c.log.Warn().Str("op", op).Int("status", apiErr.Status).Msg("jira request rejected")
		return apiErr
	}
	return fmt.Errorf("jira %s: %w", op, err)
}

// meteredTransport counts every round trip by status class.
type meteredTransport struct {
	next http.RoundTripper
}

func (t meteredTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	telemetry.RecordJiraRequest(req.Context(), opFromPath(req.URL.Path), status)
	return resp, err
}

func opFromPath(p string) string {
	switch {
	case strings.HasSuffix(p, "/search"):
		return "search"
	case strings.HasSuffix(p, "/changelog"):
		return "changelog"
	case strings.Contains(p, "/sprint/") && strings.HasSuffix(p, "/issue"):
		return "sprint_issues"
	case strings.HasSuffix(p, "/sprint"):
		return "sprints"
	case strings.HasSuffix(p, "/board"):
		return "boards"
	case strings.Contains(p, "/issue/"):
		return "issue"
	default:
		return "other"
	}
}
