/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/HamedShams/jira-pulse/internal/domain"
)

const agilePageSize = 50

// Boards lists the Jira Software boards of a project.
func (c *Client) Boards(ctx context.Context, projectKey string) ([]domain.Board, error) {
	if strings.TrimSpace(projectKey) == "" {
		return nil, errors.New("jira: empty project key")
	}
	fetch := func(ctx context.Context, startAt, max int) (page[domain.Board], error) {
		q := url.Values{}
		q.Set("projectKeyOrId", projectKey)
		q.Set("startAt", strconv.Itoa(startAt))
		q.Set("maxResults", strconv.Itoa(max))
		var out boardPage
		if err := c.get(ctx, "boards", agilePath("board"), q, &out); err != nil {
			return page[domain.Board]{}, err
		}
		items := make([]domain.Board, 0, len(out.Values))
		for _, b := range out.Values {
			items = append(items, b.toDomain())
		}
		return page[domain.Board]{Items: items, MaxResults: out.MaxResults, Total: totalOf(out.Total), IsLast: out.IsLast}, nil
	}
	return Collect(paginate(ctx, agilePageSize, fetch))
}

// Sprints lists a board's sprints in the given states (all when none given).
func (c *Client) Sprints(ctx context.Context, boardID int, states ...string) ([]domain.Sprint, error) {
	if boardID <= 0 {
		return nil, errors.New("jira: invalid board id")
	}
	path := agilePath("board/" + strconv.Itoa(boardID) + "/sprint")
	fetch := func(ctx context.Context, startAt, max int) (page[domain.Sprint], error) {
		q := url.Values{}
		if len(states) > 0 {
			q.Set("state", strings.Join(states, ","))
		}
		q.Set("startAt", strconv.Itoa(startAt))
		q.Set("maxResults", strconv.Itoa(max))
		var out sprintPage
		if err := c.get(ctx, "sprints", path, q, &out); err != nil {
			return page[domain.Sprint]{}, err
		}
		items := make([]domain.Sprint, 0, len(out.Values))
		for _, s := range out.Values {
			items = append(items, s.toDomain())
		}
		return page[domain.Sprint]{Items: items, MaxResults: out.MaxResults, Total: totalOf(out.Total), IsLast: out.IsLast}, nil
	}
	return Collect(paginate(ctx, agilePageSize, fetch))
}

// RecentSprints returns up to n sprints, most recent first: active sprints,
// then closed sprints by end date descending.
func (c *Client) RecentSprints(ctx context.Context, boardID, n int) ([]domain.Sprint, error) {
	all, err := c.Sprints(ctx, boardID, "active", "closed")
	if err != nil {
		return nil, err
	}
	OrderRecentFirst(all)
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	return all, nil
}

// OrderRecentFirst sorts active sprints before closed ones; within a state
// the later end date comes first.
func OrderRecentFirst(sprints []domain.Sprint) {
	end := func(s domain.Sprint) int64 {
		if !s.End.IsZero() {
			return s.End.Unix()
		}
		return s.Completed.Unix()
	}
	sort.SliceStable(sprints, func(i, j int) bool {
		ai, aj := sprints[i].State == "active", sprints[j].State == "active"
		if ai != aj {
			return ai
		}
		return end(sprints[i]) > end(sprints[j])
	})
}

// IssuesForSprint returns every issue of a sprint.
func (c *Client) IssuesForSprint(ctx context.Context, boardID, sprintID int) ([]domain.Issue, error) {
	if boardID <= 0 || sprintID <= 0 {
		return nil, errors.New("jira: invalid board or sprint id")
	}
	path := agilePath("board/" + strconv.Itoa(boardID) + "/sprint/" + strconv.Itoa(sprintID) + "/issue")
	fields := strings.Join(c.fieldList(nil), ",")
	fetch := func(ctx context.Context, startAt, max int) (page[domain.Issue], error) {
		q := url.Values{}
		q.Set("fields", fields)
		q.Set("startAt", strconv.Itoa(startAt))
		q.Set("maxResults", strconv.Itoa(max))
		var out searchResponse
		if err := c.get(ctx, "sprint_issues", path, q, &out); err != nil {
			return page[domain.Issue]{}, err
		}
		issues, err := c.convert(ctx, out.Issues, false)
		if err != nil {
			return page[domain.Issue]{}, err
		}
		return page[domain.Issue]{Items: issues, MaxResults: out.MaxResults, Total: totalOf(out.Total)}, nil
	}
	return Collect(paginate(ctx, c.pageSize, fetch))
}

// SprintIssues returns the issues of the sprint at sprintOffset in the
// board's most-recent-first sprint list. An offset past the last sprint
// yields no issues.
func (c *Client) SprintIssues(ctx context.Context, boardID, sprintOffset int) ([]domain.Issue, error) {
	if sprintOffset < 0 {
		return nil, errors.New("jira: negative sprint offset")
	}
	sprints, err := c.RecentSprints(ctx, boardID, sprintOffset+1)
	if err != nil {
		return nil, err
	}
	if sprintOffset >= len(sprints) {
		return nil, nil
	}
	return c.IssuesForSprint(ctx, boardID, sprints[sprintOffset].ID)
}
