/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/HamedShams/jira-pulse/internal/domain"
)

type searchRequest struct {
	JQL        string   `json:"jql"`
	StartAt    int      `json:"startAt"`
	MaxResults int      `json:"maxResults"`
	Fields     []string `json:"fields,omitempty"`
	Expand     []string `json:"expand,omitempty"`
}

type searchResponse struct {
	StartAt    int         `json:"startAt"`
	MaxResults int         `json:"maxResults"`
	Total      *int        `json:"total"`
	Issues     []wireIssue `json:"issues"`
}

type wireIssue struct {
	Key       string          `json:"key"`
	Fields    json.RawMessage `json:"fields"`
	Changelog *wireChangelog  `json:"changelog,omitempty"`
}

type wireFields struct {
	Summary string `json:"summary"`
	Updated string `json:"updated"`
	Status  *struct {
		Name           string `json:"name"`
		StatusCategory struct {
			Key string `json:"key"`
		} `json:"statusCategory"`
	} `json:"status"`
	IssueType *struct {
		Name string `json:"name"`
	} `json:"issuetype"`
	Parent *struct {
		Key string `json:"key"`
	} `json:"parent"`
}

type wireChangelog struct {
	StartAt    int           `json:"startAt"`
	MaxResults int           `json:"maxResults"`
	Total      int           `json:"total"`
	Histories  []wireHistory `json:"histories"`
}

// changelogPage is the /issue/{key}/changelog listing.
type changelogPage struct {
	StartAt    int           `json:"startAt"`
	MaxResults int           `json:"maxResults"`
	Total      *int          `json:"total"`
	IsLast     bool          `json:"isLast"`
	Values     []wireHistory `json:"values"`
}

type wireHistory struct {
	Created string           `json:"created"`
	Items   []wireChangeItem `json:"items"`
}

type wireChangeItem struct {
	Field      string  `json:"field"`
	FromString *string `json:"fromString"`
	ToString   *string `json:"toString"`
}

type boardPage struct {
	MaxResults int         `json:"maxResults"`
	Total      *int        `json:"total"`
	IsLast     bool        `json:"isLast"`
	Values     []wireBoard `json:"values"`
}

type wireBoard struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type sprintPage struct {
	MaxResults int          `json:"maxResults"`
	Total      *int         `json:"total"`
	IsLast     bool         `json:"isLast"`
	Values     []wireSprint `json:"values"`
}

type wireSprint struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	State        string `json:"state"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	CompleteDate string `json:"completeDate"`
}

func (w wireBoard) toDomain() domain.Board {
	return domain.Board{ID: w.ID, Name: w.Name, Type: w.Type}
}

func (w wireSprint) toDomain() domain.Sprint {
	return domain.Sprint{
		ID:        w.ID,
		Name:      w.Name,
		State:     strings.ToLower(w.State),
		Start:     parseTimeUTC(w.StartDate),
		End:       parseTimeUTC(w.EndDate),
		Completed: parseTimeUTC(w.CompleteDate),
	}
}

// toDomain decodes the typed part of the payload and reads the story points
// field by id. A points value that is not numeric is flagged, not guessed.
func (w wireIssue) toDomain(pointsField string) (domain.Issue, error) {
	is := domain.Issue{Key: w.Key}
	if len(w.Fields) > 0 && string(w.Fields) != "null" {
		var f wireFields
		if err := json.Unmarshal(w.Fields, &f); err != nil {
			return domain.Issue{}, err
		}
		is.Summary = strings.TrimSpace(f.Summary)
		is.Updated = parseTimeUTC(f.Updated)
		if f.Status != nil {
			is.Status = f.Status.Name
			is.StatusCategory = strings.ToLower(f.Status.StatusCategory.Key)
		}
		if f.IssueType != nil {
			is.Type = f.IssueType.Name
		}
		if f.Parent != nil {
			is.ParentKey = f.Parent.Key
		}
		if pointsField != "" {
			var raw map[string]json.RawMessage
			if err := json.Unmarshal(w.Fields, &raw); err != nil {
				return domain.Issue{}, err
			}
			is.StoryPoints, is.PointsInvalid = parsePoints(raw[pointsField])
		}
	}
	if w.Changelog != nil {
		is.Changelog = historiesToEntries(w.Changelog.Histories)
	}
	return is, nil
}

func parsePoints(raw json.RawMessage) (*float64, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return validPoints(f)
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		str = strings.TrimSpace(str)
		if str == "" {
			return nil, false
		}
		if f, err := strconv.ParseFloat(str, 64); err == nil {
			return validPoints(f)
		}
	}
	return nil, true
}

func validPoints(f float64) (*float64, bool) {
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, true
	}
	return &f, false
}

func historiesToEntries(hs []wireHistory) []domain.ChangelogEntry {
	var out []domain.ChangelogEntry
	for _, h := range hs {
		at := parseTimeUTC(h.Created)
		for _, it := range h.Items {
			e := domain.ChangelogEntry{Field: it.Field, At: at}
			if it.FromString != nil {
				e.From = *it.FromString
			}
			if it.ToString != nil {
				e.To = *it.ToString
			}
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

func parseTimeUTC(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000-0700", "2006-01-02T15:04:05-0700", "2006-01-02"}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
