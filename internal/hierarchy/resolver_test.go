package hierarchy

import (
	"context"
	"iter"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HamedShams/jira-pulse/internal/adapters/jira"
	"github.com/HamedShams/jira-pulse/internal/config"
	"github.com/HamedShams/jira-pulse/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeJira answers JQL strings from a fixed table; unknown queries match nothing.
type fakeJira struct {
	mu      sync.Mutex
	results map[string][]domain.Issue
	errs    map[string]error
	queries []string
}

func (f *fakeJira) Search(_ context.Context, jql string, _ []string, _ int, _ ...jira.SearchOption) iter.Seq2[domain.Issue, error] {
	f.mu.Lock()
	f.queries = append(f.queries, jql)
	f.mu.Unlock()
	return func(yield func(domain.Issue, error) bool) {
		for prefix, err := range f.errs {
			if strings.HasPrefix(jql, prefix) {
				yield(domain.Issue{}, err)
				return
			}
		}
		for _, is := range f.results[jql] {
			if !yield(is, nil) {
				return
			}
		}
	}
}

func testConfig() config.Config {
	return config.Config{
		WorkersJira:  3,
		EpicJQL:      `"Parent Link" = %s`,
		EpicIssueJQL: `"Epic Link" = %s`,
	}
}

func fixture() *fakeJira {
	return &fakeJira{results: map[string][]domain.Issue{
		`"Parent Link" = PROG-123`: {{Key: "EP-1"}, {Key: "EP-2"}, {Key: "EP-3"}},
		`"Epic Link" = EP-1`:       {{Key: "ABC-1"}, {Key: "ABC-2"}},
		`"Epic Link" = EP-3`:       {{Key: "ABC-3", ParentKey: "EP-3"}},
	}}
}

func TestResolve_CollectsEpicsAndIssuesInOrder(t *testing.T) {
	r := New(testConfig(), fixture(), zerolog.Nop())
	h, err := r.Resolve(context.Background(), "PROG-123")
	require.NoError(t, err)

	assert.Equal(t, "PROG-123", h.Initiative)
	require.Len(t, h.Epics, 3)
	assert.Equal(t, "EP-1", h.Epics[0].Key)
	assert.Equal(t, "PROG-123", h.Epics[0].ParentKey)
	assert.Len(t, h.Epics[0].Issues, 2)
	assert.Equal(t, "EP-1", h.Epics[0].Issues[0].ParentKey)
	assert.Empty(t, h.Epics[1].Issues, "epic without issues stays as an empty leaf")
	assert.Equal(t, []string{"EP-1", "ABC-1", "ABC-2", "EP-2", "EP-3", "ABC-3"}, h.Keys())
}

func TestResolve_IsIdempotentForStaticData(t *testing.T) {
	r := New(testConfig(), fixture(), zerolog.Nop())
	a, err := r.Resolve(context.Background(), "PROG-123")
	require.NoError(t, err)
	b, err := r.Resolve(context.Background(), "prog-123")
	require.NoError(t, err)
	assert.ElementsMatch(t, a.Keys(), b.Keys())
	assert.Equal(t, a, b)
}

func TestResolve_MalformedKeyYieldsEmptyHierarchy(t *testing.T) {
	fj := fixture()
	r := New(testConfig(), fj, zerolog.Nop())
	for _, key := range []string{"", "PROG", "123", "PROG-12a", `PROG-1" OR project = X`} {
		h, err := r.Resolve(context.Background(), key)
		require.NoError(t, err, key)
		assert.True(t, h.Empty(), key)
	}
	assert.Empty(t, fj.queries, "no query is issued for a malformed key")
}

func TestResolve_UnknownInitiativeYieldsEmptyHierarchy(t *testing.T) {
	fj := &fakeJira{errs: map[string]error{
		`"Parent Link" = NOPE-1`: &jira.APIError{Op: "search", Status: http.StatusBadRequest, Body: "issue does not exist"},
	}}
	r := New(testConfig(), fj, zerolog.Nop())
	h, err := r.Resolve(context.Background(), "NOPE-1")
	require.NoError(t, err)
	assert.True(t, h.Empty())

	h, err = r.Resolve(context.Background(), "NONE-9")
	require.NoError(t, err)
	assert.True(t, h.Empty())
}

func TestResolve_ServerErrorPropagates(t *testing.T) {
	fj := fixture()
	fj.errs = map[string]error{`"Epic Link" = EP-2`: &jira.APIError{Op: "search", Status: http.StatusBadGateway}}
	r := New(testConfig(), fj, zerolog.Nop())
	_, err := r.Resolve(context.Background(), "PROG-123")
	require.Error(t, err)
	assert.True(t, jira.IsRetryable(err))
}

func TestResolve_UpdatedSinceNarrowsIssueQueries(t *testing.T) {
	fj := fixture()
	cfg := testConfig()
	cfg.EpicIssueJQL = `"Epic Link" = %s ORDER BY key ASC`
	r := New(cfg, fj, zerolog.Nop())
	_, err := r.Resolve(context.Background(), "PROG-123", WithUpdatedSince(time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Contains(t, fj.queries, `("Epic Link" = EP-1) AND updated >= "2025-02-28" ORDER BY key ASC`)
}

func TestIssueQuery_BoundPrecedesSinceInAnyZone(t *testing.T) {
	r := New(testConfig(), fixture(), zerolog.Nop())
	tokyo := time.FixedZone("JST", 9*3600)
	tests := []struct {
		since time.Time
		want  string
	}{
		{time.Date(2025, 3, 1, 3, 0, 0, 0, time.UTC), `updated >= "2025-02-28"`},
		// 2025-02-28T16:00Z
		{time.Date(2025, 3, 1, 1, 0, 0, 0, tokyo), `updated >= "2025-02-27"`},
	}
	for _, tt := range tests {
		q := r.issueQuery("EP-1", options{updatedSince: tt.since})
		assert.Contains(t, q, tt.want)
	}
}
