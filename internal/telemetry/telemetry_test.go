package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", StatusClass(200))
	assert.Equal(t, "4xx", StatusClass(404))
	assert.Equal(t, "5xx", StatusClass(503))
	assert.Equal(t, "error", StatusClass(0))
}

func TestInit_ServesRecordedMetrics(t *testing.T) {
	ctx := context.Background()
	h, err := Init(ctx, "jira-pulse-test")
	require.NoError(t, err)
	require.NotNil(t, h)

	RecordPipeline(ctx, "project_metrics", "ok", 1500*time.Millisecond)
	RecordJiraRequest(ctx, "search", 200)
	RecordLLMAttempt(ctx, "openai", "o3-mini", "error")
	RecordTask(ctx, "delivered")

	srv := httptest.NewServer(h)
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, "jirapulse_pipeline_runs_total")
	assert.Contains(t, text, "jirapulse_jira_requests_total")
	assert.Contains(t, text, "jirapulse_llm_attempts_total")
	assert.Contains(t, text, `status_class="2xx"`)
}
