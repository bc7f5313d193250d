package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/HamedShams/jira-pulse/internal/config"
	"github.com/HamedShams/jira-pulse/internal/domain"
	"github.com/HamedShams/jira-pulse/internal/llm"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SendsHistoryAndReturnsContent(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"o3-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"formatted"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(config.Config{OpenAIKey: "sk-test", OpenAIBaseURL: srv.URL}, zerolog.Nop())
	out, err := c.Format(context.Background(), "o3-mini", llm.Prompt{
		System:  "sys",
		History: domain.Conversation{{Role: domain.RoleUser, Content: "q1"}, {Role: domain.RoleAssistant, Content: "a1"}},
		User:    "q2",
	})
	require.NoError(t, err)
	assert.Equal(t, "formatted", out)
	assert.Equal(t, "o3-mini", got.Model)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, []string{"system", "user", "assistant", "user"},
		[]string{got.Messages[0].Role, got.Messages[1].Role, got.Messages[2].Role, got.Messages[3].Role})
	assert.Equal(t, "q2", got.Messages[3].Content)
}

func TestClient_ErrorStatusFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
	}))
	defer srv.Close()

	c := NewClient(config.Config{OpenAIKey: "sk-test", OpenAIBaseURL: srv.URL}, zerolog.Nop())
	_, err := c.Classify(context.Background(), "o3-mini", llm.Prompt{User: "x"})
	assert.Error(t, err)
}

func TestClient_MissingKey(t *testing.T) {
	c := NewClient(config.Config{}, zerolog.Nop())
	_, err := c.Classify(context.Background(), "o3-mini", llm.Prompt{User: "x"})
	assert.EqualError(t, err, "openai: missing key")
}

func TestClient_ClassifyRequestsJSONObject(t *testing.T) {
	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"m",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"intent\":\"unknown\"}"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(config.Config{OpenAIKey: "sk-test", OpenAIBaseURL: srv.URL}, zerolog.Nop())
	_, err := c.Classify(context.Background(), "gpt-4o-mini", llm.Prompt{System: "answer in JSON", User: "x"})
	require.NoError(t, err)
	_, err = c.Classify(context.Background(), "o3-mini", llm.Prompt{System: "answer in JSON", User: "x"})
	require.NoError(t, err)

	require.Len(t, bodies, 2)
	assert.Equal(t, map[string]any{"type": "json_object"}, bodies[0]["response_format"])
	assert.Equal(t, float64(0), bodies[0]["temperature"])
	assert.Equal(t, map[string]any{"type": "json_object"}, bodies[1]["response_format"])
	_, hasTemp := bodies[1]["temperature"]
	assert.False(t, hasTemp)
}

func TestReasoningModel(t *testing.T) {
	assert.True(t, reasoningModel("o3-mini"))
	assert.True(t, reasoningModel("o1"))
	assert.True(t, reasoningModel("GPT-5-mini"))
	assert.False(t, reasoningModel("gpt-4o"))
	assert.False(t, reasoningModel("ollama"))
}
