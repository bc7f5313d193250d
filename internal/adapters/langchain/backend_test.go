package langchain

import (
	"context"
	"errors"
	"testing"

	"github.com/HamedShams/jira-pulse/internal/config"
	"github.com/HamedShams/jira-pulse/internal/domain"
	"github.com/HamedShams/jira-pulse/internal/llm"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/fake"
)

func TestBackend_ReturnsModelContent(t *testing.T) {
	b := New("ollama", fake.NewFakeLLM([]string{`{"intent":"project_metrics","project_key":"XYZ"}`, "second"}), zerolog.Nop())
	assert.Equal(t, "ollama", b.Name())

	out, err := b.Classify(context.Background(), "llama3.1", llm.Prompt{System: "sys", User: "metrics for XYZ"})
	require.NoError(t, err)
	assert.Contains(t, out, "project_metrics")

	out, err = b.Format(context.Background(), "llama3.1", llm.Prompt{User: "format"})
	require.NoError(t, err)
	assert.Equal(t, "second", out)
}

type recordingModel struct {
	got  []llms.MessageContent
	opts llms.CallOptions
	err  error
}

func (r *recordingModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	r.got = msgs
	for _, o := range options {
		o(&r.opts)
	}
	if r.err != nil {
		return nil, r.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "ok"}}}, nil
}

func (r *recordingModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, r, prompt, options...)
}

func TestBackend_MapsHistoryAndOptions(t *testing.T) {
	m := &recordingModel{}
	b := New("anthropic", m, zerolog.Nop())
	_, err := b.Classify(context.Background(), "claude-haiku", llm.Prompt{
		System:    "sys",
		History:   domain.Conversation{{Role: domain.RoleUser, Content: "q1"}, {Role: domain.RoleAssistant, Content: "a1"}},
		User:      "q2",
		MaxTokens: 256,
	})
	require.NoError(t, err)
	require.Len(t, m.got, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, m.got[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, m.got[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, m.got[2].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, m.got[3].Role)
	assert.Equal(t, "claude-haiku", m.opts.Model)
	assert.Equal(t, 256, m.opts.MaxTokens)
	assert.Zero(t, m.opts.Temperature)
}

func TestBackend_PropagatesError(t *testing.T) {
	b := New("ollama", &recordingModel{err: errors.New("connection refused")}, zerolog.Nop())
	_, err := b.Format(context.Background(), "m", llm.Prompt{User: "x"})
	assert.EqualError(t, err, "connection refused")
}

func TestNewAnthropic_RequiresKey(t *testing.T) {
	_, err := NewAnthropic(config.Config{}, zerolog.Nop())
	assert.EqualError(t, err, "anthropic: missing key")
}
