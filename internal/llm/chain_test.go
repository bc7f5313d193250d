package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	name  string
	reply string
	err   error
	delay time.Duration
	calls []string
}

func (s *stubBackend) Name() string { return s.name }

func (s *stubBackend) Classify(ctx context.Context, model string, p Prompt) (string, error) {
	return s.answer(ctx, "classify:"+model)
}

func (s *stubBackend) Format(ctx context.Context, model string, p Prompt) (string, error) {
	return s.answer(ctx, "format:"+model)
}

func (s *stubBackend) answer(ctx context.Context, call string) (string, error) {
	s.calls = append(s.calls, call)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.reply, s.err
}

func TestChain_FallsBackInOrder(t *testing.T) {
	a := &stubBackend{name: "openai", err: errors.New("429 rate limited")}
	b := &stubBackend{name: "anthropic", delay: time.Second, reply: "late"}
	c := &stubBackend{name: "ollama", reply: `{"intent":"project_metrics"}`}
	chain := NewChain([]Route{{a, "o3-mini"}, {b, "haiku"}, {c, "llama"}}, 20*time.Millisecond, zerolog.Nop())

	out, err := chain.Classify(context.Background(), Prompt{User: "metrics"})
	require.NoError(t, err)
	assert.Equal(t, `{"intent":"project_metrics"}`, out)
	assert.Equal(t, []string{"classify:o3-mini"}, a.calls)
	assert.Equal(t, []string{"classify:haiku"}, b.calls)
	assert.Equal(t, []string{"classify:llama"}, c.calls)
}

func TestChain_StopsAtFirstSuccess(t *testing.T) {
	a := &stubBackend{name: "openai", reply: "hello"}
	b := &stubBackend{name: "anthropic", reply: "unused"}
	chain := NewChain([]Route{{a, "m1"}, {b, "m2"}}, time.Second, zerolog.Nop())

	out, err := chain.Format(context.Background(), Prompt{})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Empty(t, b.calls)
}

func TestChain_ExhaustionReturnsProviderError(t *testing.T) {
	a := &stubBackend{name: "openai", err: errors.New("boom")}
	b := &stubBackend{name: "anthropic", reply: "   "}
	chain := NewChain([]Route{{a, "m1"}, {b, "m2"}}, time.Second, zerolog.Nop())

	_, err := chain.Format(context.Background(), Prompt{})
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	require.Len(t, perr.Attempts, 2)
	assert.Equal(t, "openai/m1", perr.Attempts[0].Route)
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.Contains(t, err.Error(), "all routes failed")
}

func TestChain_NoRoutes(t *testing.T) {
	_, err := NewChain(nil, time.Second, zerolog.Nop()).Classify(context.Background(), Prompt{})
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, err.Error(), "no model routes")
}

type panicBackend struct{ stubBackend }

func (p *panicBackend) Format(context.Context, string, Prompt) (string, error) { panic("nil map") }

func TestChain_RecoversBackendPanic(t *testing.T) {
	ok := &stubBackend{name: "ollama", reply: "fine"}
	chain := NewChain([]Route{{&panicBackend{stubBackend{name: "broken"}}, "x"}, {ok, "y"}}, time.Second, zerolog.Nop())
	out, err := chain.Format(context.Background(), Prompt{})
	require.NoError(t, err)
	assert.Equal(t, "fine", out)
}

func TestEstimateCounter(t *testing.T) {
	assert.Zero(t, EstimateCounter{}.Count(""))
	assert.Equal(t, 3, EstimateCounter{}.Count("twelve chars"))
}

func TestChain_RoutesIsACopy(t *testing.T) {
	a := &stubBackend{name: "openai"}
	chain := NewChain([]Route{{a, "m1"}}, time.Second, zerolog.Nop())
	routes := chain.Routes()
	require.Len(t, routes, 1)
	assert.Equal(t, "openai/m1", routes[0].String())

	routes[0].Model = "changed"
	assert.Equal(t, "m1", chain.Routes()[0].Model)
}
