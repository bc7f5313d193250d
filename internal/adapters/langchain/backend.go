/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package langchain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HamedShams/jira-pulse/internal/config"
	"github.com/HamedShams/jira-pulse/internal/domain"
	"github.com/HamedShams/jira-pulse/internal/llm"
	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Backend adapts any langchaingo model to llm.Backend.
type Backend struct {
	name  string
	model llms.Model
	log   zerolog.Logger
}

func New(name string, model llms.Model, log zerolog.Logger) *Backend {
	return &Backend{name: name, model: model, log: log.With().Str("component", name).Logger()}
}

// NewAnthropic builds the Anthropic backend from config.
func NewAnthropic(cfg config.Config, log zerolog.Logger) (*Backend, error) {
	if strings.TrimSpace(cfg.AnthropicKey) == "" {
		return nil, errors.New("anthropic: missing key")
	}
	m, err := anthropic.New(anthropic.WithToken(cfg.AnthropicKey), anthropic.WithModel(cfg.AnthropicModel))
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	return New("anthropic", m, log), nil
}

// NewOllama builds the local Ollama backend from config.
func NewOllama(cfg config.Config, log zerolog.Logger) (*Backend, error) {
	opts := []ollama.Option{ollama.WithModel(cfg.OllamaModel)}
	if cfg.OllamaURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.OllamaURL))
	}
	m, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	return New("ollama", m, log), nil
}

func (b *Backend) Name() string { return b.name }

func (b *Backend) Classify(ctx context.Context, model string, p llm.Prompt) (string, error) {
	return b.generate(ctx, model, p, llms.WithTemperature(0))
}

func (b *Backend) Format(ctx context.Context, model string, p llm.Prompt) (string, error) {
	return b.generate(ctx, model, p)
}

func (b *Backend) generate(ctx context.Context, model string, p llm.Prompt, extra ...llms.CallOption) (string, error) {
	opts := append([]llms.CallOption{}, extra...)
	if model != "" {
		opts = append(opts, llms.WithModel(model))
	}
	if p.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(p.MaxTokens))
	}
	b.log.Debug().Str("model", model).Int("history", len(p.History)).Msg("generate content")
	resp, err := b.model.GenerateContent(ctx, messages(p), opts...)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: no choices", b.name)
	}
	return resp.Choices[0].Content, nil
}

func messages(p llm.Prompt) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(p.History)+2)
	if p.System != "" {
		out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, p.System))
	}
	for _, t := range p.History {
		role := llms.ChatMessageTypeHuman
		if t.Role == domain.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		out = append(out, llms.TextParts(role, t.Content))
	}
	return append(out, llms.TextParts(llms.ChatMessageTypeHuman, p.User))
}
