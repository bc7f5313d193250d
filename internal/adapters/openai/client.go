/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package openai

import (
	"context"
	"errors"
	"strings"

	"github.com/HamedShams/jira-pulse/internal/config"
	"github.com/HamedShams/jira-pulse/internal/domain"
	"github.com/HamedShams/jira-pulse/internal/llm"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"github.com/rs/zerolog"
)

// Client is an llm.Backend on the OpenAI chat completions API.
type Client struct {
	key string
	cli openai.Client
	log zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.OpenAIKey),
		// the fallback chain decides what happens after a failure
		option.WithMaxRetries(0),
	}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAIBaseURL))
	}
	return &Client{key: cfg.OpenAIKey, cli: openai.NewClient(opts...), log: log.With().Str("component", "openai").Logger()}
}

func (c *Client) Name() string { return "openai" }

// Classify asks for a JSON object at temperature 0.
func (c *Client) Classify(ctx context.Context, model string, p llm.Prompt) (string, error) {
	params := c.params(model, p)
	params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
	}
	if !reasoningModel(model) {
		params.Temperature = openai.Float(0)
	}
	return c.complete(ctx, params)
}

func (c *Client) Format(ctx context.Context, model string, p llm.Prompt) (string, error) {
	params := c.params(model, p)
	if !reasoningModel(model) {
		params.Temperature = openai.Float(0.2)
	}
	return c.complete(ctx, params)
}

func (c *Client) params(model string, p llm.Prompt) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: messages(p),
	}
	if p.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(p.MaxTokens))
	}
	return params
}

// reasoningModel reports o-series and gpt-5 models, which reject a
// temperature.
func reasoningModel(model string) bool {
	m := strings.ToLower(model)
	if strings.HasPrefix(m, "gpt-5") {
		return true
	}
	return len(m) > 1 && m[0] == 'o' && m[1] >= '0' && m[1] <= '9'
}

func (c *Client) complete(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	if strings.TrimSpace(c.key) == "" {
		return "", errors.New("openai: missing key")
	}
	c.log.Debug().Str("model", string(params.Model)).Int("messages", len(params.Messages)).Msg("openai chat completion")
	resp, err := c.cli.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func messages(p llm.Prompt) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(p.History)+2)
	if p.System != "" {
		out = append(out, openai.SystemMessage(p.System))
	}
	for _, t := range p.History {
		switch t.Role {
		case domain.RoleAssistant:
			out = append(out, openai.AssistantMessage(t.Content))
		default:
			out = append(out, openai.UserMessage(t.Content))
		}
	}
	return append(out, openai.UserMessage(p.User))
}
