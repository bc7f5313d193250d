/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package intent

import (
	"context"
	"regexp"
	"strings"

	"github.com/HamedShams/jira-pulse/internal/domain"
	"github.com/HamedShams/jira-pulse/internal/llm"
	"github.com/HamedShams/jira-pulse/internal/render"
	"github.com/rs/zerolog"
)

const formatInstruction = `You turn Jira query results into one concise chat message.
Rules:
- Use only the facts in the JSON data. Do not add, drop or change numbers, keys, statuses or dates.
- Reference issues as Markdown links [KEY](url) using the url fields.
- Use *bold* for headings and "• " for list items. No tables, no code blocks.
- If omitted_issues or omitted_sprints is present, say how many were left out.
- Keep it to a single message.`

const historyTurns = 6

// FormatModel is the model side of the bridge; *llm.Chain satisfies it.
type FormatModel interface {
	Format(ctx context.Context, p llm.Prompt) (string, error)
}

// Bridge words structured results with a model and falls back to the
// deterministic renderer whenever the model fails or strays from the facts.
type Bridge struct {
	model   FormatModel
	counter llm.TokenCounter
	budget  int
	log     zerolog.Logger
}

func NewBridge(model FormatModel, counter llm.TokenCounter, budget int, log zerolog.Logger) *Bridge {
	if counter == nil {
		counter = llm.EstimateCounter{}
	}
	if budget <= 0 {
		budget = 6000
	}
	return &Bridge{model: model, counter: counter, budget: budget, log: log.With().Str("component", "formatter").Logger()}
}

// Format never returns an empty string.
func (b *Bridge) Format(ctx context.Context, res domain.Result, text string, history domain.Conversation) string {
	if res == nil || res.Empty() || b.model == nil {
		return render.Plain(res)
	}
	payload, err := b.payload(res)
	if err != nil {
		b.log.Error().Err(err).Msg("serialize result")
		return render.Plain(res)
	}
	out, err := b.model.Format(ctx, llm.Prompt{
		System:    formatInstruction,
		History:   history.Last(historyTurns),
		User:      "Request: " + text + "\n\nData (JSON):\n" + payload,
		MaxTokens: 1024,
	})
	if err != nil {
		b.log.Warn().Err(err).Msg("model formatting failed; rendering plain")
		return render.Plain(res)
	}
	out = strings.TrimSpace(out)
	if foreign := foreignKeys(out, res.IssueKeys()); len(foreign) > 0 {
		b.log.Warn().Strs("keys", foreign).Msg("model mentioned issues outside the result; rendering plain")
		return render.Plain(res)
	}
	if foreign := foreignNumbers(out, payload, render.Plain(res), text); len(foreign) > 0 {
		b.log.Warn().Strs("numbers", foreign).Msg("model mentioned numbers outside the result; rendering plain")
		return render.Plain(res)
	}
	if out == "" {
		return render.Plain(res)
	}
	return out
}

// payload serializes res, halving the number of groups until it fits the
// token budget.
func (b *Bridge) payload(res domain.Result) (string, error) {
	limit := 0
	for {
		raw, err := render.Compact(res, limit)
		if err != nil {
			return "", err
		}
		n := b.counter.Count(string(raw))
		if n <= b.budget {
			return string(raw), nil
		}
		if limit == 0 {
			limit = render.Groups(res)
		}
		if limit <= 1 {
			b.log.Warn().Int("tokens", n).Int("budget", b.budget).Msg("payload over budget at one group")
			return string(raw), nil
		}
		limit /= 2
	}
}

var (
	keyRe = regexp.MustCompile(`\b[A-Z][A-Z0-9_]+-\d+\b`)
	numRe = regexp.MustCompile(`\d+(?:\.\d+)?`)
	urlRe = regexp.MustCompile(`https?://[^\s)\]]+`)
)

func foreignKeys(text string, allowed []string) []string {
	ok := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		ok[k] = true
	}
	var out []string
	for _, k := range keyRe.FindAllString(text, -1) {
		if !ok[k] {
			out = append(out, k)
			ok[k] = true
		}
	}
	return out
}

// foreignNumbers lists numbers in text that none of the sources contain.
// URLs and issue keys are ignored; 5.0 and 5 are the same number.
func foreignNumbers(text string, sources ...string) []string {
	ok := map[string]bool{}
	for _, src := range sources {
		for _, n := range numRe.FindAllString(src, -1) {
			ok[canonicalNumber(n)] = true
		}
	}
	text = keyRe.ReplaceAllString(urlRe.ReplaceAllString(text, " "), " ")
	var out []string
	for _, n := range numRe.FindAllString(text, -1) {
		c := canonicalNumber(n)
		if !ok[c] {
			out = append(out, n)
			ok[c] = true
		}
	}
	return out
}

func canonicalNumber(n string) string {
	if strings.Contains(n, ".") {
		n = strings.TrimRight(strings.TrimRight(n, "0"), ".")
	}
	if t := strings.TrimLeft(n, "0"); t != "" {
		return t
	}
	return "0"
}
