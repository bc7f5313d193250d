/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package llm

import (
	"context"

	"github.com/HamedShams/jira-pulse/internal/domain"
)

// Prompt is one model request: a system instruction, prior turns and the
// current user message.
type Prompt struct {
	System    string
	History   domain.Conversation
	User      string
	MaxTokens int
}

// Backend is a model provider. Classify must answer with a single JSON
// object; Format answers with chat-ready text.
type Backend interface {
	Name() string
	Classify(ctx context.Context, model string, p Prompt) (string, error)
	Format(ctx context.Context, model string, p Prompt) (string, error)
}

// Route is one (backend, model) pair of a fallback chain.
type Route struct {
	Backend Backend
	Model   string
}

func (r Route) String() string { return r.Backend.Name() + "/" + r.Model }
