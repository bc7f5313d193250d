/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is the turn log of one chat. Append never modifies the
// receiver's backing array.
type Conversation []Turn

func (c Conversation) Append(turns ...Turn) Conversation {
	out := make(Conversation, 0, len(c)+len(turns))
	out = append(out, c...)
	return append(out, turns...)
}

// Last returns at most n trailing turns.
func (c Conversation) Last(n int) Conversation {
	if n <= 0 || len(c) <= n {
		return c
	}
	return c[len(c)-n:]
}
