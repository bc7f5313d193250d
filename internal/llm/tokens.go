/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package llm

import "github.com/pkoukk/tiktoken-go"

// TokenCounter measures prompt size against the token budget.
type TokenCounter interface {
	Count(text string) int
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (t tiktokenCounter) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// EstimateCounter approximates four bytes per token.
type EstimateCounter struct{}

func (EstimateCounter) Count(text string) int {
	return (len(text) + 3) / 4
}

// NewTokenCounter loads the cl100k_base encoding and falls back to the
// estimate when it is unavailable.
func NewTokenCounter() TokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return EstimateCounter{}
	}
	return tiktokenCounter{enc: enc}
}
