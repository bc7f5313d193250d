/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/HamedShams/jira-pulse/internal/adapters/jira"
	"github.com/HamedShams/jira-pulse/internal/intent"
)

// ExhaustedError wraps the last error after every Jira retry failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

const (
	MsgFetchFailed = "Sorry, I couldn't fetch that data from Jira. Check the key and that I have access to it."
	MsgUnavailable = "Jira is unavailable right now. Please try again in a few minutes."
	MsgTimeout     = "That took too long to answer. Try a narrower question, e.g. a shorter time window."
	MsgFailed      = "Something went wrong while answering. Please try again."
)

// Explain turns a pipeline error into the message shown to the user.
func Explain(err error) string {
	var perr *intent.ParseError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &perr):
		return intent.Clarification
	case jira.IsClientError(err):
		return MsgFetchFailed
	case jira.IsRetryable(err):
		return MsgUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return MsgTimeout
	}
	return MsgFailed
}

// Outcome labels an error for metrics.
func Outcome(err error) string {
	var perr *intent.ParseError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &perr):
		return "clarify"
	case jira.IsClientError(err):
		return "jira_4xx"
	case jira.IsRetryable(err):
		return "jira_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	return "error"
}
