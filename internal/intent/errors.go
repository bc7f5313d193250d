/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package intent

// ParseError means a request could not be mapped to a supported intent.
// Callers answer it with a clarification, never with the error text.
type ParseError struct {
	Text   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := "intent: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// Clarification is the reply for requests the router cannot map.
const Clarification = "Sorry, I couldn't work out what you need. Try for example:\n" +
	"• metrics for XYZ last 3 sprints\n" +
	"• status changes for initiative PROG-123 in the last 2 weeks\n" +
	"• issues in blocked status for initiative PROG-123 since 2025-01-01"
