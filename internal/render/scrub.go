/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package render

import (
	"regexp"
	"strings"
)

var (
	emailRe    = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+`)
	phoneRe    = regexp.MustCompile(`\+?\d[\d\-\s]{7,}\d`)
	urlRe      = regexp.MustCompile(`https?://[^\s]+`)
	tokenRe    = regexp.MustCompile(`(?i)\b(?:token|secret|password|apikey|api_key|bearer)[:=\s]+[A-Za-z0-9\-\._~+/]{8,}`)
	jiraUserRe = regexp.MustCompile(`\bJIRAUSER\d+\b`)
	isoDateRe  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Scrub masks emails, phone numbers, URLs, credentials and Jira user ids in
// free text that is about to leave for a model provider.
func Scrub(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = emailRe.ReplaceAllString(s, "<email>")
	s = urlRe.ReplaceAllString(s, "<url>")
	s = tokenRe.ReplaceAllString(s, "<secret>")
	s = phoneRe.ReplaceAllStringFunc(s, func(m string) string {
		if isoDateRe.MatchString(m) {
			return m
		}
		return "<phone>"
	})
	return jiraUserRe.ReplaceAllString(s, "<user>")
}
