/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/HamedShams/jira-pulse/internal/domain"
)

const dateLayout = "2006-01-02"

// NoData is the reply for an empty result.
const NoData = "No data found for that request."

// Plain renders a result as a chat message without any model involvement.
// Issue keys become Markdown links.
func Plain(r domain.Result) string {
	switch v := r.(type) {
	case domain.MetricsResult:
		return plainMetrics(v)
	case *domain.MetricsResult:
		return plainMetrics(*v)
	case domain.SummaryResult:
		return plainSummary(v)
	case *domain.SummaryResult:
		return plainSummary(*v)
	}
	return NoData
}

func plainMetrics(m domain.MetricsResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Sprint metrics for %s*", Escape(m.ProjectKey))
	if m.BoardName != "" {
		fmt.Fprintf(&b, " (board: %s)", Escape(m.BoardName))
	}
	b.WriteString("\n")
	if m.Empty() {
		b.WriteString(NoData + "\n")
		writeCaveats(&b, m.Caveats)
		return strings.TrimRight(b.String(), "\n")
	}
	for _, s := range m.Sprints {
		fmt.Fprintf(&b, "\n*%s* (%s", Escape(s.Name), s.State)
		if !s.Start.IsZero() && !s.End.IsZero() {
			fmt.Fprintf(&b, ", %s to %s", s.Start.Format(dateLayout), s.End.Format(dateLayout))
		}
		b.WriteString(")\n")
		fmt.Fprintf(&b, "• Points: %s of %s completed", num(s.Completed), num(s.Committed))
		if s.Committed > 0 {
			fmt.Fprintf(&b, " (churn %s%%)", num(s.ChurnRate))
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "• Issues: %d of %d done\n", s.CompletedIssues, s.IssueCount)
		if len(s.ByStatus) > 0 {
			parts := make([]string, 0, len(s.ByStatus))
			for _, c := range s.ByStatus {
				parts = append(parts, fmt.Sprintf("%s %d", Escape(c.Status), c.Count))
			}
			b.WriteString("• Status: " + strings.Join(parts, ", ") + "\n")
		}
	}
	if len(m.Sprints) > 1 {
		fmt.Fprintf(&b, "\nTotal: %s of %s points completed\n", num(m.TotalCompleted()), num(m.TotalCommitted()))
	}
	if m.AverageVelocity > 0 {
		fmt.Fprintf(&b, "\nAverage velocity (closed sprints): %s points\n", num(m.AverageVelocity))
	}
	writeCaveats(&b, m.Caveats)
	return strings.TrimRight(b.String(), "\n")
}

func plainSummary(s domain.SummaryResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Status changes under* %s", Link(s.InitiativeKey, s.InitiativeURL))
	if s.StatusFilter != "" {
		fmt.Fprintf(&b, " (status: %s)", Escape(s.StatusFilter))
	}
	fmt.Fprintf(&b, "\n%s\n", s.Window)
	if s.Empty() {
		b.WriteString(NoData)
		return b.String()
	}
	fmt.Fprintf(&b, "%d of %d issues changed across %d epics, %d transitions\n", len(s.Issues), s.IssueCount, s.EpicCount, s.TransitionCount())
	for _, ic := range s.Issues {
		b.WriteString("\n" + Link(ic.Key, ic.Link))
		if ic.Summary != "" {
			b.WriteString(" " + Escape(ic.Summary))
		}
		b.WriteString("\n")
		for _, t := range ic.Transitions {
			fmt.Fprintf(&b, "• %s: %s → %s\n", t.At.Format(dateLayout), Escape(t.From), Escape(t.To))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeCaveats(b *strings.Builder, caveats []string) {
	for _, c := range caveats {
		b.WriteString("_Note: " + Escape(c) + "_\n")
	}
}

// Link renders an issue key in the transport's link syntax. Without a URL
// the bare key is returned.
func Link(key, url string) string {
	if url == "" {
		return key
	}
	return "[" + key + "](" + url + ")"
}

var mdReplacer = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// Escape neutralises Telegram Markdown control characters in free text.
func Escape(s string) string { return mdReplacer.Replace(s) }

func num(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
