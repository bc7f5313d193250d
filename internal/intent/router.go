/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package intent

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/HamedShams/jira-pulse/internal/domain"
	"github.com/HamedShams/jira-pulse/internal/llm"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const classifyInstruction = `You route questions about Jira to one of two intents.
Reply with a single JSON object and nothing else.

1. "project_metrics": sprint metrics for a project.
   Fields: "project_key" (required, e.g. "XYZ"), "sprint_count" (optional integer).
2. "initiative_summary": status changes of the issues under an initiative.
   Fields: "initiative_key" (required, e.g. "PROG-123"),
   "time_phrase" (optional, the period exactly as the user wrote it, e.g. "last 2 weeks"),
   "start_date"/"end_date" (optional, YYYY-MM-DD, only if the user gave explicit dates),
   "status" (optional, a status name to filter on, e.g. "blocked").

Use earlier turns to fill in keys the user refers to implicitly.
If the request fits neither intent answer {"intent":"unknown"}.`

// Classifier is the model side of the router; *llm.Chain satisfies it.
type Classifier interface {
	Classify(ctx context.Context, p llm.Prompt) (string, error)
}

// Defaults are applied when a request leaves a parameter open.
type Defaults struct {
	Sprints      int
	SprintLength time.Duration
	Window       time.Duration
}

// Router maps free text to a domain.Intent. The model proposes; the router
// validates the proposal and resolves every time window itself.
type Router struct {
	cls     Classifier
	schema  *gojsonschema.Schema
	def     Defaults
	windows WindowResolver
	now     func() time.Time
	log     zerolog.Logger
}

type Option func(*Router)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(r *Router) { r.now = now } }

func NewRouter(cls Classifier, def Defaults, log zerolog.Logger, opts ...Option) (*Router, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	r := &Router{
		cls:     cls,
		schema:  schema,
		def:     def,
		windows: WindowResolver{SprintLength: def.SprintLength, Default: def.Window},
		now:     time.Now,
		log:     log.With().Str("component", "intent").Logger(),
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Interpret classifies text. Invalid model output is a *ParseError; when no
// model answers at all the deterministic patterns are tried instead.
func (r *Router) Interpret(ctx context.Context, text string, history domain.Conversation) (domain.Intent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ParseError{Text: text, Reason: "empty request"}
	}
	now := r.now()
	if r.cls == nil {
		return r.fromPatterns(text, now)
	}
	raw, err := r.cls.Classify(ctx, llm.Prompt{System: classifyInstruction, History: history, User: text})
	if err != nil {
		var perr *llm.ProviderError
		if !errors.As(err, &perr) {
			return nil, err
		}
		r.log.Warn().Err(err).Msg("classifier unavailable; using patterns")
		return r.fromPatterns(text, now)
	}
	out, err := decodeOutput(r.schema, raw)
	if err != nil {
		r.log.Warn().Err(err).Str("raw", truncate(raw, 200)).Msg("rejected classifier output")
		return nil, &ParseError{Text: text, Reason: "invalid model output", Err: err}
	}
	return r.fromOutput(text, out, now)
}

func (r *Router) fromOutput(text string, out modelOutput, now time.Time) (domain.Intent, error) {
	switch domain.IntentKind(out.Intent) {
	case domain.KindProjectMetrics:
		if out.ProjectKey == "" {
			return nil, &ParseError{Text: text, Reason: "no project key"}
		}
		n := out.SprintCount
		if n <= 0 {
			n = sprintCountIn(text)
		}
		return domain.ProjectMetrics{ProjectKey: strings.ToUpper(out.ProjectKey), SprintCount: r.sprints(n)}, nil
	case domain.KindInitiativeSummary:
		if out.InitiativeKey == "" {
			return nil, &ParseError{Text: text, Reason: "no initiative key"}
		}
		w, err := r.window(text, out, now)
		if err != nil {
			return nil, &ParseError{Text: text, Reason: "bad time window", Err: err}
		}
		return domain.InitiativeSummary{
			InitiativeKey: strings.ToUpper(out.InitiativeKey),
			Window:        w,
			StatusFilter:  r.status(out.Status),
		}, nil
	}
	return nil, &ParseError{Text: text, Reason: "unsupported request"}
}

// window prefers the model's literal phrase, then its explicit dates, then a
// phrase found in the raw text, then the default.
func (r *Router) window(text string, out modelOutput, now time.Time) (domain.TimeWindow, error) {
	if out.TimePhrase != "" {
		if w, ok, err := r.windows.Resolve(out.TimePhrase, now); ok {
			return w, err
		}
	}
	if out.StartDate != "" {
		return r.windows.Dates(out.StartDate, out.EndDate, now)
	}
	if w, ok, err := r.windows.Resolve(text, now); ok {
		return w, err
	}
	return r.windows.Fallback(now), nil
}

var (
	metricsRe    = regexp.MustCompile(`(?i)\b(?:metrics|velocity|sprint stats|sprint report)\b.*?\b(?:for|of|on)\s+(?:project\s+)?([A-Za-z][A-Za-z0-9_]*)\b`)
	sprintsRe    = regexp.MustCompile(`(?i)\b(?:last|past)\s+(\d+)\s+sprints?\b`)
	initiativeRe = regexp.MustCompile(`(?i)\b(?:initiative|program|epic)\s+([A-Za-z][A-Za-z0-9_]*-\d+)\b`)
	issueKeyRe   = regexp.MustCompile(`\b([A-Z][A-Z0-9_]+-\d+)\b`)
	statusRe     = regexp.MustCompile(`(?i)\b(?:in|into|to|with)\s+(?:the\s+)?["']?([A-Za-z][A-Za-z ]{1,30}?)["']?\s+(?:status|state)\b`)
)

// fromPatterns is the deterministic classifier used when no model answers.
func (r *Router) fromPatterns(text string, now time.Time) (domain.Intent, error) {
	key := ""
	if m := initiativeRe.FindStringSubmatch(text); m != nil {
		key = m[1]
	} else if !metricsRe.MatchString(text) {
		if m := issueKeyRe.FindStringSubmatch(text); m != nil {
			key = m[1]
		}
	}
	if key != "" {
		w, _, err := r.windows.Resolve(text, now)
		if err != nil {
			return nil, &ParseError{Text: text, Reason: "bad time window", Err: err}
		}
		if w.Empty() {
			w = r.windows.Fallback(now)
		}
		status := ""
		if m := statusRe.FindStringSubmatch(text); m != nil {
			status = m[1]
		}
		return domain.InitiativeSummary{InitiativeKey: strings.ToUpper(key), Window: w, StatusFilter: r.status(status)}, nil
	}
	if m := metricsRe.FindStringSubmatch(text); m != nil && !isStopWord(m[1]) {
		return domain.ProjectMetrics{ProjectKey: strings.ToUpper(m[1]), SprintCount: r.sprints(sprintCountIn(text))}, nil
	}
	return nil, &ParseError{Text: text, Reason: "no known request pattern"}
}

func (r *Router) sprints(n int) int {
	if n > 0 {
		return n
	}
	if r.def.Sprints > 0 {
		return r.def.Sprints
	}
	return 5
}

// status normalises a status filter to title case, e.g. "in progress" to
// "In Progress".
func (r *Router) status(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	// a Caser holds state and cannot be shared between goroutines
	return cases.Title(language.English).String(strings.ToLower(s))
}

func sprintCountIn(text string) int {
	if m := sprintsRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return 0
}

func isStopWord(s string) bool {
	switch strings.ToLower(s) {
	case "the", "my", "our", "a", "this", "last", "project":
		return true
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
