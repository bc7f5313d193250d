/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package config

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Route is one entry of the model fallback list.
type Route struct {
	Provider string
	Model    string
}

func (r Route) String() string { return r.Provider + "/" + r.Model }

type Config struct {
	AppEnv   string
	TZ       string
	HTTPAddr string

	PublicBaseURL string
	DebugEndpoint bool

	JiraBaseURL      string
	JiraEmail        string
	JiraAPIToken     string
	JiraPAT          string
	JiraAPIVersion   string
	JiraFields       []string
	JiraPageSize     int
	StoryPointsField string
	EpicJQL          string // template, %s is the initiative key
	EpicIssueJQL     string // template, %s is the epic key
	HTTPTimeout      time.Duration
	WorkersJira      int

	LLMProvider     string
	LLMFallbacks    []Route
	LLMTimeout      time.Duration
	LLMBudgetTokens int

	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string

	AnthropicKey   string
	AnthropicModel string

	OllamaURL   string
	OllamaModel string

	DefaultSprints int
	SprintLength   time.Duration
	DefaultWindow  time.Duration

	TelegramToken         string
	TelegramWebhookSecret string
	TelegramChatIDs       []int64
	TelegramChatUsernames []string
	TelegramAllowAll      bool

	WorkersPipeline int
	QueueSize       int
	PipelineTimeout time.Duration

	ReportCron  string
	ReportQuery string
	SweepCron   string

	SessionTTL      time.Duration
	SessionMaxTurns int
}

func parseInt64s(csv string) []int64 {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err == nil {
			out = append(out, n)
		}
	}
	return out
}

func parseStrings(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ParseFallbacks reads "provider/model,provider/model". A bare model name is
// bound to the primary provider.
func ParseFallbacks(csv, primary string) []Route {
	var out []Route
	for _, item := range parseStrings(csv) {
		provider, model, ok := strings.Cut(item, "/")
		if !ok {
			provider, model = primary, item
		}
		provider = strings.ToLower(strings.TrimSpace(provider))
		model = strings.TrimSpace(model)
		if provider == "" || model == "" {
			continue
		}
		out = append(out, Route{Provider: provider, Model: model})
	}
	return out
}

func defaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("APP_TZ", "UTC")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	v.SetDefault("DEBUG_ENDPOINT", false)

	v.SetDefault("JIRA_API_VERSION", "2")
	v.SetDefault("JIRA_FIELDS", "key,summary,status,updated,description,issuetype")
	v.SetDefault("JIRA_PAGE_SIZE", 100)
	v.SetDefault("STORY_POINTS_FIELD", "customfield_10025")
	v.SetDefault("JIRA_EPIC_JQL", `"Parent Link" = %s ORDER BY key ASC`)
	v.SetDefault("JIRA_EPIC_ISSUE_JQL", `"Epic Link" = %s ORDER BY key ASC`)
	v.SetDefault("HTTP_TIMEOUT", 15*time.Second)
	v.SetDefault("WORKERS_JIRA", 6)

	v.SetDefault("LLM_PROVIDER", "openai")
	v.SetDefault("LLM_FALLBACKS", "")
	v.SetDefault("LLM_TIMEOUT", 20*time.Second)
	v.SetDefault("LLM_TOKEN_BUDGET", 6000)
	v.SetDefault("OPENAI_MODEL", "o3-mini")
	v.SetDefault("ANTHROPIC_MODEL", "claude-3-5-haiku-latest")
	v.SetDefault("OLLAMA_URL", "http://localhost:11434")
	v.SetDefault("OLLAMA_MODEL", "llama3.1")

	v.SetDefault("DEFAULT_SPRINTS", 5)
	v.SetDefault("SPRINT_LENGTH", 14*24*time.Hour)
	v.SetDefault("DEFAULT_WINDOW", 7*24*time.Hour)

	v.SetDefault("TELEGRAM_WEBHOOK_SECRET", "change-me")

	v.SetDefault("WORKERS_PIPELINE", 4)
	v.SetDefault("QUEUE_SIZE", 64)
	v.SetDefault("PIPELINE_TIMEOUT", 2*time.Minute)

	v.SetDefault("REPORT_CRON", "")
	v.SetDefault("REPORT_QUERY", "")
	v.SetDefault("SWEEP_CRON", "*/10 * * * *")

	v.SetDefault("SESSION_TTL", 30*time.Minute)
	v.SetDefault("SESSION_MAX_TURNS", 20)
}

// Load reads configuration from the environment and, when CONFIG_FILE is set,
// from that file. Environment values win over file values.
func Load() (Config, error) {
	v := viper.New()
	defaults(v)
	v.AutomaticEnv()
	if file := strings.TrimSpace(v.GetString("CONFIG_FILE")); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", file, err)
		}
	}
	return fromViper(v), nil
}

func fromViper(v *viper.Viper) Config {
	provider := strings.ToLower(strings.TrimSpace(v.GetString("LLM_PROVIDER")))
	cfg := Config{
		AppEnv:   v.GetString("APP_ENV"),
		TZ:       v.GetString("APP_TZ"),
		HTTPAddr: v.GetString("HTTP_ADDR"),

		PublicBaseURL: v.GetString("PUBLIC_BASE_URL"),
		DebugEndpoint: v.GetBool("DEBUG_ENDPOINT"),

		JiraBaseURL:      strings.TrimRight(v.GetString("JIRA_BASE_URL"), "/"),
		JiraEmail:        firstNonEmpty(v.GetString("JIRA_EMAIL"), v.GetString("JIRA_USERNAME")),
		JiraAPIToken:     firstNonEmpty(v.GetString("JIRA_API_TOKEN"), v.GetString("JIRA_PASSWORD")),
		JiraPAT:          v.GetString("JIRA_PAT"),
		JiraAPIVersion:   v.GetString("JIRA_API_VERSION"),
		JiraPageSize:     v.GetInt("JIRA_PAGE_SIZE"),
		StoryPointsField: strings.TrimSpace(v.GetString("STORY_POINTS_FIELD")),
		EpicJQL:          v.GetString("JIRA_EPIC_JQL"),
		EpicIssueJQL:     v.GetString("JIRA_EPIC_ISSUE_JQL"),
		HTTPTimeout:      v.GetDuration("HTTP_TIMEOUT"),
		WorkersJira:      v.GetInt("WORKERS_JIRA"),

		LLMProvider:     provider,
		LLMFallbacks:    ParseFallbacks(v.GetString("LLM_FALLBACKS"), provider),
		LLMTimeout:      v.GetDuration("LLM_TIMEOUT"),
		LLMBudgetTokens: v.GetInt("LLM_TOKEN_BUDGET"),

		OpenAIKey:     v.GetString("OPENAI_API_KEY"),
		OpenAIModel:   v.GetString("OPENAI_MODEL"),
		OpenAIBaseURL: v.GetString("OPENAI_BASE_URL"),

		AnthropicKey:   v.GetString("ANTHROPIC_API_KEY"),
		AnthropicModel: v.GetString("ANTHROPIC_MODEL"),

		OllamaURL:   v.GetString("OLLAMA_URL"),
		OllamaModel: v.GetString("OLLAMA_MODEL"),

		DefaultSprints: v.GetInt("DEFAULT_SPRINTS"),
		SprintLength:   v.GetDuration("SPRINT_LENGTH"),
		DefaultWindow:  v.GetDuration("DEFAULT_WINDOW"),

		TelegramToken:         v.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookSecret: v.GetString("TELEGRAM_WEBHOOK_SECRET"),
		TelegramChatIDs:       parseInt64s(v.GetString("TELEGRAM_CHAT_IDS")),
		TelegramChatUsernames: parseStrings(v.GetString("TELEGRAM_CHAT_USERNAMES")),
		TelegramAllowAll:      v.GetBool("TELEGRAM_ALLOW_ALL"),

		WorkersPipeline: v.GetInt("WORKERS_PIPELINE"),
		QueueSize:       v.GetInt("QUEUE_SIZE"),
		PipelineTimeout: v.GetDuration("PIPELINE_TIMEOUT"),

		ReportCron:  strings.TrimSpace(v.GetString("REPORT_CRON")),
		ReportQuery: strings.TrimSpace(v.GetString("REPORT_QUERY")),
		SweepCron:   strings.TrimSpace(v.GetString("SWEEP_CRON")),

		SessionTTL:      v.GetDuration("SESSION_TTL"),
		SessionMaxTurns: v.GetInt("SESSION_MAX_TURNS"),
	}
	cfg.JiraFields = WithStoryPoints(parseStrings(v.GetString("JIRA_FIELDS")), cfg.StoryPointsField)

	// Fallback: if TELEGRAM_CHAT_IDS provided but non-numeric, treat as usernames
	if len(cfg.TelegramChatIDs) == 0 {
		raw := strings.TrimSpace(v.GetString("TELEGRAM_CHAT_IDS"))
		if raw != "" && strings.ContainsFunc(raw, func(r rune) bool {
			return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '@' || r == '_'
		}) {
			cfg.TelegramChatUsernames = append(cfg.TelegramChatUsernames, parseStrings(raw)...)
		}
	}

	if loc, err := time.LoadLocation(cfg.TZ); err == nil {
		time.Local = loc
	} else {
		log.Printf("warning: cannot load TZ %s: %v", cfg.TZ, err)
	}
	return cfg
}

// WithStoryPoints appends the story points field id when the list lacks it.
func WithStoryPoints(fields []string, pointsField string) []string {
	out := make([]string, 0, len(fields)+1)
	seen := map[string]bool{}
	for _, f := range fields {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	if pointsField != "" && !seen[pointsField] {
		out = append(out, pointsField)
	}
	return out
}

// Routes returns the primary provider followed by the configured fallbacks,
// without duplicates.
func (c Config) Routes() []Route {
	primary := Route{Provider: c.LLMProvider, Model: c.ModelFor(c.LLMProvider)}
	out := []Route{primary}
	seen := map[string]bool{primary.String(): true}
	for _, r := range c.LLMFallbacks {
		if seen[r.String()] {
			continue
		}
		seen[r.String()] = true
		out = append(out, r)
	}
	return out
}

// ModelFor returns the configured default model of a provider.
func (c Config) ModelFor(provider string) string {
	switch provider {
	case "anthropic":
		return c.AnthropicModel
	case "ollama":
		return c.OllamaModel
	default:
		return c.OpenAIModel
	}
}

// Validate reports settings the assistant cannot run without.
func (c Config) Validate() error {
	var errs []error
	if c.JiraBaseURL == "" {
		errs = append(errs, errors.New("JIRA_BASE_URL is required"))
	}
	if c.JiraPAT == "" && (c.JiraEmail == "" || c.JiraAPIToken == "") {
		errs = append(errs, errors.New("JIRA_EMAIL and JIRA_API_TOKEN (or JIRA_PAT) are required"))
	}
	if c.StoryPointsField == "" {
		errs = append(errs, errors.New("STORY_POINTS_FIELD must not be empty"))
	}
	switch c.JiraAPIVersion {
	case "2", "3":
	default:
		errs = append(errs, fmt.Errorf("JIRA_API_VERSION must be 2 or 3, got %q", c.JiraAPIVersion))
	}
	return errors.Join(errs...)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
