/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/HamedShams/jira-pulse/internal/adapters/jira"
	"github.com/HamedShams/jira-pulse/internal/adapters/langchain"
	"github.com/HamedShams/jira-pulse/internal/adapters/openai"
	"github.com/HamedShams/jira-pulse/internal/adapters/telegram"
	"github.com/HamedShams/jira-pulse/internal/aggregate"
	"github.com/HamedShams/jira-pulse/internal/changes"
	"github.com/HamedShams/jira-pulse/internal/config"
	"github.com/HamedShams/jira-pulse/internal/hierarchy"
	"github.com/HamedShams/jira-pulse/internal/http"
	"github.com/HamedShams/jira-pulse/internal/intent"
	"github.com/HamedShams/jira-pulse/internal/jobs"
	"github.com/HamedShams/jira-pulse/internal/llm"
	"github.com/HamedShams/jira-pulse/internal/logger"
	"github.com/HamedShams/jira-pulse/internal/services"
	"github.com/HamedShams/jira-pulse/internal/session"
	"github.com/HamedShams/jira-pulse/internal/telemetry"
	"github.com/rs/zerolog"
)

// core is the request pipeline shared by every command.
type core struct {
	cfg       config.Config
	log       zerolog.Logger
	jira      *jira.Client
	assistant *services.Assistant
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func newCore(cfg config.Config, log zerolog.Logger) (*core, error) {
	jc, err := jira.NewClient(cfg, log)
	if err != nil {
		return nil, err
	}
	chain := llm.NewChain(backends(cfg, log), cfg.LLMTimeout, log)
	names := make([]string, 0, len(chain.Routes()))
	for _, r := range chain.Routes() {
		names = append(names, r.String())
	}
	log.Info().Strs("routes", names).Msg("model routes ready")
	router, err := intent.NewRouter(chain, intent.Defaults{
		Sprints:      cfg.DefaultSprints,
		SprintLength: cfg.SprintLength,
		Window:       cfg.DefaultWindow,
	}, log)
	if err != nil {
		return nil, err
	}
	bridge := intent.NewBridge(chain, llm.NewTokenCounter(), cfg.LLMBudgetTokens, log)
	a := services.NewAssistant(router, bridge,
		hierarchy.New(cfg, jc, log),
		aggregate.New(jc, cfg.DefaultSprints, log),
		changes.BrowseLinks(cfg.JiraBaseURL), log)
	return &core{cfg: cfg, log: log, jira: jc, assistant: a}, nil
}

// backends builds one backend per configured provider, in fallback order.
// Providers that cannot be built are logged and skipped.
func backends(cfg config.Config, log zerolog.Logger) []llm.Route {
	built := map[string]llm.Backend{}
	var routes []llm.Route
	for _, r := range cfg.Routes() {
		b, ok := built[r.Provider]
		if !ok {
			var err error
			b, err = newBackend(cfg, r.Provider, log)
			if err != nil {
				log.Warn().Err(err).Str("route", r.String()).Msg("model route disabled")
				continue
			}
			built[r.Provider] = b
		}
		routes = append(routes, llm.Route{Backend: b, Model: r.Model})
	}
	if len(routes) == 0 {
		log.Warn().Msg("no model routes; using pattern classification and plain rendering")
	}
	return routes
}

func newBackend(cfg config.Config, provider string, log zerolog.Logger) (llm.Backend, error) {
	switch provider {
	case "openai":
		if strings.TrimSpace(cfg.OpenAIKey) == "" {
			return nil, errors.New("openai: missing key")
		}
		return openai.NewClient(cfg, log), nil
	case "anthropic":
		return langchain.NewAnthropic(cfg, log)
	case "ollama":
		return langchain.NewOllama(cfg, log)
	}
	return nil, fmt.Errorf("unknown LLM provider %q", provider)
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New(cfg)
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	metrics, err := telemetry.Init(ctx, "jira-pulse")
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	c, err := newCore(cfg, log)
	if err != nil {
		return err
	}
	tg := telegram.NewClient(cfg, log)
	sessions := session.NewStore(cfg.SessionTTL, cfg.SessionMaxTurns)
	dedup := session.NewDedup(10 * time.Minute)

	pool := jobs.NewPool(cfg.WorkersPipeline, cfg.QueueSize, cfg.PipelineTimeout, log)
	pool.Start()
	defer pool.Stop()

	h := http.NewHandlers(cfg, log, http.Deps{
		Assistant: c.assistant,
		Pool:      pool,
		Telegram:  tg,
		Sessions:  sessions,
		Dedup:     dedup,
		Metrics:   metrics,
	})
	go resolveChats(ctx, cfg, tg, h, log)
	go registerWebhook(cfg, tg, log)

	var rep *services.ScheduledReport
	if cfg.ReportCron != "" {
		rep = services.NewScheduledReport(c.assistant, tg, cfg.ReportQuery, cfg.TelegramChatIDs, log)
	}
	cr, err := jobs.NewCron(cfg, log, reporterOrNil(rep), sessions, dedup)
	if err != nil {
		return err
	}
	cr.Start()
	defer cr.Stop()

	srv := &nethttp.Server{Addr: cfg.HTTPAddr, Handler: http.NewRouter(cfg, log, h), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info().Str("addr", cfg.HTTPAddr).Msg("serving")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
			return err
		}
	}
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	return srv.Shutdown(shutdownCtx)
}

// reporterOrNil keeps a nil *ScheduledReport from becoming a non-nil
// interface.
func reporterOrNil(r *services.ScheduledReport) jobs.Reporter {
	if r == nil {
		return nil
	}
	return r
}

// resolveChats adds TELEGRAM_CHAT_USERNAMES to the allow-list.
func resolveChats(ctx context.Context, cfg config.Config, tg *telegram.Client, h *http.Handlers, log zerolog.Logger) {
	for _, name := range cfg.TelegramChatUsernames {
		rctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		id, err := tg.ResolveUsername(rctx, name)
		cancel()
		if err != nil {
			log.Error().Err(err).Str("username", name).Msg("telegram username resolve failed")
			continue
		}
		h.Allow(id)
		log.Info().Str("username", name).Int64("chat", id).Msg("telegram chat allowed")
	}
}

// registerWebhook sets the webhook only for an HTTPS PUBLIC_BASE_URL.
func registerWebhook(cfg config.Config, tg *telegram.Client, log zerolog.Logger) {
	if cfg.TelegramWebhookSecret == "" || !strings.HasPrefix(strings.ToLower(cfg.PublicBaseURL), "https://") {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	webhookURL := strings.TrimRight(cfg.PublicBaseURL, "/") + "/telegram/webhook/" + cfg.TelegramWebhookSecret
	if err := tg.SetWebhook(ctx, webhookURL, cfg.TelegramWebhookSecret); err != nil {
		log.Error().Err(err).Msg("telegram setWebhook failed")
		return
	}
	log.Info().Msg("telegram setWebhook ok")
}

func runAsk(ctx context.Context, out io.Writer, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.NewWithWriter(cfg, os.Stderr)
	c, err := newCore(cfg, log)
	if err != nil {
		return err
	}
	if cfg.PipelineTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.PipelineTimeout)
		defer cancel()
	}
	reply := c.assistant.Answer(ctx, strings.Join(args, " "), nil)
	_, err = fmt.Fprintln(out, reply.Text)
	return err
}

func runCheck(ctx context.Context, out io.Writer, project string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.NewWithWriter(cfg, os.Stderr)
	jc, err := jira.NewClient(cfg, log)
	if err != nil {
		return err
	}
	boards, err := jc.Boards(ctx, strings.ToUpper(project))
	if err != nil {
		return fmt.Errorf("jira check failed: %w", err)
	}
	fmt.Fprintf(out, "jira ok: %s (api v%s), %d boards\n", cfg.JiraBaseURL, cfg.JiraAPIVersion, len(boards))
	fmt.Fprintf(out, "search: page size %d, fields %s\n", jc.PageSize(), strings.Join(jc.Fields(), ","))
	for _, b := range boards {
		fmt.Fprintf(out, "  %d\t%s\t%s\n", b.ID, b.Type, b.Name)
	}
	return nil
}
