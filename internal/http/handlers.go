/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/HamedShams/jira-pulse/internal/config"
	"github.com/HamedShams/jira-pulse/internal/domain"
	"github.com/HamedShams/jira-pulse/internal/jobs"
	"github.com/HamedShams/jira-pulse/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	helpText = "*Jira Pulse*\n" +
		"Ask me about your Jira projects in plain words, for example:\n" +
		"• metrics for XYZ last 3 sprints\n" +
		"• status changes for initiative PROG-123 in the last 2 weeks\n" +
		"• issues in blocked status for initiative PROG-123 since 2025-01-01\n\n" +
		"I remember the last few messages, so follow-ups like \"and last month?\" work.\n" +
		"/reset clears the conversation."
	resetText = "Conversation cleared."
	busyText  = "I'm busy with other requests right now. Please try again in a minute."
)

type assistant interface {
	Answer(ctx context.Context, text string, history domain.Conversation) services.Reply
}

type submitter interface {
	Submit(t jobs.Task) (string, error)
}

type messenger interface {
	SendLong(ctx context.Context, chatID int64, text string) error
	SendTyping(ctx context.Context, chatID int64) error
}

type conversations interface {
	Update(chatID int64, fn func(domain.Conversation) domain.Conversation)
	Reset(chatID int64)
	Len() int
}

type deduper interface {
	First(id int64) bool
}

// Deps are the collaborators of the HTTP layer.
type Deps struct {
	Assistant assistant
	Pool      submitter
	Telegram  messenger
	Sessions  conversations
	Dedup     deduper
	Metrics   http.Handler
}

type Handlers struct {
	deps Deps
	cfg  config.Config
	log  zerolog.Logger

	mu      sync.RWMutex
	allowed map[int64]bool
}

func NewHandlers(cfg config.Config, log zerolog.Logger, d Deps) *Handlers {
	h := &Handlers{deps: d, cfg: cfg, log: log.With().Str("component", "http").Logger(), allowed: map[int64]bool{}}
	h.Allow(cfg.TelegramChatIDs...)
	return h
}

// Allow adds chats to the allow-list, e.g. ids resolved from usernames.
func (h *Handlers) Allow(ids ...int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range ids {
		h.allowed[id] = true
	}
}

func (h *Handlers) chatAllowed(id int64) bool {
	if h.cfg.TelegramAllowAll {
		return true
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.allowed) == 0 && len(h.cfg.TelegramChatUsernames) == 0 {
		return true
	}
	return h.allowed[id]
}

func (h *Handlers) Healthz(c *gin.Context) {
	resp := gin.H{"ok": true}
	if h.deps.Sessions != nil {
		resp["sessions"] = h.deps.Sessions.Len()
	}
	c.JSON(http.StatusOK, resp)
}

type update struct {
	UpdateID int64    `json:"update_id"`
	Message  *message `json:"message"`
}

type message struct {
	MessageID int64 `json:"message_id"`
	From      *struct {
		ID    int64 `json:"id"`
		IsBot bool  `json:"is_bot"`
	} `json:"from"`
	Chat struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	Text string `json:"text"`
}

// TelegramWebhook acknowledges at once; answers are produced on the pool
// and delivered to the chat.
func (h *Handlers) TelegramWebhook(c *gin.Context) {
	headerSecret := c.GetHeader("X-Telegram-Bot-Api-Secret-Token")
	pathSecret := c.Param("secret")
	// either the header (preferred) or the path secret
	if headerSecret != h.cfg.TelegramWebhookSecret && pathSecret != h.cfg.TelegramWebhookSecret {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	var upd update
	if err := c.ShouldBindJSON(&upd); err != nil {
		h.log.Warn().Err(err).Msg("telegram webhook: bad update")
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	defer c.JSON(http.StatusOK, gin.H{"ok": true})

	m := upd.Message
	if m == nil || strings.TrimSpace(m.Text) == "" {
		return
	}
	log := h.log.With().Int64("update", upd.UpdateID).Int64("chat", m.Chat.ID).Logger()
	if m.From != nil && m.From.IsBot {
		log.Debug().Msg("telegram webhook: bot message dropped")
		return
	}
	if h.deps.Dedup != nil && !h.deps.Dedup.First(upd.UpdateID) {
		log.Info().Msg("telegram webhook: duplicate update dropped")
		return
	}
	if !h.chatAllowed(m.Chat.ID) {
		log.Warn().Msg("telegram webhook: chat not allowed")
		return
	}
	h.dispatch(m.Chat.ID, strings.TrimSpace(m.Text), log)
}

func (h *Handlers) dispatch(chatID int64, text string, log zerolog.Logger) {
	var run func(ctx context.Context) (string, error)
	switch command(text) {
	case "/start", "/help":
		run = func(context.Context) (string, error) { return helpText, nil }
	case "/reset":
		h.deps.Sessions.Reset(chatID)
		run = func(context.Context) (string, error) { return resetText, nil }
	default:
		run = func(ctx context.Context) (string, error) {
			if err := h.deps.Telegram.SendTyping(ctx, chatID); err != nil {
				log.Warn().Err(err).Msg("typing indicator failed")
			}
			var reply services.Reply
			h.deps.Sessions.Update(chatID, func(history domain.Conversation) domain.Conversation {
				reply = h.deps.Assistant.Answer(ctx, text, history)
				return reply.History
			})
			return reply.Text, nil
		}
	}
	id, err := h.deps.Pool.Submit(jobs.Task{Run: run, Deliver: h.deliverTo(chatID)})
	if err != nil {
		log.Error().Err(err).Msg("telegram webhook: task rejected")
		if errors.Is(err, jobs.ErrQueueFull) {
			go h.notify(chatID, busyText, log)
		}
		return
	}
	log.Info().Str("task", id).Msg("telegram webhook: task queued")
}

func (h *Handlers) deliverTo(chatID int64) func(ctx context.Context, text string, err error) {
	return func(ctx context.Context, text string, err error) {
		if err != nil {
			text = services.Explain(err)
		}
		if sendErr := h.deps.Telegram.SendLong(ctx, chatID, text); sendErr != nil {
			h.log.Error().Err(sendErr).Int64("chat", chatID).Msg("telegram delivery failed")
		}
	}
}

func (h *Handlers) notify(chatID int64, text string, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.deps.Telegram.SendLong(ctx, chatID, text); err != nil {
		log.Error().Err(err).Msg("telegram notify failed")
	}
}

// command returns the bot command of text without a @botname suffix.
func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(strings.Fields(text)[0], "@")
	return strings.ToLower(cmd)
}

type assistantRequest struct {
	Message      string              `json:"message" binding:"required"`
	Conversation domain.Conversation `json:"conversation"`
}

type assistantResponse struct {
	Response     string              `json:"response"`
	Conversation domain.Conversation `json:"conversation"`
}

// Assistant answers synchronously; meant for local debugging.
func (h *Handlers) Assistant(c *gin.Context) {
	var req assistantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	if h.cfg.PipelineTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.PipelineTimeout)
		defer cancel()
	}
	reply := h.deps.Assistant.Answer(ctx, req.Message, req.Conversation)
	c.JSON(http.StatusOK, assistantResponse{Response: reply.Text, Conversation: reply.History})
}
