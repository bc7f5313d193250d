/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/HamedShams/jira-pulse/internal/config"
	"github.com/rs/zerolog"
)

// MaxMessageLen stays under Telegram's 4096 character limit.
const MaxMessageLen = 4000

const defaultAPIBase = "https://api.telegram.org"

type Client struct {
	token string
	base  string
	http  *http.Client
	log   zerolog.Logger
}

type Option func(*Client)

// WithAPIBase points the client at another Bot API host.
func WithAPIBase(base string) Option {
	return func(c *Client) { c.base = strings.TrimRight(base, "/") }
}

func NewClient(cfg config.Config, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{token: cfg.TelegramToken, base: defaultAPIBase, http: &http.Client{Timeout: 10 * time.Second}, log: log.With().Str("component", "telegram").Logger()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SendMessage sends Markdown text and retries once without parse_mode when
// Telegram rejects the markup.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	err := c.send(ctx, chatID, text, "Markdown")
	if err == nil {
		return nil
	}
	c.log.Warn().Err(err).Int64("chat", chatID).Msg("markdown send failed; retrying plain")
	return c.SendMessagePlain(ctx, chatID, text)
}

// SendMessagePlain sends without parse_mode.
func (c *Client) SendMessagePlain(ctx context.Context, chatID int64, text string) error {
	return c.send(ctx, chatID, text, "")
}

// SendLong splits text at line boundaries and sends each chunk in order.
func (c *Client) SendLong(ctx context.Context, chatID int64, text string) error {
	for _, part := range ChunkText(text, MaxMessageLen) {
		if err := c.SendMessage(ctx, chatID, part); err != nil {
			return err
		}
	}
	return nil
}

// SendTyping shows the typing indicator in the chat.
func (c *Client) SendTyping(ctx context.Context, chatID int64) error {
	if c.token == "" || chatID == 0 {
		return fmt.Errorf("telegram: missing token or chat id")
	}
	return c.call(ctx, "sendChatAction", map[string]any{"chat_id": chatID, "action": "typing"}, nil)
}

func (c *Client) ResolveUsername(ctx context.Context, username string) (int64, error) {
	if c.token == "" || username == "" {
		return 0, fmt.Errorf("telegram: missing token or username")
	}
	var r struct {
		OK     bool `json:"ok"`
		Result struct {
			ID int64 `json:"id"`
		} `json:"result"`
	}
	if err := c.call(ctx, "getChat", map[string]any{"chat_id": username}, &r); err != nil {
		return 0, err
	}
	if !r.OK || r.Result.ID == 0 {
		return 0, fmt.Errorf("telegram: invalid getChat response")
	}
	return r.Result.ID, nil
}

// SetWebhook registers the webhook URL and secret with Telegram.
func (c *Client) SetWebhook(ctx context.Context, webhookURL string, secretToken string) error {
	if c.token == "" || webhookURL == "" || secretToken == "" {
		return fmt.Errorf("telegram: missing token, url or secret")
	}
	body := map[string]any{
		"url":                  webhookURL,
		"secret_token":         secretToken,
		"drop_pending_updates": true,
		"allowed_updates":      []string{"message"},
	}
	return c.call(ctx, "setWebhook", body, nil)
}

func (c *Client) send(ctx context.Context, chatID int64, text, parseMode string) error {
	if c.token == "" || chatID == 0 {
		return fmt.Errorf("telegram: missing token or chat id")
	}
	body := map[string]any{"chat_id": chatID, "text": text, "disable_web_page_preview": true}
	if parseMode != "" {
		body["parse_mode"] = parseMode
	}
	return c.call(ctx, "sendMessage", body, nil)
}

func (c *Client) call(ctx context.Context, method string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/%s", c.base, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("telegram %s status=%d body=%s", method, resp.StatusCode, string(bodyBytes))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ChunkText splits s into pieces of at most max runes, preferring line
// boundaries and hard-splitting lines that are longer than max.
func ChunkText(s string, max int) []string {
	if max <= 0 {
		return []string{s}
	}
	var chunks []string
	cur := ""
	curlen := 0
	for _, ln := range strings.Split(s, "\n") {
		rl := len([]rune(ln))
		if rl > max {
			if curlen > 0 {
				chunks = append(chunks, cur)
				cur, curlen = "", 0
			}
			r := []rune(ln)
			for i := 0; i < rl; i += max {
				chunks = append(chunks, string(r[i:min(i+max, rl)]))
			}
			continue
		}
		// newline counts when appending to a non-empty chunk
		extra := rl
		if curlen > 0 {
			extra++
		}
		switch {
		case curlen+extra > max:
			chunks = append(chunks, cur)
			cur, curlen = ln, rl
		case curlen == 0:
			cur, curlen = ln, rl
		default:
			cur += "\n" + ln
			curlen += extra
		}
	}
	if curlen > 0 {
		chunks = append(chunks, cur)
	}
	if len(chunks) == 0 {
		chunks = []string{""}
	}
	return chunks
}
