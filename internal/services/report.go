/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

type Notifier interface {
	SendLong(ctx context.Context, chatID int64, text string) error
}

// ScheduledReport answers a fixed question and posts it to the configured
// chats.
type ScheduledReport struct {
	assistant *Assistant
	tg        Notifier
	query     string
	chats     []int64
	log       zerolog.Logger
}

func NewScheduledReport(a *Assistant, tg Notifier, query string, chats []int64, log zerolog.Logger) *ScheduledReport {
	return &ScheduledReport{assistant: a, tg: tg, query: query, chats: chats, log: log.With().Str("component", "report").Logger()}
}

func (r *ScheduledReport) Run(ctx context.Context) error {
	if r.query == "" || len(r.chats) == 0 {
		return errors.New("report: no query or chats configured")
	}
	reply := r.assistant.Answer(ctx, r.query, nil)
	var errs []error
	for _, chat := range r.chats {
		if err := r.tg.SendLong(ctx, chat, reply.Text); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chat, err))
		}
	}
	r.log.Info().Int("chats", len(r.chats)).Int("failed", len(errs)).Msg("report sent")
	return errors.Join(errs...)
}
