/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"github.com/HamedShams/jira-pulse/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func NewRouter(cfg config.Config, log zerolog.Logger, h *Handlers) *gin.Engine {
	if cfg.AppEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		c.Next()
		log.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Msg("http")
	})

	r.GET("/healthz", h.Healthz)
	if h.deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.deps.Metrics))
	}
	// header-authenticated and path-secret variants
	r.POST("/telegram/webhook", h.TelegramWebhook)
	r.POST("/telegram/webhook/:secret", h.TelegramWebhook)
	if cfg.DebugEndpoint || cfg.AppEnv == "dev" {
		r.POST("/assistant", h.Assistant)
	}
	return r
}
