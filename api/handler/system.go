package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ddevcap/storia/ambiance"
	"github.com/ddevcap/storia/config"
	"github.com/ddevcap/storia/gutendex"
	"github.com/ddevcap/storia/static"
)

// appVersion is reported by GET /.
const appVersion = "1.0.0"

const readyTimeout = 2 * time.Second

// Pinger is satisfied by the database handle.
type Pinger interface {
	Ping(ctx context.Context) error
}

type SystemHandler struct {
	cfg        config.Config
	db         Pinger
	gutendex   *gutendex.Client
	music      *ambiance.Service
	elevenLabs *ambiance.ElevenLabs
}

func NewSystemHandler(cfg config.Config, db Pinger, gd *gutendex.Client, music *ambiance.Service) *SystemHandler {
	return &SystemHandler{cfg: cfg, db: db, gutendex: gd, music: music, elevenLabs: music.ElevenLabs()}
}

// Health handles GET /health.
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /ready. It fails when the database or a remote audio
// cache does not answer, or Gutendex has been marked unavailable by the
// health checker.
func (h *SystemHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	checks := gin.H{"database": "ok", "gutendex": "ok"}
	ready := true
	if err := h.db.Ping(ctx); err != nil {
		checks["database"] = err.Error()
		ready = false
	}
	if !h.gutendex.Available() {
		checks["gutendex"] = "unavailable"
		ready = false
	}
	if status, ok := h.gutendex.HealthStatus(); ok {
		checks["gutendex_health"] = status
	}
	if checked, err := h.music.PingCache(ctx); checked {
		checks["audio_cache"] = "ok"
		if err != nil {
			checks["audio_cache"] = err.Error()
			ready = false
		}
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": checks})
}

// Index handles GET /.
func (h *SystemHandler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "Storia",
		"version": appVersion,
		"user":    userFromCtx(c),
	})
}

// About handles GET /about.
func (h *SystemHandler) About(c *gin.Context) {
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(static.About))
}

// Test handles GET /api/test.
func (h *SystemHandler) Test(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "success",
		"message":     "API server is running",
		"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
		"environment": h.cfg.AppEnv,
	})
}

// DebugEnv handles GET /api/debug/env. The API key is never returned in full.
func (h *SystemHandler) DebugEnv(c *gin.Context) {
	keyLen, keyPrefix := h.elevenLabs.KeyInfo()
	if keyLen == 0 {
		keyPrefix = "not set"
	}
	c.JSON(http.StatusOK, gin.H{
		"appEnv":              h.cfg.AppEnv,
		"elevenlabsKeyLength": keyLen,
		"elevenlabsKeyPrefix": keyPrefix,
		"listenAddr":          h.cfg.ListenAddr,
		"cacheDuration":       h.cfg.CacheDuration.String(),
		"redisCache":          h.cfg.RedisURL != "",
		"ambianceCommand":     len(h.cfg.AmbianceCommand) > 0,
	})
}

// TestElevenLabs handles GET /api/test/elevenlabs.
func (h *SystemHandler) TestElevenLabs(c *gin.Context) {
	models, err := h.elevenLabs.Models(c.Request.Context())
	if err != nil {
		status := http.StatusInternalServerError
		var apiErr *ambiance.APIError
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		c.JSON(status, gin.H{
			"status":  "error",
			"message": "Failed to connect to ElevenLabs API",
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Successfully connected to ElevenLabs API",
		"models":  models,
	})
}

// CheckKey handles GET /api/check-key-direct.
func (h *SystemHandler) CheckKey(c *gin.Context) {
	keyLen, keyPrefix := h.elevenLabs.KeyInfo()
	if !h.elevenLabs.HasKey() {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":    "error",
			"message":   ambiance.ErrNoAPIKey.Error(),
			"keyLength": 0,
			"keyPrefix": "none",
		})
		return
	}

	count, err := h.elevenLabs.VoiceCount(c.Request.Context())
	if err != nil {
		status := http.StatusInternalServerError
		message := "No response received from ElevenLabs API"
		var apiErr *ambiance.APIError
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
			message = fmt.Sprintf("API key validation failed with status %d", apiErr.StatusCode)
		}
		c.JSON(status, gin.H{
			"status":    "error",
			"message":   message,
			"details":   err.Error(),
			"keyLength": keyLen,
			"keyPrefix": keyPrefix,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "success",
		"message":     "API key is valid",
		"keyLength":   keyLen,
		"keyPrefix":   keyPrefix,
		"voicesCount": count,
	})
}

// NotFound answers unmatched routes.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
}
