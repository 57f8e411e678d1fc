package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ddevcap/storia/ambiance"
	"github.com/ddevcap/storia/api"
	"github.com/ddevcap/storia/cache"
	"github.com/ddevcap/storia/config"
	"github.com/ddevcap/storia/gutendex"
	"github.com/ddevcap/storia/paginator"
	"github.com/ddevcap/storia/session"
	"github.com/ddevcap/storia/store"
)

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	api.SeedInitialUser(context.Background(), db.Users(), cfg)

	sessions, err := session.New(db.SQL(), cfg)
	if err != nil {
		slog.Error("failed to set up sessions", "error", err)
		os.Exit(1)
	}

	bookCache := cache.New(cache.Options{DefaultTTL: cfg.CacheDuration, Capacity: cfg.CacheCapacity})
	go bookCache.Start()

	client := gutendex.NewClient(cfg)

	// Mark Gutendex unavailable on /ready after repeated failed pings.
	hc := gutendex.NewHealthChecker(client, cfg.HealthCheckInterval)
	client.SetHealthChecker(hc)
	hc.Start(context.Background())

	pager := paginator.New(bookCache, client.TextClient())

	var audioCache ambiance.AudioCache = ambiance.NewMemoryAudioCache(bookCache)
	var redisCache *ambiance.RedisAudioCache
	if cfg.RedisURL != "" {
		redisCache, err = ambiance.NewRedisAudioCache(context.Background(), cfg.RedisURL)
		if err != nil {
			slog.Error("failed to connect to redis audio cache", "error", err)
			os.Exit(1)
		}
		audioCache = redisCache
		slog.Info("using redis audio cache")
	}

	var analyzer ambiance.Analyzer = ambiance.KeywordAnalyzer{}
	var process *ambiance.ProcessAnalyzer
	if len(cfg.AmbianceCommand) > 0 {
		process = ambiance.NewProcessAnalyzer(cfg.AmbianceCommand, cfg.AmbianceTimeout)
		analyzer = ambiance.FallbackAnalyzer{Primary: process, Secondary: ambiance.KeywordAnalyzer{}}
		if !process.Available() {
			slog.Warn("ambiance analyzer command not found, using keyword analysis", "command", cfg.AmbianceCommand[0])
		}
	}

	music := ambiance.NewService(ambiance.Options{
		Analyzer:   analyzer,
		Process:    process,
		ElevenLabs: ambiance.NewElevenLabs(cfg),
		Fallback:   ambiance.NewFallbackAudio(cfg.FallbackAudioDir),
		Cache:      audioCache,
		MusicTTL:   2 * cfg.CacheDuration,
	})
	if !music.ElevenLabs().HasKey() {
		slog.Warn("ELEVENLABS_API_KEY is not set, music requests will use fallback audio")
	}

	h, stopRouter := api.NewRouter(api.Deps{
		Config:    cfg,
		DB:        db,
		Sessions:  sessions,
		Cache:     bookCache,
		Gutendex:  client,
		Paginator: pager,
		Ambiance:  music,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	go func() {
		slog.Info("storia listening", "addr", cfg.ListenAddr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	hc.Stop()
	bookCache.Stop()
	stopRouter()
	sessions.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	if redisCache != nil {
		_ = redisCache.Close()
	}
	slog.Info("server stopped")
}
