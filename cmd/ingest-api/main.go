package main

import (
	"context"
	"flag"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/medicalexcom/medx-ingest-api-sub000/internal/api"
	"github.com/medicalexcom/medx-ingest-api-sub000/internal/cache"
	"github.com/medicalexcom/medx-ingest-api-sub000/internal/config"
	"github.com/medicalexcom/medx-ingest-api-sub000/internal/fetcher"
)

func main() {
	cfgPath := flag.String("config", "", "Path to the ingest configuration file")
	flag.Parse()

	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := buildLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("failed to initialise render cache: %v", err)
	}
	defer store.Close()

	renderer, err := buildRenderer(cfg)
	if err != nil {
		log.Fatalf("failed to initialise renderer: %v", err)
	}

	client := fetcher.NewClient(renderer, store, fetcher.Options{
		MaxAttempts:    cfg.Fetch.MaxAttempts,
		InitialBackoff: cfg.Fetch.InitialBackoff.Duration,
		BackoffFactor:  cfg.Fetch.BackoffFactor,
		MaxBodyBytes:   cfg.Fetch.MaxBodyBytes,
		UserAgent:      cfg.Fetch.UserAgent,
		SSRFGuard:      cfg.Fetch.SSRFGuard,
		RatePerSecond:  cfg.Fetch.RatePerSecond,
		RateBurst:      cfg.Fetch.RateBurst,
		WallClockWarn:  cfg.Fetch.WallClockWarn.Duration,
	}, logger)

	server := api.NewServer(client, cfg, logger)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", "error", err)
		}
	}()

	logger.Info("ingest api listening",
		"addr", cfg.Server.Addr,
		"render_engine", cfg.Render.Engine,
		"cache_backend", cfg.Cache.Backend)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
	logger.Info("ingest api stopped")
}

func buildLogger(cfg config.LoggingConfig) *slog.Logger {
	var out io.Writer = os.Stdout
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
	}

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Structured {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}

func buildStore(cfg *config.Config) (cache.Store, error) {
	if cfg.Cache.Backend == "redis" {
		return cache.NewRedis(cache.RedisOptions{
			Host:      cfg.Cache.Redis.Host,
			Port:      cfg.Cache.Redis.Port,
			Password:  cfg.Cache.Redis.Password,
			DB:        cfg.Cache.Redis.DB,
			KeyPrefix: cfg.Cache.Redis.Key,
			TTL:       cfg.Cache.TTL.Duration,
			Timeout:   cfg.Cache.Redis.Timeout.Duration,
		})
	}
	return cache.NewMemory(cfg.Cache.TTL.Duration, cfg.Cache.MaxItems), nil
}

func buildRenderer(cfg *config.Config) (fetcher.Renderer, error) {
	switch cfg.Render.Engine {
	case "chromedp", "chrome":
		return fetcher.NewChromedpRenderer(fetcher.ChromedpOptions{
			Timeout:            cfg.Render.Timeout.Duration,
			UserAgent:          cfg.Fetch.UserAgent,
			MaxBodyBytes:       cfg.Fetch.MaxBodyBytes,
			ConcurrentSessions: cfg.Render.Sessions,
			CaptureDelay:       1500 * time.Millisecond,
		}), nil
	default:
		return fetcher.NewRemoteRenderer(fetcher.RemoteOptions{
			BaseURL:      cfg.Render.BaseURL,
			Token:        cfg.Render.Token,
			Timeout:      cfg.Render.Timeout.Duration,
			MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		})
	}
}
