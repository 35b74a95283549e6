package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/opsdesk/relay/internal/apierr"
	"github.com/opsdesk/relay/internal/core/config"
	"github.com/opsdesk/relay/internal/handling"
	"github.com/opsdesk/relay/internal/health"
	"github.com/opsdesk/relay/internal/metrics"
	"github.com/opsdesk/relay/internal/pipeline"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Outbound request resilience layer",
	Long:  `Relay fronts the dashboard's outbound calls with retry, caching, rate limiting, error classification, and metrics, and serves health and metrics endpoints.`,
	Run:   runRelay,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	if isDebug || cfg.Level == "debug" {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
		})
	}
	return slog.New(handler)
}

func runRelay(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)
	logger.Info("Logger initialized")

	backoff := apierr.Backoff{Base: cfg.Retry.BaseDelay, Cap: apierr.MaxRetryDelay, Jitter: 0.1}

	var monitoring, notifier handling.Sink
	if s := handling.NewWebhookSink(cfg.Monitoring.ErrorEndpoint); s != nil {
		monitoring = s
	}
	if s := handling.NewWebhookSink(cfg.Monitoring.CriticalWebhook); s != nil {
		notifier = s
	}

	handlerCfg := handling.DefaultConfig()
	handlerCfg.Backoff = backoff
	handler := handling.New(handlerCfg, logger, monitoring, notifier)

	collector := metrics.NewCollector(metrics.DefaultConfig())
	collector.Start()

	var cache pipeline.Store
	if cfg.Cache.Backend == "redis" {
		cache, err = pipeline.NewRedisStore(cfg.Redis)
		if err != nil {
			slog.Error("Failed to connect to redis cache", "error", err)
			os.Exit(1)
		}
	} else {
		cache = pipeline.NewMemoryStore(time.Minute)
	}

	pipelineCfg := cfg.PipelineConfig()
	pipelineCfg.Backoff = backoff
	client := pipeline.NewClient(pipelineCfg, handler, collector, cache, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Startup probe so a bad base URL shows up immediately in logs.
	if cfg.Backend.BaseURL != "" {
		if _, err := client.Get(ctx, "/"); err != nil {
			logger.Warn("Backend probe failed", "error", err)
		} else {
			logger.Info("Backend reachable", "base_url", cfg.Backend.BaseURL)
		}
	}

	srv := health.NewServer(collector, cfg.Server.Port)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("Health server failed", "error", err)
		}
	}()
	logger.Info("Relay started", "port", cfg.Server.Port, "config", cfgPath)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received signal, shutting down...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", "error", err)
	}
	collector.Stop()
	if err := cache.Close(); err != nil {
		logger.Warn("Cache close failed", "error", err)
	}

	logger.Info("Relay stopped gracefully")
}
