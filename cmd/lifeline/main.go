package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tailored-agentic-units/lifeline/api"
	"github.com/tailored-agentic-units/lifeline/kernel"
	"github.com/tailored-agentic-units/lifeline/observability"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to JSON or YAML config file (defaults when empty)")
		envFile    = flag.String("env", ".env", "Path to .env file loaded before config resolution")
		addr       = flag.String("addr", "", "Listen address (overrides config)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Failed to load env file: %v", err)
	}

	cfg := kernel.DefaultConfig()
	if *configFile != "" {
		loaded, err := kernel.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
	}
	if *addr != "" {
		cfg.Server.Address = *addr
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	metrics := observability.NewPrometheusObserver("lifeline")
	observability.RegisterObserver("slog", observability.NewSlogObserver(logger))
	observability.RegisterObserver("prometheus", metrics)
	if !slices.Contains(cfg.Observers, "prometheus") {
		cfg.Observers = append(cfg.Observers, "prometheus")
	}

	if cfg.Agent.ResolveAPIKey() == "" {
		logger.Warn("no completion API key configured", "env", cfg.Agent.APIKeyEnv)
	}

	runtime, err := kernel.New(&cfg)
	if err != nil {
		log.Fatalf("Failed to create kernel: %v", err)
	}
	defer runtime.Close()

	observer, err := observability.Resolve(cfg.Observers...)
	if err != nil {
		log.Fatalf("Failed to resolve observers: %v", err)
	}

	srv := &http.Server{
		Addr: cfg.Server.Address,
		Handler: api.NewServer(runtime,
			api.WithObserver(observer),
			api.WithMetrics(metrics.Handler()),
			api.WithRateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst),
		),
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Address, "store", cfg.Session.Backend)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
