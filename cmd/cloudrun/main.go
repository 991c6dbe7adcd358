// Package main provides the Google Cloud Run HTTP service for the video
// search scraper. It runs keyword searches in a stealth-patched browser,
// optionally harvests comments per item, and returns structured JSON.
// API key authentication is handled in this service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deeppoint-scraper/internal/config"
	"deeppoint-scraper/internal/logger"
	"deeppoint-scraper/internal/metrics"
	"deeppoint-scraper/internal/scraper"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const platformDouyin = "douyin"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "scraper: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: os.Getenv("DEBUG") == "true",
	})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	registry := scraper.NewRegistry()
	launcher := scraper.NewChromeLauncher(cfg.Browser, cfg.NavigationTimeout, log.Named("browser"))
	controller := scraper.NewController(*cfg, launcher,
		scraper.WithLogger(log.Named(platformDouyin)),
		scraper.WithMetrics(m),
	)
	if err := registry.Register(platformDouyin, controller); err != nil {
		return err
	}

	handler := NewCloudRunHandler(registry, *cfg, log.Named("http"))
	mux := http.NewServeMux()
	handler.Routes(mux)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting server", zap.String("port", port), zap.Bool("proxy", cfg.Browser.ProxyServer != ""))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
