package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/gotcp/relay"
	"github.com/gotcp/relay/internal/config"
	"github.com/gotcp/relay/internal/logging"
	"github.com/gotcp/relay/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := cfg.Options()
	opts.Observer = relay.MultiObserver(logging.NewObserver(logger), metrics.NewObserver(registry))

	reactor, err := relay.New(opts)
	if err != nil {
		slog.Error("Failed to start reactor", "error", err)
		os.Exit(1)
	}
	metrics.RegisterReactor(registry, reactor)

	slog.Info("Relay listening",
		"addr", reactor.Addr().String(),
		"policy", opts.Policy.String(),
		"framing", opts.Framing.String(),
		"workers", opts.Workers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return reactor.Run(gctx)
	})

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			slog.Info("Metrics server listening", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	runErr := g.Wait()
	slog.Info("Shutting down relay")
	if err := reactor.Close(); err != nil {
		slog.Error("Reactor close error", "error", err)
	}
	if runErr != nil {
		slog.Error("Relay stopped with error", "error", runErr)
		os.Exit(1)
	}
}
