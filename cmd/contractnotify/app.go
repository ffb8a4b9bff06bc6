package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/c360studio/semstreams/natsclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/c360studio/contractnotify/config"
	contractnotifier "github.com/c360studio/contractnotify/processor/contract-notifier"
	"github.com/c360studio/contractnotify/responsibility"
)

const shutdownTimeout = 30 * time.Second

// App wires configuration, the NATS connection and the notifier component.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	nc       *natsclient.Client
	registry *prometheus.Registry
	metrics  *contractnotifier.Metrics
	comp     *contractnotifier.Component
}

// NewApp creates an application over a validated config.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &App{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  contractnotifier.NewMetrics(registry),
	}
}

// Connect opens the NATS connection when a URL is configured. Without one
// the app runs standalone.
func (a *App) Connect(ctx context.Context) error {
	url := a.cfg.NATS.URL
	if url == "" {
		a.logger.Info("No NATS URL configured, running without NATS")
		return nil
	}

	a.logger.Info("Connecting to NATS", "url", url)

	client, err := natsclient.NewClient(url,
		natsclient.WithName(a.cfg.NATS.Name),
		natsclient.WithMaxReconnects(a.cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(a.cfg.NATS.ReconnectWait.Duration()),
	)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		return wrapNATSError(err, url)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.WaitForConnection(connCtx); err != nil {
		return wrapNATSError(err, url)
	}

	a.nc = client
	a.logger.Info("Connected to NATS", "url", url)
	return nil
}

// Build creates the notifier component.
func (a *App) Build(ctx context.Context, opts ...contractnotifier.Option) error {
	opts = append([]contractnotifier.Option{contractnotifier.WithMetrics(a.metrics)}, opts...)

	comp, err := contractnotifier.Build(ctx, contractnotifier.FromAppConfig(a.cfg), a.nc, a.logger, opts...)
	if err != nil {
		return fmt.Errorf("build notifier: %w", err)
	}
	if err := comp.Initialize(); err != nil {
		return fmt.Errorf("initialize notifier: %w", err)
	}
	a.comp = comp
	return nil
}

// RunOnce runs a single batch.
func (a *App) RunOnce(ctx context.Context) (*contractnotifier.RunReport, error) {
	if a.nc == nil && a.cfg.Mail.Publish {
		a.logger.Warn("Letters are prepared but not published without NATS")
	}
	return a.comp.RunOnce(ctx)
}

// Resolve resolves one contract.
func (a *App) Resolve(ctx context.Context, contractID string) (responsibility.Responsible, error) {
	return a.comp.Resolve(ctx, contractID)
}

// Runs returns up to limit stored reports, newest first.
func (a *App) Runs(ctx context.Context, limit int) ([]*contractnotifier.RunReport, error) {
	reports, err := a.comp.Runs().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

// Serve runs the scheduled notifier and the metrics endpoint until ctx ends.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if addr := a.cfg.Metrics.Addr; addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           a.metricsHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			a.logger.Info("Serving metrics", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
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

	if err := a.comp.Start(gctx); err != nil {
		cancel()
		_ = g.Wait()
		return fmt.Errorf("start notifier: %w", err)
	}
	a.logger.Info("Contractnotify ready", "version", Version)

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("Received shutdown signal")
		return a.comp.Stop(shutdownTimeout)
	})

	return g.Wait()
}

func (a *App) metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if a.comp == nil || !a.comp.Health().Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Shutdown closes the NATS connection.
func (a *App) Shutdown() {
	if a.nc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.nc.Close(ctx); err != nil {
		a.logger.Warn("Failed to close NATS connection", "error", err)
	}
}

// newLogger creates a text logger at the named level and makes it the default.
func newLogger(level string, w io.Writer) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

// wrapNATSError provides helpful guidance when NATS connection fails.
func wrapNATSError(err error, url string) error {
	errStr := err.Error()

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no servers available") ||
		strings.Contains(errStr, "timeout") {
		return fmt.Errorf(`NATS connection failed: %w

NATS is not running at %s.

To start NATS:
  docker compose up -d nats

Or run without NATS by leaving nats.url empty or using --dry-run.`, err, url)
	}

	return fmt.Errorf("NATS connection failed: %w", err)
}
