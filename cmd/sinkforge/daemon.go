package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lsm/sinkforge/internal/config"
	"github.com/lsm/sinkforge/internal/connector"
	"github.com/lsm/sinkforge/internal/observability"
	"github.com/lsm/sinkforge/internal/tracing"
)

// runDaemon provisions every configured sink, then keeps running: it serves
// metrics and health, watches the config directory, and provisions sinks
// added while it is up. Already-provisioned sinks are never re-provisioned.
func runDaemon() error {
	logger := observability.NewLogger("sinkforge", observability.GetLogLevel(""))
	slog.SetDefault(logger)

	configDir := os.Getenv("SINKFORGE_CONFIG_DIR")
	if configDir == "" {
		configDir = "/etc/sinkforge/sinks"
	}

	metricsAddr := os.Getenv("SINKFORGE_METRICS_ADDR")
	if metricsAddr == "" {
		metricsAddr = ":9090"
	}

	// Load configuration
	loader := config.NewLoader(configDir, logger)
	sinks, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if len(sinks) == 0 {
		return fmt.Errorf("no sink definitions found in %s", configDir)
	}

	// Tracing
	tracer, shutdownTracing, err := tracing.Initialize(tracing.GetConfig("sinkforge"), logger)
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}

	// Setup metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())
	metrics := observability.NewMetrics(reg)

	// Health server
	health := observability.NewHealthServer()

	// Start metrics + health HTTP server
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("GET /healthz", health.Handler())
	mux.Handle("GET /readyz", health.Handler())

	httpServer := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		logger.Info("metrics server starting", "addr", metricsAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	builder := connector.NewBuilder(logger,
		connector.WithTracer(tracer),
		connector.WithMetrics(metrics),
	)

	provisioned := make(map[string]connector.SinkConnector)
	provisionAll := func(defs map[string]*config.SinkDefinition) {
		for name, def := range defs {
			if _, done := provisioned[name]; done {
				continue
			}
			conn, err := provisionSink(ctx, builder, def, logger)
			if err != nil {
				logger.Error("sink provisioning failed", "sink", name, "error", err)
				continue
			}
			provisioned[name] = conn
		}
	}

	provisionAll(sinks)
	health.SetReady(true)

	// Newly added definitions are provisioned on reload. Changes to a sink
	// that was already provisioned are ignored until restart.
	changes := make(chan map[string]*config.SinkDefinition, 1)
	loader.OnChange(func(defs map[string]*config.SinkDefinition) {
		select {
		case changes <- defs:
		default:
		}
	})

	watchDone := make(chan struct{})
	go func() {
		if err := loader.Watch(watchDone); err != nil {
			logger.Error("config watcher error", "error", err)
		}
	}()

	for {
		select {
		case defs := <-changes:
			provisionAll(defs)
		case <-ctx.Done():
			// Graceful shutdown
			health.SetReady(false)
			close(watchDone)

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
			if err := shutdownTracing(shutdownCtx); err != nil {
				logger.Error("tracing shutdown error", "error", err)
			}

			logger.Info("shutdown complete")
			return nil
		}
	}
}

// provisionSink builds the sink described by def. A definition without a
// pinned id gets a fresh one per attempt, so a retried failure never races
// the leftovers of the previous attempt.
func provisionSink(ctx context.Context, builder *connector.Builder, def *config.SinkDefinition, logger *slog.Logger) (connector.SinkConnector, error) {
	id := def.ID
	if id == "" {
		id = uuid.NewString()
	}

	logger.Info("provisioning sink", "sink", def.Name, "sink_id", id)
	return builder.Build(ctx, def.Builder(), connector.SinkID(id))
}
