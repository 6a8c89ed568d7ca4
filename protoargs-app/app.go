package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tracekit/protoargs/metrics"
	"github.com/tracekit/protoargs/protoargs-app/config"
	apisrv "github.com/tracekit/protoargs/server/api"
	apimw "github.com/tracekit/protoargs/server/api/middleware"
	"github.com/tracekit/protoargs/x/argstore"
	"github.com/tracekit/protoargs/x/extract"
	"github.com/tracekit/protoargs/x/schema"
)

// App wires the schema pool, extraction service and HTTP API together.
type App struct {
	cfg *config.Config
	log zerolog.Logger

	pool    *schema.Pool
	service *extract.Service
	store   *argstore.Store

	apiServer *apisrv.Server

	startedAt time.Time
	cancel    context.CancelFunc
}

// NewApp creates a new application instance.
func NewApp(cfg *config.Config, log zerolog.Logger) (*App, error) {
	app := &App{
		cfg: cfg,
		log: log.With().Str("component", "app").Logger(),
	}

	if err := app.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize app: %w", err)
	}

	return app, nil
}

func (a *App) initialize() error {
	if err := a.initializeSchemas(); err != nil {
		return err
	}

	extractCfg := a.cfg.Extract
	extractCfg.MetricsEnabled = extractCfg.MetricsEnabled && a.cfg.Metrics.Enabled

	svc, err := extract.New(a.pool, extractCfg, a.log)
	if err != nil {
		return fmt.Errorf("failed to create extraction service: %w", err)
	}
	a.service = svc
	a.store = argstore.New()

	return a.initializeAPIServer()
}

// initializeSchemas loads every configured descriptor set into the pool.
func (a *App) initializeSchemas() error {
	a.pool = schema.NewPool()
	for _, path := range a.cfg.Schema.DescriptorSets {
		if err := a.pool.LoadFile(path); err != nil {
			return fmt.Errorf("failed to load descriptor set %s: %w", path, err)
		}
		a.log.Info().Str("path", path).Msg("Descriptor set loaded")
	}

	a.log.Info().Int("message_types", a.pool.Messages()).Msg("Schema pool ready")
	return nil
}

// initializeAPIServer sets up the HTTP API server with all endpoints.
func (a *App) initializeAPIServer() error {
	apiCfg := apisrv.Config{
		ListenAddr:        a.cfg.API.ListenAddr,
		ReadHeaderTimeout: a.cfg.API.ReadHeaderTimeout,
		ReadTimeout:       a.cfg.API.ReadTimeout,
		WriteTimeout:      a.cfg.API.WriteTimeout,
		IdleTimeout:       a.cfg.API.IdleTimeout,
		MaxHeaderBytes:    a.cfg.API.MaxHeaderBytes,
		MaxBodyBytes:      a.cfg.API.MaxBodyBytes,
	}
	s := apisrv.NewServer(apiCfg, a.log)
	s.Use(apimw.Recover(a.log))
	s.Use(apimw.RequestID())
	s.Use(apimw.Logger(a.log))
	if a.cfg.API.EnableCORS {
		s.EnableCORS()
	}

	s.Router.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
	s.Router.HandleFunc("/ready", a.handleReady).Methods(http.MethodGet)
	s.Router.HandleFunc("/stats", a.handleStats).Methods(http.MethodGet)

	if a.cfg.Metrics.Enabled {
		s.Router.Handle(a.cfg.Metrics.Path, promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})).
			Methods(http.MethodGet)
	}

	handler := apisrv.NewHandler(a.service, a.store, a.cfg.API.MaxBodyBytes, a.log)
	handler.RegisterMux(s.Router)

	a.apiServer = s
	return nil
}

// Run starts the application and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.startedAt = time.Now()

	go a.statsReporter(runCtx)

	apiErr := make(chan error, 1)
	go func() {
		apiErr <- a.apiServer.Start(runCtx)
	}()

	return a.runWithGracefulShutdown(runCtx, apiErr)
}

// runWithGracefulShutdown blocks until a shutdown signal, context
// cancellation or an API server failure.
func (a *App) runWithGracefulShutdown(ctx context.Context, apiErr <-chan error) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	a.log.Info().Msg("protoargs started successfully")

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info().Msg("Context canceled, initiating shutdown")
	case sig := <-sigCh:
		a.log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-apiErr:
		if err != nil {
			a.log.Error().Err(err).Msg("API server error")
			runErr = err
		}
	}

	if a.cancel != nil {
		a.cancel()
	}

	a.log.Info().Msg("Graceful shutdown complete")
	return runErr
}

// handleHealth responds to health check requests.
func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().UTC().Format(time.RFC3339))
}

// handleReady reports readiness. The service is ready once at least one
// message type is loaded, otherwise every decode would fail.
func (a *App) handleReady(w http.ResponseWriter, r *http.Request) {
	types := a.pool.Messages()

	status := "ready"
	code := http.StatusOK
	if types == 0 {
		status = "no_schemas"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"status":"%s","message_types":%d}`, status, types)
}

func (a *App) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(a.GetStats())
}

// GetStats returns application statistics.
func (a *App) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"app_version":    Version,
		"app_build_time": BuildTime,
		"app_git_commit": GitCommit,
		"message_types":  a.pool.Messages(),
		"stored_rows":    a.store.Len(),
		"listen_addr":    a.apiServer.Addr(),
		"uptime_seconds": time.Since(a.startedAt).Seconds(),
	}
}

// statsReporter periodically reports application statistics.
func (a *App) statsReporter(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.log.Info().
				Int("message_types", a.pool.Messages()).
				Int("stored_rows", a.store.Len()).
				Float64("uptime_seconds", time.Since(a.startedAt).Seconds()).
				Msg("protoargs statistics")
		}
	}
}
