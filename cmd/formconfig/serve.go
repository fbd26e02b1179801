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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/config"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/definition"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/lifecycle"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/observability"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/store"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/transport"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  "Starts the HTTP API. SIGHUP reloads the definition files; SIGINT and SIGTERM shut down gracefully.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
}

func runServe(opts *rootOptions) error {
	// Step 1: Load configuration.
	cfg, err := opts.loadConfig()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Step 2: Initialize telemetry (logger, tracer, metrics).
	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		return fmt.Errorf("logger error: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, cfg.Observability.ServiceName, version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return err
	}

	var metrics *observability.Metrics
	if cfg.Observability.Metrics.Enabled {
		metrics = observability.InitMetrics(prometheus.DefaultRegisterer)
	}

	// Step 3: Load definitions, validate, build registry.
	defs, verrs, err := loadDefinitions(cfg.Definitions.Directories)
	if err != nil {
		logger.Error("definition loading failed", zap.Error(err))
		return err
	}
	if !logValidation(logger, verrs, cfg.Definitions.Strict) {
		logger.Error("definition validation failed", zap.Int("errors", len(verrs)))
		return fmt.Errorf("%d definition validation error(s)", len(verrs))
	}
	registry := definition.NewRegistry(defs)
	reportLoaded(registry, metrics)

	// Step 4: Open the document store.
	st, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("store initialization failed", zap.Error(err))
		return err
	}
	defer st.Close()

	// Step 5: Build the lifecycle service and HTTP router.
	svc := lifecycle.NewService(st, registry, cfg.Lifecycle,
		lifecycle.WithMetrics(metrics),
		lifecycle.WithLogger(logger),
	)

	router := transport.NewRouter(transport.Dependencies{
		Config:    cfg,
		Catalogue: registry,
		Lifecycle: svc,
		Metrics:   metrics,
		Store:     st,
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Step 6: Reload definitions on SIGHUP.
	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()
	go watchReload(bgCtx, cfg.Definitions, registry, metrics, logger)

	// Step 7: Start HTTP server.
	forms, fields, workflows := registry.Counts()
	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("store", cfg.Store.Driver),
		zap.Int("forms", forms),
		zap.Int("fields", fields),
		zap.Int("workflows", workflows),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return err
	}

	// Graceful shutdown sequence.
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	bgCancel()

	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

// watchReload swaps the registry contents each time the process receives
// SIGHUP. A reload that fails to load or validate keeps the current
// definitions.
func watchReload(ctx context.Context, cfg config.DefinitionsConfig, registry *definition.Registry, metrics *observability.Metrics, logger *zap.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := reload(cfg, registry, logger); err != nil {
				metrics.RecordDefinitionReload("error")
				logger.Error("definition reload failed", zap.Error(err))
				continue
			}
			metrics.RecordDefinitionReload("ok")
			reportLoaded(registry, metrics)
			logger.Info("definitions reloaded", zap.String("checksum", registry.Checksum()))
		}
	}
}

func reload(cfg config.DefinitionsConfig, registry *definition.Registry, logger *zap.Logger) error {
	defs, verrs, err := loadDefinitions(cfg.Directories)
	if err != nil {
		return err
	}
	if !logValidation(logger, verrs, cfg.Strict) {
		return fmt.Errorf("%d definition validation error(s)", len(verrs))
	}
	registry.Replace(defs)
	return nil
}

func reportLoaded(registry *definition.Registry, metrics *observability.Metrics) {
	forms, fields, workflows := registry.Counts()
	metrics.SetDefinitionsLoaded("forms", float64(forms))
	metrics.SetDefinitionsLoaded("fields", float64(fields))
	metrics.SetDefinitionsLoaded("workflows", float64(workflows))
}
