package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ineyio/sentimentgate"
	"github.com/ineyio/sentimentgate/internal/config"
	"github.com/ineyio/sentimentgate/internal/observability"
	"github.com/ineyio/sentimentgate/internal/server"
	"github.com/ineyio/sentimentgate/internal/server/routes"
	"github.com/ineyio/sentimentgate/meter"
	"github.com/ineyio/sentimentgate/policy"
	"github.com/ineyio/sentimentgate/storage/memory"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	log := observability.NewLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, log, observability.TracingConfig{
		Enabled:       cfg.Observability.TracingEnabled,
		OTLPEndpoint:  cfg.Observability.OTLPEndpoint,
		ServiceName:   cfg.Observability.ServiceName,
		ServiceVer:    cfg.Observability.ServiceVer,
		SamplingRatio: cfg.Observability.SamplingRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Error("Failed to flush traces", "error", err)
		}
	}()

	pipelineCfg, err := loadPipelineConfig(cfg.Pipeline.ConfigPath, log)
	if err != nil {
		return err
	}

	ledger, closeLedger, err := openLedger(ctx, cfg.Ledger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeLedger(); err != nil {
			log.Error("Failed to close ledger", "error", err)
		}
	}()

	if err := sentimentgate.ProvisionAccounts(ctx, ledger, pipelineCfg.Accounts); err != nil {
		return err
	}

	objects, memStore, err := openObjectStore(ctx, cfg)
	if err != nil {
		return err
	}

	engine, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}

	settlement, err := policy.ByName(cfg.Pipeline.Settlement)
	if err != nil {
		return err
	}

	meters := meter.Multi{meter.NewLogMeter(log)}
	var registry *prometheus.Registry
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		pm, err := meter.NewPrometheusMeter(registry)
		if err != nil {
			return err
		}
		meters = append(meters, pm)
	}

	svc, err := sentimentgate.NewService(pipelineCfg, ledger, engine, objects,
		sentimentgate.WithMeter(meters),
		sentimentgate.WithSettlement(settlement),
		sentimentgate.WithLogger(log),
	)
	if err != nil {
		return err
	}

	limiter := routes.NewAuthLimiter(cfg.Server.AuthFailureRPS, cfg.Server.AuthFailureBurst)
	defer limiter.Stop()

	srv := server.New(log, server.Options{
		ServiceName:  cfg.Observability.ServiceName,
		Tracing:      cfg.Observability.TracingEnabled,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})
	srv.RegisterRouter(routes.NewAPIRoutes(svc, limiter, log))
	srv.RegisterRouter(routes.NewHealthRoutes(svc))
	if registry != nil {
		srv.RegisterRouter(routes.NewMetricsRoutes(registry))
	}
	if memStore != nil {
		log.Warn("S3_BUCKET not set, serving uploads from memory", "prefix", memory.PathPrefix)
		srv.RegisterRouter(routes.NewObjectRoutes(memStore))
	}

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		log.Info("Starting server",
			"port", cfg.Server.Port,
			"ledger", cfg.Ledger.Backend,
			"engine", engine.Name(),
			"settlement", cfg.Pipeline.Settlement,
		)
		errCh <- srv.Start(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// loadPipelineConfig reads the uploads and accounts file. A missing file
// means defaults and no seeded accounts.
func loadPipelineConfig(path string, log *slog.Logger) (sentimentgate.Config, error) {
	cfg, err := sentimentgate.LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("Pipeline config not found, using defaults", "path", path)
		return sentimentgate.DefaultConfig(), nil
	}
	return cfg, err
}
