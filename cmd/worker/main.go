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

	"github.com/thetaxjournal/accountsvedartha/internal/app"
	jobmetrics "github.com/thetaxjournal/accountsvedartha/internal/jobs"
	"github.com/thetaxjournal/accountsvedartha/internal/observability"
	"github.com/thetaxjournal/accountsvedartha/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	if err := cfg.RequireWorkerBackends(); err != nil {
		logger.Error("worker backends", slog.Any("error", err))
		os.Exit(1)
	}

	backends, err := app.OpenBackends(ctx, cfg, logger)
	if err != nil {
		logger.Error("open backends", slog.Any("error", err))
		os.Exit(1)
	}
	defer backends.Close()

	sealer, signer, err := app.Sealing(cfg)
	if err != nil {
		logger.Error("seal signer", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	payrollService := app.PayrollService(cfg, backends, sealer, signer, metrics, logger)
	payrollJob := jobs.NewPayrollRunJob(payrollService, logger, jobmetrics.NewMetrics(metrics.Registerer()))

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: cfg.Redis().AsynqOpt(),
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPayrollRun, Handler: payrollJob.Handle},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		srv := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	logger.Info("worker started", slog.String("queue", jobs.QueuePayroll))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
