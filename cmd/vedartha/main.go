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

	"github.com/hibiken/asynq"

	"github.com/thetaxjournal/accountsvedartha/internal/app"
	"github.com/thetaxjournal/accountsvedartha/internal/billing"
	"github.com/thetaxjournal/accountsvedartha/internal/ledger"
	"github.com/thetaxjournal/accountsvedartha/internal/observability"
	"github.com/thetaxjournal/accountsvedartha/internal/payroll"
	"github.com/thetaxjournal/accountsvedartha/internal/platform/cache"
	"github.com/thetaxjournal/accountsvedartha/internal/recovery"
	"github.com/thetaxjournal/accountsvedartha/internal/tax"
	"github.com/thetaxjournal/accountsvedartha/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
	auth, err := app.NewAuthenticator(cfg.JWTSecret)
	if err != nil {
		logger.Error("authenticator", slog.Any("error", err))
		os.Exit(1)
	}
	metrics := observability.NewMetrics()

	payrollService := app.PayrollService(cfg, backends, sealer, signer, metrics, logger)
	billingService := billing.NewService(backends.Store, sealer, signer, logger)
	ledgerService := ledger.NewService(billingService, logger)
	scanner := recovery.NewScanner(recovery.NewQRDecoder(), sealer,
		recovery.WithRasterizer(recovery.NewPageRasterizer(float64(cfg.RecoveryPDFDPI))),
		recovery.WithObserver(metrics),
		recovery.WithLogger(logger),
	)

	billingHandler := billing.NewHandler(logger, billingService)
	var (
		enqueuer    payroll.Enqueuer
		jobsHandler *jobs.Handler
	)
	if backends.Redis != nil {
		client := jobs.NewClient(cfg.Redis().AsynqOpt())
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}()
		inspector := asynq.NewInspector(cfg.Redis().AsynqOpt())
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		enqueuer = client
		jobsHandler = jobs.NewHandler(inspector, logger)
		billingHandler.WithIdempotency(cache.NewIdempotencyStore(backends.Redis, cfg.IdempotencyTTL))
	}

	verifier := recovery.VerifierFunc(func(ctx context.Context, code string) (any, error) {
		return billingService.Verify(ctx, code)
	})

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Authenticator:  auth,
		TaxHandler:     tax.NewHandler(),
		BillingHandler: billingHandler,
		LedgerHandler:  ledger.NewHandler(logger, ledgerService),
		PayrollHandler: payroll.NewHandler(logger, payrollService, enqueuer, "Accountsvedartha Payroll"),
		RecoveryHandler: recovery.NewHandler(logger, scanner, verifier, recovery.HandlerConfig{
			MaxUploadBytes: cfg.RecoveryMaxUploadBytes,
			RatePerMinute:  cfg.RecoveryRateLimit,
		}),
		JobsHandler: jobsHandler,
		Metrics:     metrics,
		Ready: func(r *http.Request) error {
			return backends.Ping(r.Context())
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
