package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/thetaxjournal/accountsvedartha/internal/billing"
	"github.com/thetaxjournal/accountsvedartha/internal/ledger"
	"github.com/thetaxjournal/accountsvedartha/internal/observability"
	"github.com/thetaxjournal/accountsvedartha/internal/payroll"
	"github.com/thetaxjournal/accountsvedartha/internal/recovery"
	"github.com/thetaxjournal/accountsvedartha/internal/tax"
	"github.com/thetaxjournal/accountsvedartha/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Authenticator   *Authenticator
	TaxHandler      *tax.Handler
	BillingHandler  *billing.Handler
	LedgerHandler   *ledger.Handler
	PayrollHandler  *payroll.Handler
	RecoveryHandler *recovery.Handler
	JobsHandler     *jobs.Handler
	Metrics         *observability.Metrics
	// Ready reports backing service health for /healthz. Nil means always ready.
	Ready func(r *http.Request) error
}

// NewRouter constructs the chi.Router with the API mounted under /api/v1.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(RequestLogger(params.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.Ready != nil {
			if err := params.Ready(r); err != nil {
				params.Logger.Warn("health check failed", slog.Any("error", err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(params.Authenticator.Middleware)
		if params.TaxHandler != nil {
			params.TaxHandler.MountRoutes(r)
		}
		if params.BillingHandler != nil {
			params.BillingHandler.MountRoutes(r)
		}
		if params.LedgerHandler != nil {
			params.LedgerHandler.MountRoutes(r)
		}
		if params.PayrollHandler != nil {
			params.PayrollHandler.MountRoutes(r)
		}
		if params.RecoveryHandler != nil {
			params.RecoveryHandler.MountRoutes(r)
		}
		if params.JobsHandler != nil {
			params.JobsHandler.MountRoutes(r)
		}
	})

	return r
}
