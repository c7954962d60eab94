package app

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thetaxjournal/accountsvedartha/internal/billing"
	"github.com/thetaxjournal/accountsvedartha/internal/observability"
	"github.com/thetaxjournal/accountsvedartha/internal/seal"
	"github.com/thetaxjournal/accountsvedartha/internal/shared"
	"github.com/thetaxjournal/accountsvedartha/internal/store"
	"github.com/thetaxjournal/accountsvedartha/internal/tax"
)

func testRouter(t *testing.T, ready func(*http.Request) error) (http.Handler, *Authenticator) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auth, err := NewAuthenticator("router-secret")
	require.NoError(t, err)
	svc := billing.NewService(store.NewMemory(), seal.New(), nil, logger)
	return NewRouter(RouterParams{
		Logger:         logger,
		Config:         &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second},
		Authenticator:  auth,
		TaxHandler:     tax.NewHandler(),
		BillingHandler: billing.NewHandler(logger, svc),
		Metrics:        observability.NewMetrics(),
		Ready:          ready,
	}), auth
}

func TestRouterPublicEndpoints(t *testing.T) {
	r, _ := testRouter(t, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "vedartha_http_requests_total")

	degraded, _ := testRouter(t, func(*http.Request) error { return errors.New("pg down") })
	rec = httptest.NewRecorder()
	degraded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouterAPIRequiresBearer(t *testing.T) {
	r, auth := testRouter(t, nil)
	body := `{"supplierState":"Goa","placeOfSupply":"Goa","items":[{"description":"x","quantity":2,"rate":50,"taxPercent":12}]}`

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/tax/compute", strings.NewReader(body)))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := auth.Issue(shared.RoleHR, "hr-1", "", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tax/compute", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"grandTotal":112`)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/invoices", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
