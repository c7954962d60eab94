package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/thetaxjournal/accountsvedartha/internal/shared"
)

// IdempotencyHeader carries the client-chosen key for a mutating request.
const IdempotencyHeader = "Idempotency-Key"

// KeyClaimer records request keys so a replay can be refused.
type KeyClaimer interface {
	Claim(ctx context.Context, key, module string) error
	Release(ctx context.Context, key, module string) error
}

// Idempotent refuses a request whose Idempotency-Key was already handled for
// module. Requests without the header pass through. A key whose request failed
// with a 4xx or 5xx is released so the client can retry. A nil claimer disables
// the check.
func Idempotent(claimer KeyClaimer, module string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if claimer == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if p, ok := shared.PrincipalFromContext(r.Context()); ok {
				key = p.UserID + ":" + key
			}
			if err := claimer.Claim(r.Context(), key, module); err != nil {
				RespondError(w, err)
				return
			}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if ww.Status() < http.StatusBadRequest {
				return
			}
			if err := claimer.Release(context.WithoutCancel(r.Context()), key, module); err != nil && logger != nil {
				logger.Warn("release idempotency key", slog.String("module", module), slog.Any("error", err))
			}
		})
	}
}
