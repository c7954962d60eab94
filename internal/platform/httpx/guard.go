package httpx

import (
	"fmt"
	"net/http"

	"github.com/thetaxjournal/accountsvedartha/internal/shared"
)

// RequireRoles only admits principals holding one of roles. Admins always pass,
// so RequireRoles() with no arguments is admin-only.
func RequireRoles(roles ...shared.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				RespondError(w, fmt.Errorf("%w: no principal", ErrUnauthorized))
				return
			}
			if !p.Can(roles...) {
				RespondError(w, fmt.Errorf("%w: role %s", shared.ErrForbidden, p.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
