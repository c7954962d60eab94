package app

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/thetaxjournal/accountsvedartha/internal/platform/httpx"
	"github.com/thetaxjournal/accountsvedartha/internal/shared"
)

// Claims is the bearer token body. Scope holds the branch, employee or client id
// depending on Role.
type Claims struct {
	Role  shared.Role `json:"role"`
	Scope string      `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator turns HS256 bearer tokens into principals.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

// NewAuthenticator constructs an Authenticator. An empty secret is rejected.
func NewAuthenticator(secret string) (*Authenticator, error) {
	if secret == "" {
		return nil, &shared.ConfigurationError{Setting: "JWT_SECRET", Message: "must be provided"}
	}
	return &Authenticator{secret: []byte(secret), now: time.Now}, nil
}

// Issue signs a token for the principal described by role, subject and scope.
func (a *Authenticator) Issue(role shared.Role, subject, scope string, ttl time.Duration) (string, error) {
	if _, err := shared.NewPrincipal(role, subject, scope); err != nil {
		return "", err
	}
	now := a.now()
	claims := Claims{
		Role:  role,
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse validates a raw token and returns its principal.
func (a *Authenticator) Parse(raw string) (shared.Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return shared.Principal{}, fmt.Errorf("%w: %v", httpx.ErrUnauthorized, err)
	}
	p, err := shared.NewPrincipal(claims.Role, claims.Subject, claims.Scope)
	if err != nil {
		return shared.Principal{}, fmt.Errorf("%w: %v", httpx.ErrUnauthorized, err)
	}
	return p, nil
}

// Middleware rejects requests without a valid bearer token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			httpx.RespondError(w, fmt.Errorf("%w: missing bearer token", httpx.ErrUnauthorized))
			return
		}
		p, err := a.Parse(strings.TrimSpace(raw))
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), p)))
	})
}
