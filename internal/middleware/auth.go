// Package middleware provides the HTTP middleware chain of the API server.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/estatehub/marketplace/internal/app/core/service"
	"github.com/estatehub/marketplace/internal/app/domain/user"
	"github.com/estatehub/marketplace/internal/app/services/users"
	"github.com/estatehub/marketplace/pkg/logger"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Authenticate(token string) (users.Claims, error)
}

type claimsKey struct{}

// AuthMiddleware resolves bearer tokens into claims on the request context.
type AuthMiddleware struct {
	verifier TokenVerifier
	log      *logger.Logger
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(verifier TokenVerifier, log *logger.Logger) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &AuthMiddleware{verifier: verifier, log: log}
}

// Handler attaches claims when a token is presented. Requests without a token
// continue anonymously; a bad token is rejected with 401.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "invalid Authorization header format")
			return
		}

		claims, err := m.verifier.Authenticate(token)
		if err != nil {
			m.log.WithError(err).
				WithField("trace_id", TraceID(r.Context())).
				WithField("path", r.URL.Path).
				Warn("token validation failed")
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// bearerToken reports whether credentials were presented and returns the
// token. Websocket upgrades may pass it as the access_token query parameter
// since browsers cannot set headers on them.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			if token := r.URL.Query().Get("access_token"); token != "" {
				return token, true
			}
		}
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", true
	}
	return strings.TrimSpace(token), true
}

// WithClaims stores claims on ctx.
func WithClaims(ctx context.Context, claims users.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFrom returns the authenticated claims, if any.
func ClaimsFrom(ctx context.Context) (users.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(users.Claims)
	return claims, ok
}

// ActorFrom returns the caller as a service actor. Anonymous callers have an
// empty UserID.
func ActorFrom(ctx context.Context) service.Actor {
	claims, _ := ClaimsFrom(ctx)
	return claims.Actor()
}

// RequireAuth rejects anonymous requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClaimsFrom(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole admits authenticated callers holding one of roles.
func RequireRole(roles ...user.Role) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := ClaimsFrom(r.Context())
			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "insufficient role")
		}))
	}
}
