package authz

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dawnmoon/charon/internal/platform/httpx"
	"github.com/dawnmoon/charon/internal/shared"
)

// IdentitySource resolves a user ID from a bearer token. Implemented by
// the auth service; a cache miss means "not authenticated", never a
// store re-derivation.
type IdentitySource interface {
	IdentityFromToken(ctx context.Context, token string) (int64, bool, error)
}

// Middleware wires authentication and permission enforcement for HTTP
// routes. Stacked Require middlewares AND together.
type Middleware struct {
	Identity IdentitySource
	Checker  *Checker
	Logger   *slog.Logger
}

// Authenticate extracts the bearer token, resolves the identity from the
// session cache and stores it in the request context. Requests without a
// resolvable identity are rejected before any permission check runs.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		userID, ok, err := m.Identity.IdentityFromToken(r.Context(), token)
		if err != nil {
			m.Logger.Error("identity lookup", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		if !ok {
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		ctx := shared.ContextWithUserID(r.Context(), userID)
		ctx = shared.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require enforces the requirement for every request passing through.
// Must be mounted after Authenticate.
func (m Middleware) Require(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := shared.UserIDFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}
			allowed, err := m.Checker.Check(r.Context(), userID, req)
			if err != nil {
				m.Logger.Error("permission check", slog.Int64("user_id", userID), slog.Any("error", err))
				httpx.RespondError(w, err)
				return
			}
			if !allowed {
				httpx.RespondError(w, shared.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAll is shorthand for Require(All(codes...)).
func (m Middleware) RequireAll(codes ...string) func(http.Handler) http.Handler {
	return m.Require(All(codes...))
}

// RequireAny is shorthand for Require(Any(codes...)).
func (m Middleware) RequireAny(codes ...string) func(http.Handler) http.Handler {
	return m.Require(Any(codes...))
}

// BearerToken extracts the bearer token from the Authorization header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
