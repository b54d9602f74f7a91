// Package middleware provides the HTTP middleware stack for the API server:
// authentication, role checks, tracing, metrics, rate limiting, and CORS.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/walla-walla-travel/tourops/internal/app/auth"
	apperrors "github.com/walla-walla-travel/tourops/internal/errors"
	"github.com/walla-walla-travel/tourops/internal/httputil"
	"github.com/walla-walla-travel/tourops/internal/logging"
)

// AuthMiddleware authenticates every request on the wrapped router with the
// auth manager. Static API tokens and user JWTs are both accepted. The
// caller's username and role are stored on the request context for handlers
// and downstream middleware.
func AuthMiddleware(manager *auth.Manager, log *logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				log.LogSecurityEvent(r.Context(), "auth_missing_token", map[string]interface{}{
					"path":   r.URL.Path,
					"remote": r.RemoteAddr,
				})
				httputil.WriteServiceError(w, apperrors.Unauthorized("missing bearer token"))
				return
			}

			ident, err := manager.Authenticate(token)
			if err != nil {
				log.LogSecurityEvent(r.Context(), "auth_invalid_token", map[string]interface{}{
					"path":   r.URL.Path,
					"remote": r.RemoteAddr,
				})
				httputil.WriteError(w, err)
				return
			}

			ctx := logging.WithUserID(r.Context(), ident.Username)
			ctx = logging.WithRole(ctx, ident.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects authenticated callers that do not carry the admin
// role. It must run after AuthMiddleware.
func RequireAdmin(log *logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if logging.GetRole(r.Context()) != auth.RoleAdmin {
				log.LogSecurityEvent(r.Context(), "admin_access_denied", map[string]interface{}{
					"path": r.URL.Path,
					"user": logging.GetUserID(r.Context()),
				})
				httputil.WriteServiceError(w, apperrors.Forbidden("admin role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
