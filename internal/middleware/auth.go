package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"chatrelay/internal/domain"
	"chatrelay/internal/domain/services"
	"chatrelay/internal/httputil"
)

// Auth resolves the caller from request headers and stores it in the request context.
// Requests without an identity are rejected with 401.
func Auth(resolver services.IdentityResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return identify(resolver, logger, true)
}

// Identify attaches the caller when one can be resolved and lets anonymous requests through.
func Identify(resolver services.IdentityResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return identify(resolver, logger, false)
}

func identify(resolver services.IdentityResolver, logger *slog.Logger, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolver.Resolve(r.Context(), r.Header)
			switch {
			case err == nil:
				r = r.WithContext(httputil.WithUser(r.Context(), user))
			case errors.Is(err, domain.ErrUnauthorized):
				if required {
					logger.Debug("request rejected", "path", r.URL.Path, "error", err)
					httputil.RespondError(w, http.StatusUnauthorized, "authentication required")
					return
				}
			default:
				logger.Error("identity resolution failed", "path", r.URL.Path, "error", err)
				httputil.RespondError(w, http.StatusInternalServerError, "identity resolution failed")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
