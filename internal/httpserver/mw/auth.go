package mw

import (
	"errors"
	"net/http"

	"github.com/loomworks/gateway/internal/auth"
	"github.com/loomworks/gateway/internal/httpserver/respond"
	"github.com/loomworks/gateway/internal/logger"
	"github.com/loomworks/gateway/internal/proxy"
	"github.com/loomworks/gateway/internal/utils"
)

// Auth resolves the bearer token into an auth context for every
// request. Paths under requiredPrefixes reject anonymous requests with
// 401 before any counter is touched or backend reached; paths under
// adminPrefixes additionally require the admin role. Everything else
// treats auth as optional: a missing or invalid token simply yields
// the anonymous context.
func Auth(resolver *auth.Resolver, requiredPrefixes, adminPrefixes []string, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, err := resolver.Resolve(r.Context(), r)

			required := utils.PathHasPrefix(r.URL.Path, requiredPrefixes) ||
				utils.PathHasPrefix(r.URL.Path, adminPrefixes)
			if err != nil {
				if required {
					rejectAuth(w, r, err, log)
					return
				}
				ac = auth.Anonymous()
			}

			if utils.PathHasPrefix(r.URL.Path, adminPrefixes) && !ac.IsAdmin {
				gerr := proxy.Forbidden("admin role required")
				log.Warn("authorization denied",
					logger.String("request_id", GetRequestID(r.Context())),
					logger.String("path", r.URL.Path),
					logger.String("user_id", ac.UserID))
				respond.GatewayError(w, gerr, GetRequestID(r.Context()))
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithContext(r.Context(), ac)))
		})
	}
}

// RequireAdmin guards gateway-local admin endpoints: the token must be
// valid and carry the admin role.
func RequireAdmin(resolver *auth.Resolver, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, err := resolver.Resolve(r.Context(), r)
			if err != nil {
				rejectAuth(w, r, err, log)
				return
			}
			if !ac.IsAdmin {
				respond.GatewayError(w, proxy.Forbidden("admin role required"), GetRequestID(r.Context()))
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithContext(r.Context(), ac)))
		})
	}
}

func rejectAuth(w http.ResponseWriter, r *http.Request, err error, log logger.Logger) {
	message := "authentication required"
	switch {
	case errors.Is(err, auth.ErrTokenRevoked):
		message = "token has been revoked"
	case errors.Is(err, auth.ErrInvalidToken):
		message = "invalid or expired token"
	}
	gerr := proxy.AuthRequired(message, err)
	log.Info("authentication rejected",
		logger.String("request_id", GetRequestID(r.Context())),
		logger.String("path", r.URL.Path),
		logger.Error(err))
	respond.GatewayError(w, gerr, GetRequestID(r.Context()))
}
