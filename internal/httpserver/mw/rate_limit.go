package mw

import (
	"net/http"
	"strconv"

	"github.com/loomworks/gateway/internal/auth"
	"github.com/loomworks/gateway/internal/httpserver/respond"
	"github.com/loomworks/gateway/internal/logger"
	"github.com/loomworks/gateway/internal/proxy"
	"github.com/loomworks/gateway/internal/ratelimit"
	"github.com/loomworks/gateway/internal/utils"
)

// RateLimit bills each request against its category's fixed-window
// quota. Identity is the user id when authenticated, the client IP
// otherwise. Verified users skip exempted categories. A counter-store
// failure fails open: the limiter protects backends, it is not an
// availability dependency.
func RateLimit(limiter *ratelimit.Limiter, classifier *ratelimit.Classifier, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := auth.FromContext(r.Context())
			category := classifier.Category(r.URL.Path, ac.IsAuthenticated)

			if ac.EmailVerified && limiter.VerifiedExempt(category) {
				next.ServeHTTP(w, r)
				return
			}

			identity := ac.UserID
			if identity == "" {
				identity = utils.ClientIP(r, trustProxy)
			}

			d, err := limiter.Allow(r.Context(), category, identity)
			if err != nil {
				log.Warn("rate limit check failed, allowing request",
					logger.String("request_id", GetRequestID(r.Context())),
					logger.String("category", category),
					logger.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))

			if !d.Allowed {
				log.Info("rate limit exceeded",
					logger.String("request_id", GetRequestID(r.Context())),
					logger.String("category", category),
					logger.String("identity", identity),
					logger.Duration("retry_after", d.RetryAfter))
				respond.GatewayError(w, proxy.RateLimited(d.RetryAfter), GetRequestID(r.Context()))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
