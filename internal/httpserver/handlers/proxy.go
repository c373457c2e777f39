package handlers

import (
	"net/http"
	"time"

	"github.com/loomworks/gateway/internal/httpserver/deps"
	"github.com/loomworks/gateway/internal/httpserver/mw"
	"github.com/loomworks/gateway/internal/httpserver/respond"
	"github.com/loomworks/gateway/internal/logger"
	"github.com/loomworks/gateway/internal/proxy"
)

// Proxy is the router's dispatch stage: resolve the path against the
// registry, gate on the target's health, forward, relay. Auth and
// rate limiting already ran as middleware by the time a request gets
// here.
func Proxy(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := mw.GetRequestID(r.Context())

		match, ok := d.Registry.Resolve(r.URL.Path)
		if !ok {
			gerr := proxy.RouteNotFound(r.URL.Path)
			d.Logger.Info("no route for path",
				logger.String("request_id", requestID),
				logger.String("path", r.URL.Path))
			respond.GatewayError(w, gerr, requestID)
			return
		}

		// Circuit gate: while the monitor reports the target unhealthy
		// the backend is not attempted at all. The next healthy poll
		// reopens the route.
		if !d.Health.IsHealthy(match.Service) {
			gerr := proxy.Unavailable(match.Service, "service temporarily unavailable", nil)
			d.Logger.Warn("dispatch blocked by circuit gate",
				logger.String("request_id", requestID),
				logger.String("service", match.Service),
				logger.String("path", r.URL.Path))
			respond.GatewayError(w, gerr, requestID)
			return
		}

		if gerr := d.Forwarder.Forward(w, r, match, requestID, start); gerr != nil {
			d.Logger.Error("backend call failed",
				logger.String("request_id", requestID),
				logger.String("service", match.Service),
				logger.String("target_path", match.TargetPath),
				logger.Error(gerr))
			respond.GatewayError(w, gerr, requestID)
		}
	}
}
