package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/loomworks/gateway/internal/httpserver/deps"
	"github.com/loomworks/gateway/internal/httpserver/handlers"
	"github.com/loomworks/gateway/internal/httpserver/mw"
)

func init() { Register(registerProxy) }

// registerProxy wires the catch-all proxy pipeline. Stage order is
// fixed: auth, then rate limiting, then dispatch; the gateway's own
// routes above are matched by chi before this falls through.
func registerProxy(r chi.Router, d deps.Deps) {
	r.With(
		mw.Auth(d.Resolver, d.RequiredAuthPrefixes, d.AdminPrefixes, d.Logger),
		mw.RateLimit(d.Limiter, d.Classifier, d.TrustProxy, d.Logger),
	).HandleFunc("/*", handlers.Proxy(d))
}
