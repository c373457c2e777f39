package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/loomworks/gateway/internal/httpserver/deps"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
)

type entry struct {
	reg Registrar
}

var registry []entry

// Register a registrar; per-route middleware chains are built inside
// the registrar where deps are available.
func Register(reg Registrar) {
	registry = append(registry, entry{reg: reg})
}

// Called once from server.New()
func RegisterAll(r chi.Router, d deps.Deps) {
	for _, e := range registry {
		e.reg(r, d)
	}
}
