package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/loomworks/gateway/internal/httpserver/deps"
	"github.com/loomworks/gateway/internal/httpserver/handlers"
	"github.com/loomworks/gateway/internal/httpserver/mw"
)

func init() { Register(registerAdmin) }

func registerAdmin(r chi.Router, d deps.Deps) {
	r.With(mw.RequireAdmin(d.Resolver, d.Logger)).Post("/admin/reload", handlers.Reload(d))
}
