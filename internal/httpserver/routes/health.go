package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/loomworks/gateway/internal/httpserver/deps"
	"github.com/loomworks/gateway/internal/httpserver/handlers"
)

func init() { Register(registerHealth) }

func registerHealth(r chi.Router, d deps.Deps) {
	r.Get("/health", handlers.Health(d))
	r.Get("/health/services", handlers.ServiceHealthList(d))
	r.Get("/health/services/{name}", handlers.ServiceHealth(d))
}
