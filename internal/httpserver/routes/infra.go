package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/consentgate/internal/httpserver/deps"
	"github.com/MrSnakeDoc/consentgate/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/consentgate/internal/httpserver/mw"
)

func init() { Register(registerInfra) }

// registerInfra mounts the operator endpoints. Only /healthz is public.
func registerInfra(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))

	r.Group(func(r chi.Router) {
		r.Use(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
		r.Get("/readyz", handlers.Readyz(d))
		r.Get("/infra", handlers.Infra(d))
		r.Method("GET", "/metrics", handlers.Metrics(d))
		r.Post("/reload", handlers.Reload(d))
	})
}
