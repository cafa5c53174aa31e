package routes

import (
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/consentgate/internal/httpserver/deps"
	"github.com/MrSnakeDoc/consentgate/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/consentgate/internal/httpserver/mw"
)

func init() { Register(registerSessions) }

func registerSessions(r chi.Router, d deps.Deps) {
	r.Route("/api/sessions", func(r chi.Router) {
		r.Use(mw.CORS(d.AllowedOrigins))

		r.With(mw.LimitOpens(mw.OpenLimitConfig{
			Burst:      d.RateBurst,
			PerMinute:  d.RatePerMin,
			MaxClients: 10000,
			TrustProxy: d.TrustProxy,
			Logger:     d.Logger,
		})).Post("/", handlers.OpenSession(d))

		r.Get("/{id}", handlers.GetSession(d))
		r.Delete("/{id}", handlers.CloseSession(d))

		names := make([]string, 0, len(handlers.Actions))
		for name := range handlers.Actions {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			r.Post("/{id}/"+name, handlers.SessionAction(d, name))
		}
	})
}
