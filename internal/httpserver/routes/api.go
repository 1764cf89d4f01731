package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/yashkhare05/Uptime/internal/httpserver/deps"
	"github.com/yashkhare05/Uptime/internal/httpserver/handlers"
)

func init() { Register(registerAPI) }

func registerAPI(r chi.Router, d deps.Deps) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/validators/{id}", handlers.GetValidator(d))
		r.Get("/targets/{id}/ticks", handlers.ListTicks(d))
	})
}
