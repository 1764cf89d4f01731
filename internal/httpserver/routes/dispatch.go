package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/yashkhare05/Uptime/internal/httpserver/deps"
	"github.com/yashkhare05/Uptime/internal/httpserver/handlers"
	"github.com/yashkhare05/Uptime/internal/httpserver/mw"
)

func init() { Register(registerDispatch) }

func registerDispatch(r chi.Router, d deps.Deps) {
	r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger), mw.EnforceHost(d.AllowedHosts, d.Logger)).Post("/dispatch", handlers.Dispatch(d))
}
