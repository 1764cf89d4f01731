package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/yashkhare05/Uptime/internal/httpserver/deps"
	"github.com/yashkhare05/Uptime/internal/httpserver/handlers"
	"github.com/yashkhare05/Uptime/internal/httpserver/mw"
)

func init() { RegisterStream(registerWebsocket) }

func registerWebsocket(r chi.Router, d deps.Deps) {
	limit := mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.UpgradeBurst,
		RefillPerIPPerMin: d.UpgradePerMin,
		MaxEntries:        10000,
		TrustProxy:        d.TrustProxy,
	})
	r.With(limit).Get("/ws", handlers.Websocket(d))
}
