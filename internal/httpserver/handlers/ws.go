package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/yashkhare05/Uptime/internal/httpserver/deps"
	"github.com/yashkhare05/Uptime/internal/logger"
	"github.com/yashkhare05/Uptime/internal/utils"
	"github.com/yashkhare05/Uptime/internal/wsconn"
)

// Websocket upgrades a validator connection and serves it until either side
// closes it or the server shuts down.
func Websocket(d deps.Deps) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		// validators are not browsers; there is no origin to enforce
		CheckOrigin: func(*http.Request) bool { return true },
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already answered with an HTTP error
			d.Logger.Debug("websocket upgrade failed",
				logger.String("remote_ip", r.RemoteAddr),
				logger.Error(err))
			return
		}

		conn := wsconn.New(ws, utils.ClientIP(r, d.TrustProxy), d.Conn)
		d.Logger.Info("validator connection opened",
			logger.ConnID(conn.ID()),
			logger.String("remote", conn.RemoteAddr()))

		if err := conn.Serve(d.BaseContext, d.Hub, d.Logger); err != nil {
			d.Logger.Debug("validator connection ended with error",
				logger.ConnID(conn.ID()),
				logger.Error(err))
		}
	}
}
