package handlers

import (
	"net/http"

	"github.com/yashkhare05/Uptime/internal/httpserver/deps"
	"github.com/yashkhare05/Uptime/internal/logger"
)

// Dispatch triggers an immediate dispatch cycle
func Dispatch(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case d.DispatchTrigger <- struct{}{}:
			d.Logger.Info("manual dispatch triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			w.WriteHeader(http.StatusAccepted)
			if _, err := w.Write([]byte("✅ Dispatch triggered\n")); err != nil {
				d.Logger.Debug("failed to write response", logger.Error(err))
			}
		default:
			d.Logger.Warn("dispatch already pending",
				logger.String("remote_ip", r.RemoteAddr))
			w.WriteHeader(http.StatusTooManyRequests)
			if _, err := w.Write([]byte("⏳ Dispatch already pending, please wait\n")); err != nil {
				d.Logger.Debug("failed to write response", logger.Error(err))
			}
		}
	}
}
