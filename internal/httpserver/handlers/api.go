package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/yashkhare05/Uptime/internal/domain"
	"github.com/yashkhare05/Uptime/internal/httpserver/deps"
	"github.com/yashkhare05/Uptime/internal/logger"
	"github.com/yashkhare05/Uptime/internal/store"
)

const (
	defaultTickLimit = 50
	maxTickLimit     = 1000
)

type errorResponse struct {
	Error string `json:"error"`
}

type ticksResponse struct {
	TargetID string        `json:"targetId"`
	Ticks    []domain.Tick `json:"ticks"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GetValidator returns a validator's identity and accrued payout.
func GetValidator(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		v, err := d.Store.GetValidator(r.Context(), id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "validator not found"})
			return
		case err != nil:
			d.Logger.Error("failed to load validator", logger.ValidatorID(id), logger.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
			return
		}

		writeJSON(w, http.StatusOK, v)
	}
}

// ListTicks returns a target's committed results, newest first.
func ListTicks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		limit := defaultTickLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
				return
			}
			limit = min(n, maxTickLimit)
		}

		ticks, err := d.Store.ListTicks(r.Context(), id, limit)
		if err != nil {
			d.Logger.Error("failed to list ticks", logger.TargetID(id), logger.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
			return
		}
		if ticks == nil {
			ticks = []domain.Tick{}
		}

		writeJSON(w, http.StatusOK, ticksResponse{TargetID: id, Ticks: ticks})
	}
}
