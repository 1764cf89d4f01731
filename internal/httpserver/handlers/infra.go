package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/yashkhare05/Uptime/internal/httpserver/deps"
)

type componentStatus struct {
	OK        bool   `json:"ok"`
	Connected *int   `json:"connected,omitempty"`
	Pending   *int   `json:"pending,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Impact    string `json:"impact,omitempty"`
	Error     string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		connected := d.Hub.ConnectedValidators()
		pending := d.Hub.PendingChecks()

		components := map[string]componentStatus{
			"validators": {
				OK:        connected > 0,
				Connected: &connected,
			},
			"correlator": {
				OK:      true,
				Pending: &pending,
			},
			"store": checkStore(r.Context(), d),
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

func determineMode(components map[string]componentStatus) string {
	// Without the store nothing can be committed
	if st, ok := components["store"]; ok && !st.OK {
		return "critical"
	}

	// No validator connected: cycles run but send nothing
	if v, ok := components["validators"]; ok && !v.OK {
		return "idle"
	}

	return "operational"
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	if d.Store == nil {
		return componentStatus{
			OK:     false,
			Kind:   d.StoreKind,
			Impact: "results-not-recorded",
			Error:  "store not initialized",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Kind:   d.StoreKind,
			Impact: "results-not-recorded",
			Error:  "unreachable",
		}
	}

	return componentStatus{OK: true, Kind: d.StoreKind}
}
