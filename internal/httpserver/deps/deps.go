package deps

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yashkhare05/Uptime/internal/domain"
	"github.com/yashkhare05/Uptime/internal/logger"
	"github.com/yashkhare05/Uptime/internal/wsconn"
)

// Hub is the part of the coordinator the HTTP layer talks to.
type Hub interface {
	wsconn.Handler
	ConnectedValidators() int
	PendingChecks() int
}

// Store is the read side of durable storage exposed over HTTP.
type Store interface {
	Ping(ctx context.Context) error
	GetValidator(ctx context.Context, id string) (*domain.Validator, error)
	ListTicks(ctx context.Context, targetID string, limit int) ([]domain.Tick, error)
}

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string
	TimeNow   func() time.Time // for testing, defaults to time.Now

	AllowedHosts []string // Host headers allowed to access admin endpoints
	AllowedCIDRS []string // IPs allowed to access admin endpoints
	TrustProxy   bool     // true if running behind a trusted reverse proxy (e.g., cloudflared)

	Hub       Hub                 // validator coordinator
	Store     Store               // durable store
	StoreKind string              // sqlite | postgres | redis, reported by /infra
	Gatherer  prometheus.Gatherer // collectors served on /metrics

	// BaseContext outlives single requests; websocket sessions run under it
	// so they end on shutdown rather than with the upgrade request.
	BaseContext     context.Context
	Conn            wsconn.Options // per websocket tuning
	UpgradeBurst    int            // websocket upgrades allowed in a burst per IP
	UpgradePerMin   int            // sustained websocket upgrades per minute per IP
	DispatchTrigger chan struct{}  // manual dispatch cycle trigger
}
