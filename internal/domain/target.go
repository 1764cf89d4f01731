package domain

import "time"

// Target is a monitored URL. Targets are owned by the external CRUD
// surface; the hub only reads the active ones.
type Target struct {
	ID        string    `json:"id" yaml:"id"`
	URL       string    `json:"url" yaml:"url"`
	Disabled  bool      `json:"disabled" yaml:"disabled"`
	CreatedAt time.Time `json:"createdAt" yaml:"-"`
}

// Active reports whether the target should be dispatched.
func (t Target) Active() bool { return !t.Disabled }

// Tick is one committed observation of a target by a validator.
type Tick struct {
	ID          string    `json:"id"`
	TargetID    string    `json:"targetId"`
	ValidatorID string    `json:"validatorId"`
	Status      Status    `json:"status"`
	LatencyMs   int64     `json:"latency"`
	ObservedAt  time.Time `json:"createdAt"`
}

// CheckRequest is an outstanding validate request. PublicKey is captured
// when the request is dispatched and is the only key a reply is checked
// against.
type CheckRequest struct {
	CorrelationID string
	TargetID      string
	TargetURL     string
	ValidatorID   string
	PublicKey     string
	ConnID        string
	IssuedAt      time.Time
}
