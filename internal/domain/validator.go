package domain

import "time"

// UnknownLocation is stored until geolocation of a validator is resolved.
const UnknownLocation = "unknown"

// Validator is the durable identity of an enrolled validator node.
//
// A Validator is uniquely identified by its PublicKey. It is never deleted:
// disconnecting only removes the live session from the registry.
type Validator struct {
	// ID is the hub-assigned identifier returned in the signup ack.
	ID string `json:"id"`

	// PublicKey is the base58 encoded Ed25519 key the validator proved
	// control of during enrollment.
	PublicKey string `json:"publicKey"`

	// NetworkOrigin is the address the validator reported at first signup.
	NetworkOrigin string `json:"ip"`

	// Location is left as UnknownLocation.
	Location string `json:"location"`

	// PendingPayout only ever grows: one unit per committed tick.
	PendingPayout int64 `json:"pendingPayout"`

	CreatedAt time.Time `json:"createdAt"`
}

// Session binds a live connection to an enrolled validator.
// Sessions live only in the registry and are never persisted.
type Session struct {
	ValidatorID string
	PublicKey   string
	Conn        Conn
	JoinedAt    time.Time
}
