// Package protocol defines the JSON messages exchanged between the hub and
// validator nodes over a websocket.
//
// Every frame is an envelope {"type": kind, "data": {...}}. The set of kinds
// is closed: "signup" (enrollment and its ack) and "validate" (check request
// and its response). The direction of the frame decides which payload shape
// applies.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yashkhare05/Uptime/internal/domain"
)

// Kind tags an envelope.
type Kind string

const (
	KindSignup   Kind = "signup"
	KindValidate Kind = "validate"
)

var (
	ErrUnknownKind = errors.New("unknown message kind")
	ErrMalformed   = errors.New("malformed message")
)

type envelope struct {
	Type Kind            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Signature is the wire form of a detached signature. Validators send it as
// a string holding a JSON byte array ("[12,250,...]"); a bare JSON array or
// a base58 string is accepted as well.
type Signature string

func (s *Signature) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var buf bytes.Buffer
		if err := json.Compact(&buf, b); err != nil {
			return err
		}
		*s = Signature(buf.String())
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	*s = Signature(str)
	return nil
}

// SignupRequest is sent by a validator to enroll (validator -> hub).
type SignupRequest struct {
	IP            string    `json:"ip"`
	PublicKey     string    `json:"publicKey"`
	SignedMessage Signature `json:"signedMessage"`
	CallbackID    string    `json:"callbackId"`
}

// SignupAck answers a verified signup (hub -> validator).
type SignupAck struct {
	ValidatorID string `json:"validatorId"`
	CallbackID  string `json:"callbackId"`
}

// ValidateRequest asks a validator to check one URL (hub -> validator).
type ValidateRequest struct {
	URL        string `json:"url"`
	CallbackID string `json:"callbackId"`
}

// ValidateResponse carries a validator's verdict (validator -> hub).
// ValidatorID is self-reported and informational only.
type ValidateResponse struct {
	CallbackID    string        `json:"callbackId"`
	ValidatorID   string        `json:"validatorId"`
	Status        domain.Status `json:"status"`
	LatencyMs     int64         `json:"latency"`
	SignedMessage Signature     `json:"signedMessage"`
}

type validateResponseWire struct {
	CallbackID    string    `json:"callbackId"`
	ValidatorID   string    `json:"validatorId"`
	Status        string    `json:"status"`
	Latency       float64   `json:"latency"`
	SignedMessage Signature `json:"signedMessage"`
}

// SignupChallenge is the exact text a validator signs to enroll.
func SignupChallenge(callbackID, publicKey string) string {
	return fmt.Sprintf("Signed message for %s, %s", callbackID, publicKey)
}

// ReplyChallenge is the exact text a validator signs when answering a
// validate request.
func ReplyChallenge(callbackID string) string {
	return "Replying to " + callbackID
}
