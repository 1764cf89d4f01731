package protocol

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/yashkhare05/Uptime/internal/domain"
)

// Message is any payload that can be framed in an envelope.
type Message interface {
	Kind() Kind
}

// Inbound is a message a validator sends to the hub.
type Inbound interface {
	Message
	inbound()
}

// FromHub is a message the hub sends to a validator.
type FromHub interface {
	Message
	fromHub()
}

func (SignupRequest) Kind() Kind    { return KindSignup }
func (SignupAck) Kind() Kind        { return KindSignup }
func (ValidateRequest) Kind() Kind  { return KindValidate }
func (ValidateResponse) Kind() Kind { return KindValidate }

func (SignupRequest) inbound()    {}
func (ValidateResponse) inbound() {}
func (SignupAck) fromHub()        {}
func (ValidateRequest) fromHub()  {}

// MaxLatencyMs caps a reported latency at one day.
const MaxLatencyMs = 24 * 60 * 60 * 1000

// Encode frames msg in an envelope.
func Encode(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", msg.Kind(), err)
	}
	return json.Marshal(envelope{Type: msg.Kind(), Data: data})
}

// DecodeInbound parses a frame received by the hub.
func DecodeInbound(raw []byte) (Inbound, error) {
	env, err := decodeEnvelope(raw)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case KindSignup:
		var m SignupRequest
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("%w: signup: %v", ErrMalformed, err)
		}
		if m.PublicKey == "" || m.CallbackID == "" || m.SignedMessage == "" {
			return nil, fmt.Errorf("%w: signup: missing publicKey, callbackId or signedMessage", ErrMalformed)
		}
		return m, nil

	case KindValidate:
		var w validateResponseWire
		if err := json.Unmarshal(env.Data, &w); err != nil {
			return nil, fmt.Errorf("%w: validate: %v", ErrMalformed, err)
		}
		if w.CallbackID == "" || w.SignedMessage == "" {
			return nil, fmt.Errorf("%w: validate: missing callbackId or signedMessage", ErrMalformed)
		}
		status, err := domain.ParseStatus(w.Status)
		if err != nil {
			return nil, fmt.Errorf("%w: validate: %v", ErrMalformed, err)
		}
		if w.Latency < 0 || w.Latency > MaxLatencyMs || math.IsNaN(w.Latency) || math.IsInf(w.Latency, 0) {
			return nil, fmt.Errorf("%w: validate: invalid latency %v", ErrMalformed, w.Latency)
		}
		return ValidateResponse{
			CallbackID:    w.CallbackID,
			ValidatorID:   w.ValidatorID,
			Status:        status,
			LatencyMs:     int64(math.Round(w.Latency)),
			SignedMessage: w.SignedMessage,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
}

// DecodeFromHub parses a frame received by a validator.
func DecodeFromHub(raw []byte) (FromHub, error) {
	env, err := decodeEnvelope(raw)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case KindSignup:
		var m SignupAck
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("%w: signup ack: %v", ErrMalformed, err)
		}
		return m, nil
	case KindValidate:
		var m ValidateRequest
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("%w: validate request: %v", ErrMalformed, err)
		}
		if m.URL == "" || m.CallbackID == "" {
			return nil, fmt.Errorf("%w: validate request: missing url or callbackId", ErrMalformed)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
}

func decodeEnvelope(raw []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(env.Data) == 0 {
		return env, fmt.Errorf("%w: missing data", ErrMalformed)
	}
	return env, nil
}
