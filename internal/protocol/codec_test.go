package protocol

import (
	"errors"
	"testing"

	"github.com/yashkhare05/Uptime/internal/domain"
)

func TestDecodeInboundSignup(t *testing.T) {
	raw := []byte(`{"type":"signup","data":{"ip":"10.0.0.7","publicKey":"Key111","signedMessage":"[1,2,3]","callbackId":"cb-1"}}`)

	msg, err := DecodeInbound(raw)
	if err != nil {
		t.Fatalf("DecodeInbound() error: %v", err)
	}
	signup, ok := msg.(SignupRequest)
	if !ok {
		t.Fatalf("DecodeInbound() = %T, want SignupRequest", msg)
	}
	if signup.IP != "10.0.0.7" || signup.PublicKey != "Key111" || signup.CallbackID != "cb-1" {
		t.Errorf("unexpected signup payload: %+v", signup)
	}
	if signup.SignedMessage != "[1,2,3]" {
		t.Errorf("SignedMessage = %q, want %q", signup.SignedMessage, "[1,2,3]")
	}
}

func TestDecodeInboundValidate(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantStatus  domain.Status
		wantLatency int64
		wantSig     Signature
	}{
		{
			name:        "string signature and integer latency",
			raw:         `{"type":"validate","data":{"callbackId":"c1","validatorId":"v1","status":"Good","latency":50,"signedMessage":"[9,8]"}}`,
			wantStatus:  domain.StatusGood,
			wantLatency: 50,
			wantSig:     "[9,8]",
		},
		{
			name:        "array signature and fractional latency",
			raw:         `{"type":"validate","data":{"callbackId":"c1","status":"bad","latency":12.6,"signedMessage":[9, 8, 7]}}`,
			wantStatus:  domain.StatusBad,
			wantLatency: 13,
			wantSig:     "[9,8,7]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeInbound([]byte(tt.raw))
			if err != nil {
				t.Fatalf("DecodeInbound() error: %v", err)
			}
			resp, ok := msg.(ValidateResponse)
			if !ok {
				t.Fatalf("DecodeInbound() = %T, want ValidateResponse", msg)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v", resp.Status, tt.wantStatus)
			}
			if resp.LatencyMs != tt.wantLatency {
				t.Errorf("LatencyMs = %v, want %v", resp.LatencyMs, tt.wantLatency)
			}
			if resp.SignedMessage != tt.wantSig {
				t.Errorf("SignedMessage = %q, want %q", resp.SignedMessage, tt.wantSig)
			}
		})
	}
}

func TestDecodeInboundRejects(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{name: "not json", raw: `nope`, wantErr: ErrMalformed},
		{name: "missing data", raw: `{"type":"signup"}`, wantErr: ErrMalformed},
		{name: "unknown kind", raw: `{"type":"payout","data":{}}`, wantErr: ErrUnknownKind},
		{name: "signup without key", raw: `{"type":"signup","data":{"callbackId":"c","signedMessage":"[1]"}}`, wantErr: ErrMalformed},
		{name: "validate bad status", raw: `{"type":"validate","data":{"callbackId":"c","status":"meh","latency":1,"signedMessage":"[1]"}}`, wantErr: ErrMalformed},
		{name: "validate negative latency", raw: `{"type":"validate","data":{"callbackId":"c","status":"good","latency":-4,"signedMessage":"[1]"}}`, wantErr: ErrMalformed},
		{name: "validate latency past int64", raw: `{"type":"validate","data":{"callbackId":"c","status":"good","latency":1e20,"signedMessage":"[1]"}}`, wantErr: ErrMalformed},
		{name: "validate latency over a day", raw: `{"type":"validate","data":{"callbackId":"c","status":"good","latency":86400001,"signedMessage":"[1]"}}`, wantErr: ErrMalformed},
		{name: "validate without signature", raw: `{"type":"validate","data":{"callbackId":"c","status":"good","latency":4}}`, wantErr: ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeInbound([]byte(tt.raw))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodeInbound() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeDecodeFromHub(t *testing.T) {
	raw, err := Encode(ValidateRequest{URL: "https://example.com", CallbackID: "c-42"})
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	msg, err := DecodeFromHub(raw)
	if err != nil {
		t.Fatalf("DecodeFromHub() error: %v", err)
	}
	req, ok := msg.(ValidateRequest)
	if !ok {
		t.Fatalf("DecodeFromHub() = %T, want ValidateRequest", msg)
	}
	if req.URL != "https://example.com" || req.CallbackID != "c-42" {
		t.Errorf("unexpected request: %+v", req)
	}

	raw, err = Encode(SignupAck{ValidatorID: "v-1", CallbackID: "cb"})
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	msg, err = DecodeFromHub(raw)
	if err != nil {
		t.Fatalf("DecodeFromHub() error: %v", err)
	}
	if ack, ok := msg.(SignupAck); !ok || ack.ValidatorID != "v-1" {
		t.Errorf("DecodeFromHub() = %+v, want ack for v-1", msg)
	}
}

func TestChallenges(t *testing.T) {
	if got := SignupChallenge("cb-9", "PubKey"); got != "Signed message for cb-9, PubKey" {
		t.Errorf("SignupChallenge() = %q", got)
	}
	if got := ReplyChallenge("abc"); got != "Replying to abc" {
		t.Errorf("ReplyChallenge() = %q", got)
	}
}
