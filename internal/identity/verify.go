// Package identity authenticates validator messages.
//
// Public keys travel as base58 strings (Solana style, 32 raw bytes) and
// signatures as detached Ed25519 signatures, either a JSON byte array or a
// base58 string.
package identity

import (
	"crypto/ed25519"
	"encoding/json"
	"strings"

	"github.com/btcsuite/btcutil/base58"
)

// Verifier checks a detached signature over message under publicKey.
// Malformed input is reported as false, never as an error.
type Verifier interface {
	Verify(message []byte, publicKey, signature string) bool
}

// Ed25519Verifier is the production Verifier.
type Ed25519Verifier struct{}

func (Ed25519Verifier) Verify(message []byte, publicKey, signature string) bool {
	return Verify(message, publicKey, signature)
}

// Verify reports whether signature is a valid Ed25519 signature of message
// by the key encoded in publicKey.
func Verify(message []byte, publicKey, signature string) bool {
	key, ok := DecodePublicKey(publicKey)
	if !ok {
		return false
	}
	sig, ok := DecodeSignature(signature)
	if !ok {
		return false
	}
	return ed25519.Verify(key, message, sig)
}

// DecodePublicKey decodes a base58 public key and checks its length. Only
// the canonical encoding is accepted, so one key has exactly one spelling.
func DecodePublicKey(s string) (ed25519.PublicKey, bool) {
	if s == "" {
		return nil, false
	}
	raw := base58.Decode(s)
	if len(raw) != ed25519.PublicKeySize || base58.Encode(raw) != s {
		return nil, false
	}
	return ed25519.PublicKey(raw), true
}

// DecodeSignature accepts "[1,2,...]" or base58 and checks the length.
func DecodeSignature(s string) ([]byte, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}

	var raw []byte
	if strings.HasPrefix(s, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(s), &ints); err != nil {
			return nil, false
		}
		raw = make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, false
			}
			raw[i] = byte(v)
		}
	} else {
		raw = base58.Decode(s)
	}

	if len(raw) != ed25519.SignatureSize {
		return nil, false
	}
	return raw, true
}
