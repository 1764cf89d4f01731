package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/btcsuite/btcutil/base58"
)

// Keypair is an Ed25519 key held by a validator node.
type Keypair struct {
	private ed25519.PrivateKey
}

// GenerateKeypair creates a fresh random keypair.
func GenerateKeypair() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return &Keypair{private: priv}, nil
}

// KeypairFromPrivateKey wraps a 64 byte Ed25519 private key.
func KeypairFromPrivateKey(priv ed25519.PrivateKey) (*Keypair, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key has %d bytes, want %d", len(priv), ed25519.PrivateKeySize)
	}
	return &Keypair{private: priv}, nil
}

// LoadKeypair reads a keypair file in the solana-keygen format: a JSON array
// of the 64 secret key bytes.
func LoadKeypair(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keypair file: %w", err)
	}
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return nil, fmt.Errorf("failed to parse keypair file: %w", err)
	}
	raw := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("keypair byte %d out of range: %d", i, v)
		}
		raw[i] = byte(v)
	}
	return KeypairFromPrivateKey(ed25519.PrivateKey(raw))
}

// Save writes the keypair in the same format LoadKeypair reads.
func (k *Keypair) Save(path string) error {
	if err := os.WriteFile(path, []byte(encodeBytes(k.private)), 0o600); err != nil {
		return fmt.Errorf("failed to write keypair file: %w", err)
	}
	return nil
}

// PublicKey returns the base58 encoded public key.
func (k *Keypair) PublicKey() string {
	return base58.Encode(k.private.Public().(ed25519.PublicKey))
}

// Sign returns a detached signature of message in wire form ("[..]").
func (k *Keypair) Sign(message []byte) string {
	return encodeBytes(ed25519.Sign(k.private, message))
}

// SignBase58 returns the detached signature as base58.
func (k *Keypair) SignBase58(message []byte) string {
	return base58.Encode(ed25519.Sign(k.private, message))
}

func encodeBytes(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b)*4 + 2)
	sb.WriteByte('[')
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(v)))
	}
	sb.WriteByte(']')
	return sb.String()
}
