// Package identity verifies detached signatures over canonical signing
// payloads and derives stable agent identifiers from public keys.
package identity

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// DerivePersistent returns the 16-hex-char stable id for a persistent
// public key: the first 8 bytes of SHA-256(pubkey), hex-encoded.
func DerivePersistent(pubkey []byte) string {
	sum := sha256.Sum256(pubkey)
	return hex.EncodeToString(sum[:8])
}

// DeriveEphemeral returns an 8-hex-char id for an ephemeral agent, derived
// from a random seed supplied by the caller (not from a public key, since
// ephemeral agents have none).
func DeriveEphemeral(seed []byte) string {
	sum := sha256.Sum256(seed)
	return hex.EncodeToString(sum[:4])
}

// EncodePublicKey base64-encodes an Ed25519 public key, the inverse of
// ParsePublicKey.
func EncodePublicKey(pub ed25519.PublicKey) string {
	return base64.StdEncoding.EncodeToString(pub)
}

// ParsePublicKey decodes a base64-encoded Ed25519 public key.
func ParsePublicKey(encoded string) (ed25519.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("identity: decode pubkey: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("identity: pubkey must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// VerifySignature checks a base64-encoded detached signature over payload
// against the given public key.
func VerifySignature(pub ed25519.PublicKey, payload string, signatureB64 string) error {
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return fmt.Errorf("identity: decode signature: %w", err)
	}
	if !ed25519.Verify(pub, []byte(payload), sig) {
		return fmt.Errorf("identity: signature verification failed")
	}
	return nil
}
