package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

const opaqueTokenBytes = 32

// GenerateOpaqueToken returns a cryptographically random, hex-encoded value.
// Used for session ids, verification/reset tokens and OAuth CSRF state.
func GenerateOpaqueToken() (string, error) {
	raw := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// HashOpaque returns the hex sha256 digest of a raw token. Verification and
// reset tokens are stored only in this form.
func HashOpaque(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// ConstantTimeEqualHex compares two hex digests without leaking the position
// of the first differing byte. A decoded length mismatch (or undecodable
// input) returns false before any byte comparison.
func ConstantTimeEqualHex(a, b string) bool {
	ab, err := hex.DecodeString(a)
	if err != nil {
		return false
	}
	bb, err := hex.DecodeString(b)
	if err != nil {
		return false
	}
	if len(ab) != len(bb) {
		return false
	}
	return subtle.ConstantTimeCompare(ab, bb) == 1
}

// API key format limits. The prefix is a public lookup key, never the
// authenticator; the secret is the verified material.
const (
	minAPIKeyPrefixLen = 6
	minAPIKeySecretLen = 16
)

// ParseAPIKey splits a presented `<prefix>.<secret>` credential. ok is false
// when the separator is missing, the prefix is shorter than 6 characters or
// the secret shorter than 16.
func ParseAPIKey(presented string) (prefix, secret string, ok bool) {
	i := strings.IndexByte(presented, '.')
	if i < 0 {
		return "", "", false
	}
	prefix, secret = presented[:i], presented[i+1:]
	if len(prefix) < minAPIKeyPrefixLen || len(secret) < minAPIKeySecretLen {
		return "", "", false
	}
	return prefix, secret, true
}
