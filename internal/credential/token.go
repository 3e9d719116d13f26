package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const (
	tokenBytes    = 32
	secretPrefix  = "dk_"
	sessionPrefix = "st_"
)

// GenerateSecret returns a new URL-safe device secret suitable for a pairing
// QR payload.
func GenerateSecret() (string, error) {
	return randomToken(secretPrefix)
}

// GenerateSessionToken returns a new opaque session token.
func GenerateSessionToken() (string, error) {
	return randomToken(sessionPrefix)
}

// HashToken returns the digest a session token is stored and looked up by.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func randomToken(prefix string) (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return prefix + base64.RawURLEncoding.EncodeToString(buf), nil
}
