package credential

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is used when no cost is configured.
const DefaultCost = 12

// legacyHexPrefix marks hashes that were written through a bytea column and
// read back in Postgres' hex output format.
const legacyHexPrefix = `\x`

// Hasher hashes and verifies device secrets with bcrypt.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher with the given cost, clamped to bcrypt's range.
func NewHasher(cost int) *Hasher {
	switch {
	case cost <= 0:
		cost = DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

// Cost returns the configured work factor.
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash returns the bcrypt encoding of secret.
func (h *Hasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", errors.New("empty secret")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(b), nil
}

// Verify reports whether secret matches stored. A mismatch is (false, nil);
// an unusable stored hash is (false, err).
func (h *Hasher) Verify(secret, stored string) (bool, error) {
	normalized, err := NormalizeHash(stored)
	if err != nil {
		return false, err
	}
	err = bcrypt.CompareHashAndPassword([]byte(normalized), []byte(secret))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("verify secret: %w", err)
	}
}

// NeedsRehash reports whether stored was produced with a different cost or
// in the legacy encoding.
func (h *Hasher) NeedsRehash(stored string) bool {
	if strings.HasPrefix(stored, legacyHexPrefix) {
		return true
	}
	cost, err := bcrypt.Cost([]byte(stored))
	return err != nil || cost != h.cost
}

// NormalizeHash transcodes a legacy hex-escaped bytea value into the plain
// bcrypt string. Other values are returned trimmed and otherwise unchanged.
func NormalizeHash(stored string) (string, error) {
	stored = strings.TrimSpace(stored)
	if stored == "" {
		return "", errors.New("empty stored hash")
	}
	if !strings.HasPrefix(stored, legacyHexPrefix) {
		return stored, nil
	}
	decoded, err := hex.DecodeString(stored[len(legacyHexPrefix):])
	if err != nil {
		return "", fmt.Errorf("decode legacy hash: %w", err)
	}
	return string(decoded), nil
}
