// Package sha256 adapts crypto/sha256 to the audit.Hasher interface.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher produces hex-encoded SHA-256 digests. It is stateless and safe
// for concurrent use.
type Hasher struct{}

// New returns the hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex digest of data. The error return satisfies
// audit.Hasher; this implementation never fails.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
