// Package checksum fingerprints document contents so the index and the
// watcher can skip files that did not change.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Changed reports whether data no longer matches the digest prev.
// An empty prev always counts as changed.
func Changed(prev string, data []byte) bool {
	return prev == "" || prev != Sum(data)
}
