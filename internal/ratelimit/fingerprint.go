package ratelimit

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// fingerprint returns a stable, non-reversible key for a client identifier
// (IP address or connection id) so the sliding-window maps never hold raw
// addresses in memory. Grounded on the pack's pure-Go hashing convention in
// internal/clawchain/storage_key.go.
func fingerprint(id string) string {
	sum := blake2b.Sum256([]byte(id))
	return hex.EncodeToString(sum[:16])
}
