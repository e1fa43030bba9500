package stage

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the hex encoded SHA-256 digest of b. Empty input yields an
// empty string rather than the digest of zero bytes.
func Hash(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
