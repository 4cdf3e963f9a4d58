package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// hashTokenLen is the length of the on-disk filename token in hex
// characters. Frozen for store compatibility. Truncation leaves a
// theoretical collision risk that is acceptable at expected note counts
// and is not detected.
const hashTokenLen = 12

// HashID maps a logical note ID to a fixed-length printable filename
// token. The mapping is deterministic and one-way, so directory listings
// reveal neither titles nor creation order.
func HashID(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])[:hashTokenLen]
}
