package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

// Iterations is the PBKDF2 iteration count. Frozen: every process that opens
// a store (the browser app and this client) must derive the identical key
// from the same password and salt, so this constant can never change for
// existing stores.
const Iterations = 10000

// Key is a derived session key. It lives in process memory only and is
// never persisted or logged. The bytes are the lowercase hex encoding of
// the raw PBKDF2 output; the hex text itself is what the cipher consumes
// as its passphrase, matching the browser side.
type Key []byte

// DeriveKey derives a session key from a password and the store salt using
// PBKDF2 with SHA-256, 10 000 iterations and a 256-bit output. The salt is
// not secret, only unique per store. Derivation always succeeds; a wrong
// password yields a well-formed key that fails later at decryption.
func DeriveKey(password, salt string) Key {
	raw := pbkdf2.Key([]byte(password), []byte(salt), Iterations, 32, sha256.New)
	return Key(hex.EncodeToString(raw))
}
