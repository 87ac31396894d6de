package library

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sha256Sum returns the hex encoded SHA-256 digest of data. Content addresses
// and the anti-spam fingerprint both go through here.
func Sha256Sum[T string | []byte](data T) Sha256 {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}
