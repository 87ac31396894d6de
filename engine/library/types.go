package library

import "encoding/hex"

type Account = string

type RelayURL = string

type Sha256 = string

// ValidHexKey reports whether s is a 64 character hex string, the shape of
// every event ID and pubkey on the wire. References that fail this check come
// from attacker-controlled tags and must never create entities.
func ValidHexKey(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
