package protocol

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// CheckSignature recomputes the event's content address and verifies the
// Schnorr signature over it. Returns false with a reason for anything that
// does not verify; an event failing here must never reach ingestion.
func (e Event) CheckSignature() (bool, error) {
	if computed := e.GetID(); computed != e.ID {
		return false, fmt.Errorf("event has ID %s, serialization gives %s", e.ID, computed)
	}

	pk, err := hex.DecodeString(e.PubKey)
	if err != nil {
		return false, fmt.Errorf("pubkey is not hex: %w", err)
	}
	pubkey, err := schnorr.ParsePubKey(pk)
	if err != nil {
		return false, fmt.Errorf("pubkey is invalid: %w", err)
	}

	s, err := hex.DecodeString(e.Sig)
	if err != nil {
		return false, fmt.Errorf("signature is not hex: %w", err)
	}
	sig, err := schnorr.ParseSignature(s)
	if err != nil {
		return false, fmt.Errorf("signature is invalid: %w", err)
	}

	id, err := hex.DecodeString(e.ID)
	if err != nil {
		return false, fmt.Errorf("event ID is not hex: %w", err)
	}

	return sig.Verify(id, pubkey), nil
}

// Sign derives the event's ID and signs it with the given private key. Key
// material is the caller's business; the cache itself never signs anything.
func (e *Event) Sign(privateKeyHex string) error {
	sk, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return fmt.Errorf("private key is not hex: %w", err)
	}
	priv, pub := btcec.PrivKeyFromBytes(sk)
	e.PubKey = hex.EncodeToString(schnorr.SerializePubKey(pub))
	e.ID = e.GetID()
	sig, err := schnorr.Sign(priv, mustDecodeHex(e.ID))
	if err != nil {
		return err
	}
	e.Sig = hex.EncodeToString(sig.Serialize())
	return nil
}

// GetPublicKey returns the x-only pubkey for a private key, both hex encoded.
func GetPublicKey(privateKeyHex string) (string, error) {
	sk, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return "", err
	}
	_, pub := btcec.PrivKeyFromBytes(sk)
	return hex.EncodeToString(schnorr.SerializePubKey(pub)), nil
}

func mustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}
