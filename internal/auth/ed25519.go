package auth

import (
	"crypto/ed25519"
	"encoding/hex"
)

// Interaction channel header names, fixed by Discord.
const (
	HeaderEd25519Signature = "X-Signature-Ed25519"
	HeaderEd25519Timestamp = "X-Signature-Timestamp"
)

// VerifyInteraction checks the Ed25519 signature over the concatenation of
// the timestamp header and the raw request body, exactly as transmitted.
// Verification must run before any JSON decode: re-serialization can change
// the bytes and invalidate a legitimate signature.
//
// Fails closed: missing headers, malformed hex, a key of the wrong size, or
// a cryptographic failure all return false and never panic past this
// boundary.
func VerifyInteraction(publicKeyHex, timestamp, signatureHex string, body []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	if timestamp == "" || signatureHex == "" {
		return false
	}

	key, err := hex.DecodeString(publicKeyHex)
	if err != nil || len(key) != ed25519.PublicKeySize {
		return false
	}
	sig, err := hex.DecodeString(signatureHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}

	msg := append([]byte(timestamp), body...)
	return ed25519.Verify(ed25519.PublicKey(key), msg, sig)
}
