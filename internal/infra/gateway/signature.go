package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// hmacSHA256Hex returns the hex HMAC-SHA256 of msg under secret.
func hmacSHA256Hex(secret string, msg []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil))
}

// verifySignature reports whether sigHex is a valid hex-encoded HMAC-SHA256
// of msg under secret. The comparison never short-circuits on the true
// digest: a malformed or wrong-length signature still pays for a full
// constant-time comparison against a decoy, so response timing does not
// reveal where a forged signature diverges.
func verifySignature(secret string, msg []byte, sigHex string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(sigHex)
	if err != nil || len(got) != len(expected) {
		var decoy [sha256.Size]byte
		hmac.Equal(expected, decoy[:])
		return false
	}
	return hmac.Equal(expected, got)
}
