package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const scheme = "v1"

// Signature computes the hex HMAC-SHA256 of "<timestamp>.<payload>" under
// secret, prefixed with the scheme version.
func Signature(secret string, timestamp int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return fmt.Sprintf("%s=%s", scheme, hex.EncodeToString(mac.Sum(nil)))
}

// Verify checks a signature produced by Signature in constant time.
func Verify(secret string, timestamp int64, payload []byte, signature string) bool {
	expected := Signature(secret, timestamp, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
