package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// SessionFingerprint derives a stable profile key for an anonymous
// visitor from whatever session attributes are available. The same
// device keeps the same key across visits, so browsing signal
// accumulates before sign-in.
func SessionFingerprint(deviceID, userAgent string) string {
	input := fmt.Sprintf("%s|%s",
		strings.TrimSpace(deviceID),
		normalizeUserAgent(userAgent),
	)
	hash := sha256.Sum256([]byte(input))
	return "anon-" + hex.EncodeToString(hash[:16])
}

// normalizeUserAgent lowercases and collapses whitespace so trivial
// header formatting differences don't split a session into two keys
func normalizeUserAgent(ua string) string {
	return strings.Join(strings.Fields(strings.ToLower(ua)), " ")
}
