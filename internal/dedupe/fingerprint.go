// ABOUTME: Deterministic fingerprinting of webhook events for duplicate detection.
// ABOUTME: Hashes the identifying fields of an event into a stable hex digest.

package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// fieldSeparator joins the event fields before hashing. It must never change,
// otherwise fingerprints computed before and after a deploy would differ and
// platform retries straddling the deploy would be re-admitted.
const fieldSeparator = "|"

// Fingerprint computes a deterministic hash over the identifying fields of a
// webhook event. Missing fields are passed as empty strings so that events of
// different kinds (follow, join, ...) still fingerprint consistently.
func Fingerprint(eventType, replyToken, userID, messageID, timestamp string) string {
	joined := strings.Join([]string{eventType, replyToken, userID, messageID, timestamp}, fieldSeparator)
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}
