// internal/daily/daily.go
//
// Deterministic daily puzzle selection.
// The puzzle of the day is HMAC-SHA256(salt, YYYY-MM-DD) mod catalogue size,
// so every server instance with the same salt agrees without coordination.

package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"time"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Index returns the catalogue index for the day containing t.
func Index(t time.Time, salt string, n int) int {
	if n <= 0 {
		return 0
	}
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(DateKey(t)))
	sum := h.Sum(nil)
	// first 8 bytes as uint64 for an even spread
	v := binary.BigEndian.Uint64(sum[:8])
	return int(v % uint64(n))
}
