package cache

import (
	"crypto/sha256"
	"fmt"
	"time"

	"planwise/internal/session"
)

// CachedResponse represents a cached API response
type CachedResponse struct {
	Response  string
	Timestamp time.Time
}

// Key generates a cache key from the conversation. Only role and content
// participate; timestamps and IDs would defeat the cache.
func Key(messages []session.Message) string {
	h := sha256.New()
	for _, msg := range messages {
		h.Write([]byte(msg.Role))
		h.Write([]byte{0})
		h.Write([]byte(msg.Content))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
