package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random identifier, optionally prefixed, used to correlate
// a sync run across log lines.
func NewID(prefix string) string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	if prefix == "" {
		return hex.EncodeToString(buf)
	}
	return prefix + "_" + hex.EncodeToString(buf)
}
