package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewChangeID generates a client-assigned change token: millisecond timestamp
// plus a random suffix. Assigned at enqueue time, it stays stable across
// retried pushes so the server can de-duplicate re-delivered batches.
func NewChangeID() string {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		// uuid fallback keeps IDs unique even without entropy from crypto/rand
		return uuid.NewString()
	}
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), hex.EncodeToString(suffix))
}

// NewDeviceID generates the installation-scoped device identifier. Created
// once per installation, persisted, never rotated.
func NewDeviceID() string {
	return uuid.NewString()
}
