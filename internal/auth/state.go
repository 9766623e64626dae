package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// stateBytesLength gives 256 bits of entropy per OAuth state value.
const stateBytesLength = 32

// generateState creates a cryptographically random OAuth state value.
func generateState() (string, error) {
	bytes := make([]byte, stateBytesLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
