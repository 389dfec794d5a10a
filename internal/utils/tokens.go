package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// SecureToken returns n random bytes encoded as unpadded URL-safe base64.
func SecureToken(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("token length must be positive, got %d", n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
