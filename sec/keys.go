package sec

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateKey returns a random base64url key of byteLength bytes.
// Use KeySize for credential keys; token secrets may be longer.
func GenerateKey(byteLength int) (string, error) {
	if byteLength <= 0 {
		byteLength = KeySize
	}
	bytes := make([]byte, byteLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("rand.Read: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

func DecodeKey(encoded string) ([]byte, error) {
	key, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid key encoding: %w", err)
	}
	return key, nil
}
