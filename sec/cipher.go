package sec

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the credential key length in bytes.
const KeySize = chacha20poly1305.KeySize

var ErrCiphertext = errors.New("ciphertext too short")

// CredentialCipher seals database passwords stored in config files.
// Ciphertexts are base64url(nonce || sealed), with a fresh XChaCha20 nonce per call.
type CredentialCipher struct {
	aead cipher.AEAD
}

func NewCredentialCipher(key []byte) (*CredentialCipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &CredentialCipher{aead: aead}, nil
}

// CredentialCipherFromEnv reads a base64url key from the environment variable envName.
func CredentialCipherFromEnv(envName string) (*CredentialCipher, error) {
	encoded := strings.TrimSpace(os.Getenv(envName))
	if encoded == "" {
		return nil, fmt.Errorf("environment variable %s is not set", envName)
	}
	key, err := DecodeKey(encoded)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", envName, err)
	}
	return NewCredentialCipher(key)
}

// EncryptString seals a plaintext password.
func (c *CredentialCipher) EncryptString(plaintext string) (string, error) {
	// leave capacity for the ciphertext after the nonce
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// DecryptString opens a value produced by EncryptString.
func (c *CredentialCipher) DecryptString(encoded string) (string, error) {
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", err
	}
	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize+c.aead.Overhead() {
		return "", ErrCiphertext
	}
	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
