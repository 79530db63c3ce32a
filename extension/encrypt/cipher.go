package encrypt

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the length of a secret key in bytes.
const KeySize = chacha20poly1305.KeySize

var (
	ErrInvalidKey        = errors.New("encrypt: secret key must be 32 bytes encoded as hex")
	ErrMalformedSealed   = errors.New("encrypt: sealed payload is malformed")
	ErrAuthenticationTag = errors.New("encrypt: message authentication failed")
)

// Cipher seals block payloads with XChaCha20-Poly1305.
type Cipher struct {
	aead cipher.AEAD
}

// GenerateSecretKey returns a random key in the hex form NewCipher accepts.
func GenerateSecretKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("encrypt: failed to read random key: %w", err)
	}

	return hex.EncodeToString(key), nil
}

func NewCipher(secret string) (*Cipher, error) {
	key, err := hex.DecodeString(secret)
	if err != nil || len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}

	return &Cipher{
		aead: aead,
	}, nil
}

// Seal encrypts plaintext under a fresh random nonce. The additional data is
// authenticated but not stored, so the same value has to be passed to Open.
func (c *Cipher) Seal(plaintext, additional []byte) (nonce []byte, ciphertext []byte, err error) {
	nonce = make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("encrypt: failed to read nonce: %w", err)
	}

	return nonce, c.aead.Seal(nil, nonce, plaintext, additional), nil
}

func (c *Cipher) Open(nonce, ciphertext, additional []byte) ([]byte, error) {
	if len(nonce) != c.aead.NonceSize() || len(ciphertext) < c.aead.Overhead() {
		return nil, ErrMalformedSealed
	}

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, additional)
	if err != nil {
		return nil, ErrAuthenticationTag
	}

	return plaintext, nil
}
