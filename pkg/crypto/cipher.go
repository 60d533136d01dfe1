package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"
)

// ErrCiphertextTooShort is returned when sealed data lacks a full nonce.
var ErrCiphertextTooShort = errors.New("crypto: ciphertext too short")

// Sealer encrypts small payloads at rest with AES-GCM. A zero Sealer passes data through.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives a 256-bit key from secret. An empty secret yields a passthrough Sealer.
func NewSealer(secret string) (Sealer, error) {
	if secret == "" {
		return Sealer{}, nil
	}
	sum := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return Sealer{}, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return Sealer{}, err
	}
	return Sealer{aead: gcm}, nil
}

// Enabled reports whether the sealer actually encrypts.
func (s Sealer) Enabled() bool {
	return s.aead != nil
}

// Seal encrypts plaintext, prefixing the random nonce.
func (s Sealer) Seal(plaintext []byte) ([]byte, error) {
	if s.aead == nil {
		return plaintext, nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal.
func (s Sealer) Open(payload []byte) ([]byte, error) {
	if s.aead == nil {
		return payload, nil
	}
	nonceSize := s.aead.NonceSize()
	if len(payload) < nonceSize {
		return nil, ErrCiphertextTooShort
	}
	return s.aead.Open(nil, payload[:nonceSize], payload[nonceSize:], nil)
}
