package wire

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

// NonceSize is the fixed GCM nonce width used on the wire. Deployed clients
// expect 16 bytes, not the 12-byte GCM default.
const NonceSize = 16

// TagSize is the GCM authentication tag length appended to each body.
const TagSize = 16

// ErrBodyTooShort is returned when an encrypted body cannot even hold a nonce
// and a tag.
var ErrBodyTooShort = errors.New("encrypted body too short")

// Cipher seals and opens frame bodies under the negotiated AES session key.
// Encrypted bodies are nonce(16) ‖ ciphertext ‖ tag(16), with a fresh random
// nonce drawn per outbound frame.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a session cipher from a 16, 24, or 32 byte AES key.
func NewCipher(key []byte) (*Cipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to init AES: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("failed to init GCM: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Seal encrypts plaintext into a wire body.
func (c *Cipher) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize, NonceSize+len(plaintext)+TagSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to draw nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open authenticates and decrypts a wire body. Tag failure is fatal to the
// session; callers must close the connection on error.
func (c *Cipher) Open(body []byte) ([]byte, error) {
	if len(body) < NonceSize+TagSize {
		return nil, ErrBodyTooShort
	}
	nonce, ciphertext := body[:NonceSize], body[NonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate frame: %w", err)
	}
	return plaintext, nil
}
