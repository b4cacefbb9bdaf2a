package wire

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
)

const (
	rsaBits = 2048

	// encryptedKeySize is the RSA-2048 OAEP ciphertext length carrying the
	// AES session key.
	encryptedKeySize = 256

	// keyReadAttempts bounds how many frames the server reads while waiting
	// for a body of exactly encryptedKeySize bytes.
	keyReadAttempts = 5
)

// ErrNoSessionKey is returned when the client never delivers a session key of
// the expected size.
var ErrNoSessionKey = errors.New("no session key received")

// ServerHandshake runs the server side of the key exchange:
//
//  1. send one plaintext frame carrying the PEM of a fresh 2048-bit RSA
//     public key,
//  2. read frames until one carries the 256-byte RSA-OAEP ciphertext of the
//     AES session key (at most keyReadAttempts reads),
//  3. reply with a 16-byte nonce frame.
//
// The trailing nonce is a compatibility requirement of deployed clients; it
// plays no cryptographic role, every encrypted frame carries its own nonce.
// OAEP uses SHA-1 for the same compatibility reason.
func ServerHandshake(rw io.ReadWriter) (*Cipher, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	if err := WriteFrame(rw, pemBytes); err != nil {
		return nil, fmt.Errorf("failed to send public key: %w", err)
	}

	var encryptedKey []byte
	for attempt := 0; attempt < keyReadAttempts; attempt++ {
		body, err := ReadFrame(rw)
		if err != nil {
			return nil, fmt.Errorf("failed to read session key: %w", err)
		}
		if len(body) == encryptedKeySize {
			encryptedKey = body
			break
		}
	}
	if encryptedKey == nil {
		return nil, ErrNoSessionKey
	}

	sessionKey, err := rsa.DecryptOAEP(sha1.New(), rand.Reader, key, encryptedKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session key: %w", err)
	}
	c, err := NewCipher(sessionKey)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to draw nonce: %w", err)
	}
	if err := WriteFrame(rw, nonce); err != nil {
		return nil, fmt.Errorf("failed to send nonce: %w", err)
	}

	return c, nil
}

// ClientHandshake runs the client side of the exchange. The server is the
// production role; this side exists for tools and tests.
func ClientHandshake(rw io.ReadWriter) (*Cipher, error) {
	pemBody, err := ReadFrame(rw)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}
	block, _ := pem.Decode(pemBody)
	if block == nil {
		return nil, errors.New("no PEM block in public key frame")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unexpected public key type %T", pub)
	}

	sessionKey := make([]byte, 32)
	if _, err := rand.Read(sessionKey); err != nil {
		return nil, fmt.Errorf("failed to draw session key: %w", err)
	}
	encrypted, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, rsaPub, sessionKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt session key: %w", err)
	}
	if err := WriteFrame(rw, encrypted); err != nil {
		return nil, fmt.Errorf("failed to send session key: %w", err)
	}

	nonce, err := ReadFrame(rw)
	if err != nil {
		return nil, fmt.Errorf("failed to read nonce: %w", err)
	}
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("unexpected nonce length %d", len(nonce))
	}

	return NewCipher(sessionKey)
}
