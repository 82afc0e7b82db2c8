package db

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

// pbkdf2Iterations follows the OWASP recommendation for PBKDF2-SHA256.
const pbkdf2Iterations = 600_000

var errCiphertextTooShort = errors.New("database: ciphertext too short")

// Cipher seals and opens summary text at rest with ChaCha20-Poly1305. The key
// is derived from a user passphrase with PBKDF2-SHA256 and a per-database salt.
// A nil Cipher passes text through unchanged, for installs without a passphrase.
type Cipher struct {
	key []byte
}

// NewCipher derives the sealing key. An empty passphrase yields a nil Cipher.
func NewCipher(passphrase string, salt []byte) (*Cipher, error) {
	if passphrase == "" {
		return nil, nil
	}
	if len(salt) < 16 {
		return nil, fmt.Errorf("database: salt must be at least 16 bytes, got %d", len(salt))
	}
	key := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, chacha20poly1305.KeySize, sha256.New)
	return &Cipher{key: key}, nil
}

// NewSalt returns a fresh random key-derivation salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("database: generate salt: %w", err)
	}
	return salt, nil
}

// Seal encrypts plaintext and returns base64(nonce || ciphertext).
func (c *Cipher) Seal(plaintext string) (string, error) {
	if c == nil {
		return plaintext, nil
	}
	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return "", fmt.Errorf("database: init aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("database: generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal.
func (c *Cipher) Open(stored string) (string, error) {
	if c == nil {
		return stored, nil
	}
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("database: decode ciphertext: %w", err)
	}
	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return "", fmt.Errorf("database: init aead: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return "", errCiphertextTooShort
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("database: decrypt: %w", err)
	}
	return string(plaintext), nil
}
