// Package vault encrypts vendor secrets at rest with XChaCha20-Poly1305.
package vault

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrNoKey      = errors.New("vault: no encryption key configured")
	ErrCiphertext = errors.New("vault: malformed ciphertext")
)

// Vault seals and opens short secrets. The zero value has no key and fails every call.
type Vault struct {
	aead cipher.AEAD
}

// New builds a vault from a 32-byte key.
func New(key []byte) (*Vault, error) {
	if len(key) == 0 {
		return &Vault{}, nil
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Enabled reports whether a key is configured.
func (v *Vault) Enabled() bool {
	return v != nil && v.aead != nil
}

// Seal encrypts plaintext and returns base64(nonce || ciphertext). The
// additional data binds the secret to its owner, e.g. the feature name.
func (v *Vault) Seal(plaintext, additional string) (string, error) {
	if !v.Enabled() {
		return "", ErrNoKey
	}
	nonce := make([]byte, v.aead.NonceSize(), v.aead.NonceSize()+len(plaintext)+v.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := v.aead.Seal(nonce, nonce, []byte(plaintext), []byte(additional))
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal.
func (v *Vault) Open(sealed, additional string) (string, error) {
	if !v.Enabled() {
		return "", ErrNoKey
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < v.aead.NonceSize()+v.aead.Overhead() {
		return "", ErrCiphertext
	}
	nonce, body := raw[:v.aead.NonceSize()], raw[v.aead.NonceSize():]
	plain, err := v.aead.Open(nil, nonce, body, []byte(additional))
	if err != nil {
		return "", fmt.Errorf("vault: open: %w", err)
	}
	return string(plain), nil
}

// Hint returns the last four characters of a secret for display.
func Hint(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return "…" + secret[len(secret)-4:]
}
