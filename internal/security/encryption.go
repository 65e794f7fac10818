// Package security decrypts exchange API credentials stored at rest.
// Grounded on original_source/security/encryption.py's AES-256-GCM
// contract. Built on the standard library's crypto/aes + crypto/cipher:
// no pack repo or ecosystem library offers an AEAD primitive better suited
// than Go's own (DESIGN.md justifies this as the one intentional
// stdlib-over-library choice in the repo).
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// KeySize is the required AES-256 key length in bytes.
const KeySize = 32

// Decrypt reverses AES-256-GCM encryption: ciphertext is the GCM sealed
// output (including its appended auth tag), nonce is the 12-byte value
// generated at encryption time, and key must be exactly KeySize bytes.
func Decrypt(key, nonce, ciphertext []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("security: key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("security: failed to construct AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: failed to construct GCM: %w", err)
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("security: nonce must be %d bytes, got %d", gcm.NonceSize(), len(nonce))
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("security: decryption failed (wrong key or tampered ciphertext): %w", err)
	}
	return plaintext, nil
}

// Encrypt is the inverse operation, used when storing a new exchange key.
// Returns the sealed ciphertext (auth tag appended). The caller supplies the
// 12-byte nonce and persists it alongside the ciphertext.
func Encrypt(key, nonce, plaintext []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("security: key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("security: failed to construct AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: failed to construct GCM: %w", err)
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("security: nonce must be %d bytes, got %d", gcm.NonceSize(), len(nonce))
	}
	return gcm.Seal(nil, nonce, plaintext, nil), nil
}
