// Package crypto wraps clip encryption keys at rest with AES-256-GCM under a
// server-held master key. Clip content itself is encrypted client-side and
// stored as an opaque blob; only the owner-supplied key passes through here.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// sealedPrefix marks values produced by Seal so that double wrapping and
	// unwrapping of foreign values can be detected.
	sealedPrefix = "v1:"

	defaultIterations = 100000
)

// keySalt is fixed so the master key derived from a given secret is stable
// across restarts.
var keySalt = []byte("clipshelf/encryption-key/v1")

var (
	ErrKeyLengthInvalid    = errors.New("crypto: key must be exactly 32 bytes for AES-256")
	ErrCiphertextCorrupted = errors.New("crypto: ciphertext is corrupted or tampered")
	ErrDecryptionFailed    = errors.New("crypto: decryption operation failed")
	ErrEmptySecret         = errors.New("crypto: secret must not be empty")
)

type KeyCipher struct {
	aead cipher.AEAD
}

// NewKeyCipher creates a cipher with a 32-byte master key.
func NewKeyCipher(masterKey []byte) (*KeyCipher, error) {
	if len(masterKey) != 32 {
		return nil, ErrKeyLengthInvalid
	}
	keyCopy := make([]byte, 32)
	copy(keyCopy, masterKey)

	block, err := aes.NewCipher(keyCopy)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &KeyCipher{aead: aead}, nil
}

// DeriveKeyCipher derives the master key from secret with PBKDF2-SHA256.
func DeriveKeyCipher(secret string) (*KeyCipher, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	derived := pbkdf2.Key([]byte(secret), keySalt, defaultIterations, 32, sha256.New)
	return NewKeyCipher(derived)
}

// Seal encrypts plaintext and returns "v1:" + base64url(nonce || ciphertext).
func (kc *KeyCipher) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, kc.aead.NonceSize())
	_, err := io.ReadFull(rand.Reader, nonce)
	if err != nil {
		return "", err
	}

	sealed := kc.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (kc *KeyCipher) Open(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	if len(encoded) <= len(sealedPrefix) || encoded[:len(sealedPrefix)] != sealedPrefix {
		return "", ErrCiphertextCorrupted
	}

	ciphertext, err := base64.RawURLEncoding.DecodeString(encoded[len(sealedPrefix):])
	if err != nil {
		return "", ErrCiphertextCorrupted
	}

	nonceLen := kc.aead.NonceSize()
	if len(ciphertext) < nonceLen {
		return "", ErrCiphertextCorrupted
	}

	plaintext, err := kc.aead.Open(nil, ciphertext[:nonceLen], ciphertext[nonceLen:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}
