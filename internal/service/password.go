package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// PasswordHasher derives argon2id hashes. The salt is stored in its own
// column; the hash column carries the parameters so they can be raised
// without invalidating existing hashes.
type PasswordHasher struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

// DefaultPasswordHasher uses the RFC 9106 second recommended option.
func DefaultPasswordHasher() *PasswordHasher {
	return &PasswordHasher{
		Time:    3,
		Memory:  64 * 1024,
		Threads: 2,
		KeyLen:  32,
		SaltLen: 16,
	}
}

var errMalformedHash = errors.New("malformed password hash")

// Hash returns the encoded hash and the base64 salt.
func (h *PasswordHasher) Hash(password string) (hash, salt string, err error) {
	rawSalt := make([]byte, h.SaltLen)
	_, err = rand.Read(rawSalt)
	if err != nil {
		return "", "", err
	}

	key := argon2.IDKey([]byte(password), rawSalt, h.Time, h.Memory, h.Threads, h.KeyLen)
	hash = fmt.Sprintf("argon2id$v=%d$m=%d,t=%d,p=%d$%s",
		argon2.Version, h.Memory, h.Time, h.Threads, base64.RawStdEncoding.EncodeToString(key))
	return hash, base64.RawStdEncoding.EncodeToString(rawSalt), nil
}

// Verify reports whether password matches hash and salt. It uses the
// parameters recorded in hash, not the hasher's current ones.
func (h *PasswordHasher) Verify(password, hash, salt string) (bool, error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 4 || parts[0] != "argon2id" {
		return false, errMalformedHash
	}

	var version int
	_, err := fmt.Sscanf(parts[1], "v=%d", &version)
	if err != nil || version != argon2.Version {
		return false, errMalformedHash
	}

	var memory, iterations uint32
	var threads uint8
	_, err = fmt.Sscanf(parts[2], "m=%d,t=%d,p=%d", &memory, &iterations, &threads)
	if err != nil {
		return false, errMalformedHash
	}

	want, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return false, errMalformedHash
	}
	rawSalt, err := base64.RawStdEncoding.DecodeString(salt)
	if err != nil {
		return false, errMalformedHash
	}

	got := argon2.IDKey([]byte(password), rawSalt, iterations, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
