// Package idgen produces row ids, token ids and random public identifiers.
package idgen

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Generator issues snowflake ids for primary keys. Safe for concurrent use.
type Generator struct {
	node *snowflake.Node
}

// New creates a generator for the given node (0-1023). Each process writing
// to the same database needs its own node id.
func New(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node %d: %w", nodeID, err)
	}
	return &Generator{node: node}, nil
}

func (g *Generator) NextID() int64 {
	return g.node.Generate().Int64()
}

// NewKSUID returns a globally unique, time-ordered string id.
func NewKSUID() string {
	return ksuid.New().String()
}

// reservedCodes collide with fixed route segments that share a path with
// short url lookups.
var reservedCodes = map[string]bool{
	"public": true,
}

// randomIndex returns a uniform index in [0, n).
var randomIndex = func(n int64) (int64, error) {
	idx, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0, err
	}
	return idx.Int64(), nil
}

// ShortCode returns n random base62 characters from crypto/rand. Reserved
// words are never returned.
func ShortCode(n int) (string, error) {
	for {
		b := make([]byte, n)
		for i := range b {
			idx, err := randomIndex(int64(len(base62Alphabet)))
			if err != nil {
				return "", err
			}
			b[i] = base62Alphabet[idx]
		}
		if !IsReservedCode(string(b)) {
			return string(b), nil
		}
	}
}

// IsReservedCode reports whether s is a word ShortCode will not produce.
func IsReservedCode(s string) bool {
	return reservedCodes[s]
}

// IsShortCode reports whether s could have been produced by ShortCode(n).
func IsShortCode(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z') {
			return false
		}
	}
	return true
}

// RandomToken returns n random bytes encoded as unpadded base64url.
func RandomToken(n int) (string, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
