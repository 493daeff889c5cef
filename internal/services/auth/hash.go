package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// Supported password digest algorithms
const (
	HashSHA256   = "sha256"
	HashSHA3_256 = "sha3-256"
)

// Hasher turns a plaintext password into the stored base64 digest
type Hasher interface {
	Hash(password string) string
	Algorithm() string
}

type digestHasher struct {
	algorithm string
	sum       func([]byte) []byte
}

func (h digestHasher) Hash(password string) string {
	return base64.StdEncoding.EncodeToString(h.sum([]byte(password)))
}

func (h digestHasher) Algorithm() string {
	return h.algorithm
}

// NewHasher returns the hasher for algorithm
func NewHasher(algorithm string) (Hasher, error) {
	switch algorithm {
	case HashSHA256, "":
		return digestHasher{algorithm: HashSHA256, sum: func(b []byte) []byte {
			d := sha256.Sum256(b)
			return d[:]
		}}, nil
	case HashSHA3_256:
		return digestHasher{algorithm: HashSHA3_256, sum: func(b []byte) []byte {
			d := sha3.Sum256(b)
			return d[:]
		}}, nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", algorithm)
	}
}

// matches compares a stored digest against a candidate in constant time
func matches(stored, candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1
}
