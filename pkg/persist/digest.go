package persist

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Algorithm names a 256-bit content digest.
type Algorithm string

const (
	SHA256     Algorithm = "sha256"
	BLAKE2b256 Algorithm = "blake2b"
)

// ParseAlgorithm maps a config string to an Algorithm; "" selects SHA256.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(s))) {
	case "", SHA256:
		return SHA256, nil
	case BLAKE2b256, "blake2b-256", "blake2b256":
		return BLAKE2b256, nil
	default:
		return "", fmt.Errorf("unknown digest algorithm %q (want sha256|blake2b)", s)
	}
}

func (a Algorithm) newHash() hash.Hash {
	if a == BLAKE2b256 {
		// blake2b.New256 only fails for keys longer than 64 bytes.
		h, _ := blake2b.New256(nil)
		return h
	}
	return sha256.New()
}

// Sum returns the hex digest of b.
func (a Algorithm) Sum(b []byte) string {
	h := a.newHash()
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil))
}
