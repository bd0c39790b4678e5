// Package cryptoprim wraps the hash, cipher, and key-derivation primitives
// that the rest of enprot consumes: a hash function, a selection of
// authenticated ciphers, and a selection of password-based key derivation
// functions, plus random byte generation.
package cryptoprim

import (
	"crypto/rand"
	"errors"
	"fmt"
)

// RandomBytes generates n cryptographically secure random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("crypto/rand: %w", err)
	}

	allZero := true
	for _, v := range b {
		if v != 0 {
			allZero = false
			break
		}
	}
	if allZero && n > 0 {
		return nil, errors.New("crypto/rand: produced zero bytes")
	}

	return b, nil
}
