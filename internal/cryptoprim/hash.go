package cryptoprim

import (
	"fmt"

	"golang.org/x/crypto/sha3"
)

// Recognized hash algorithm names.
const (
	HashSHA3_256 = "sha3-256"
	HashSHA3_512 = "sha3-512"
)

// Hash computes the digest of data under the named algorithm.
func Hash(alg string, data []byte) ([]byte, error) {
	switch alg {
	case HashSHA3_256:
		sum := sha3.Sum256(data)
		return sum[:], nil
	case HashSHA3_512:
		sum := sha3.Sum512(data)
		return sum[:], nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", alg)
	}
}

// HashSize returns the digest size in bytes for the named algorithm.
func HashSize(alg string) (int, error) {
	switch alg {
	case HashSHA3_256:
		return 32, nil
	case HashSHA3_512:
		return 64, nil
	default:
		return 0, fmt.Errorf("unknown hash algorithm %q", alg)
	}
}
