package cryptoprim

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/enprot/enprot/internal/enerrors"
)

// Recognized cipher algorithm names.
const (
	AES256GCM    = "aes-256-gcm"
	AES256SIV    = "aes-256-siv"
	AES256GCMSIV = "aes-256-gcm-siv"
)

// Cipher is an authenticated encryption algorithm keyed once and reused
// across Seal/Open calls with per-message IV and associated data.
type Cipher interface {
	// Seal encrypts plaintext under key, iv, and ad, returning ciphertext
	// with the authentication tag appended.
	Seal(key, iv, ad, plaintext []byte) ([]byte, error)
	// Open authenticates and decrypts ciphertext (tag included) under key,
	// iv, and ad. Returns enerrors.ErrAuthFailed (wrapped) on tag mismatch.
	Open(key, iv, ad, ciphertext []byte) ([]byte, error)
	// KeySize is the key length in bytes this cipher requires.
	KeySize() int
}

// GetCipher resolves a cipher algorithm name to its implementation.
func GetCipher(alg string) (Cipher, error) {
	switch alg {
	case AES256GCM:
		return aesGCM{}, nil
	case AES256SIV:
		return aesSIV{}, nil
	case AES256GCMSIV:
		return aesGCMSIV{}, nil
	default:
		return nil, fmt.Errorf("unknown cipher algorithm %q", alg)
	}
}

// aesGCM implements the Cipher interface over stdlib AES-GCM. The IV is
// used directly as the GCM nonce, so its length must match what the
// caller's policy requires (12 bytes under the nist policy).
type aesGCM struct{}

func (aesGCM) KeySize() int { return 32 }

func (aesGCM) newGCM(key []byte, ivLen int) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, ivLen)
}

func (c aesGCM) Seal(key, iv, ad, plaintext []byte) ([]byte, error) {
	gcm, err := c.newGCM(key, len(iv))
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nil, iv, plaintext, ad), nil
}

func (c aesGCM) Open(key, iv, ad, ciphertext []byte) ([]byte, error) {
	gcm, err := c.newGCM(key, len(iv))
	if err != nil {
		return nil, err
	}
	pt, err := gcm.Open(nil, iv, ciphertext, ad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", enerrors.ErrAuthFailed, err)
	}
	return pt, nil
}
