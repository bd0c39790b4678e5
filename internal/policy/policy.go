// Package policy implements the CryptoPolicy capability bundle (§4.5):
// a pluggable set of checks the transformer consults before deriving
// keys or invoking a cipher, plus the default algorithm choices used
// when the driver leaves a setting unspecified.
package policy

import (
	"fmt"

	"github.com/enprot/enprot/internal/cryptoprim"
	"github.com/enprot/enprot/internal/enerrors"
)

// CryptoPolicy gates which algorithms and parameters the transformer may
// use. check_* methods return a *enerrors.PolicyError on rejection.
type CryptoPolicy interface {
	Name() string

	CheckHash(alg string) error
	CheckPBKDF(alg string, keyLen int, params cryptoprim.Params) error
	CheckSalt(salt []byte) error
	CheckCipher(alg string, iv, ad []byte) error

	DefaultPBKDFAlg() string
	DefaultPBKDFSaltLength() int
	DefaultPBKDFMillis() int
	DefaultCipherAlg() string
	DefaultHashAlg() string
}

// ByName resolves "none" or "nist" to its CryptoPolicy implementation.
func ByName(name string) (CryptoPolicy, error) {
	switch name {
	case "none":
		return nonePolicy{}, nil
	case "nist":
		return nistPolicy{}, nil
	default:
		return nil, enerrors.NewConfigError("policy", fmt.Sprintf("unknown policy %q, want \"none\" or \"nist\"", name))
	}
}

// nonePolicy imposes no restrictions beyond what the algorithms
// themselves require; it exists to let callers opt into the pack's
// stronger algorithms (argon2, scrypt, aes-256-siv) when FIPS-style
// compliance is not a concern.
type nonePolicy struct{}

func (nonePolicy) Name() string { return "none" }

func (nonePolicy) CheckHash(alg string) error { return nil }

func (nonePolicy) CheckPBKDF(alg string, keyLen int, params cryptoprim.Params) error {
	return nil
}

func (nonePolicy) CheckSalt(salt []byte) error { return nil }

func (nonePolicy) CheckCipher(alg string, iv, ad []byte) error { return nil }

func (nonePolicy) DefaultPBKDFAlg() string     { return cryptoprim.Argon2id }
func (nonePolicy) DefaultPBKDFSaltLength() int { return 16 }
func (nonePolicy) DefaultPBKDFMillis() int     { return 100 }
func (nonePolicy) DefaultCipherAlg() string    { return cryptoprim.AES256SIV }
func (nonePolicy) DefaultHashAlg() string      { return cryptoprim.HashSHA3_256 }

// nistPolicy restricts the transformer to the algorithm subset and
// parameter floors described in §4.5: pbkdf2-sha256/512, aes-256-gcm,
// sha3-256/512, with minimum salt/key/iteration sizes and a fixed
// 12-byte GCM IV.
type nistPolicy struct{}

func (nistPolicy) Name() string { return "nist" }

func (nistPolicy) CheckHash(alg string) error {
	switch alg {
	case cryptoprim.HashSHA3_256, cryptoprim.HashSHA3_512:
		return nil
	default:
		return enerrors.NewPolicyError("hash", "hash algorithm is not permitted by policy: "+alg)
	}
}

const nistMinSaltLength = 16
const nistMinKeyLength = 14
const nistMinIterations = 1000

func (nistPolicy) CheckPBKDF(alg string, keyLen int, params cryptoprim.Params) error {
	switch alg {
	case cryptoprim.PBKDF2SHA256, cryptoprim.PBKDF2SHA512:
	default:
		return enerrors.NewPolicyError("pbkdf", "PBKDF algorithm is not permitted by policy")
	}
	if keyLen < nistMinKeyLength {
		return enerrors.NewPolicyError("pbkdf", "derived key length is too short for policy")
	}
	if i, ok := params["i"]; ok && i < nistMinIterations {
		return enerrors.NewPolicyError("pbkdf", "Iteration count violates policy")
	}
	return nil
}

// CheckSalt is consulted by the transformer separately from CheckPBKDF,
// since salt length is a property of the generated/explicit salt rather
// than the params map.
func (nistPolicy) CheckSalt(salt []byte) error {
	if len(salt) < nistMinSaltLength {
		return enerrors.NewPolicyError("pbkdf", "salt is too short for policy")
	}
	return nil
}

func (nistPolicy) CheckCipher(alg string, iv, ad []byte) error {
	if alg != cryptoprim.AES256GCM {
		return enerrors.NewPolicyError("cipher", "cipher algorithm is not permitted by policy: "+alg)
	}
	if len(iv) != 12 {
		return enerrors.NewPolicyError("cipher", "aes-256-gcm requires a 12-byte IV under policy")
	}
	return nil
}

func (nistPolicy) DefaultPBKDFAlg() string     { return cryptoprim.PBKDF2SHA512 }
func (nistPolicy) DefaultPBKDFSaltLength() int { return 32 }
func (nistPolicy) DefaultPBKDFMillis() int     { return 100 }
func (nistPolicy) DefaultCipherAlg() string    { return cryptoprim.AES256GCM }
func (nistPolicy) DefaultHashAlg() string      { return cryptoprim.HashSHA3_256 }
