package cryptoprim

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"sort"
	"time"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// Recognized PBKDF algorithm names.
const (
	PBKDF2SHA256 = "pbkdf2-sha256"
	PBKDF2SHA512 = "pbkdf2-sha512"
	Argon2id     = "argon2"
	Scrypt       = "scrypt"
	Legacy       = "legacy"
)

// KeySize is the 32-byte key length of AES-256-GCM and AES-256-GCM-SIV.
// DeriveKey itself derives whatever length the target cipher's KeySize()
// asks for, which is 64 bytes for AES-SIV.
const KeySize = 32

// Params holds PBKDF parameter values keyed by their short names (i, m, t,
// p, N, r), matching the ProtBlob params sub-string in the spec.
type Params map[string]int64

// Keys returns the parameter names in sorted order, for deterministic
// textual encoding.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// recognizedParamKeys lists the parameter keys each PBKDF algorithm accepts.
// An params key outside this set is rejected, per the ProtBlob encoding contract.
var recognizedParamKeys = map[string]map[string]bool{
	PBKDF2SHA256: {"i": true},
	PBKDF2SHA512: {"i": true},
	Argon2id:     {"m": true, "t": true, "p": true},
	Scrypt:       {"N": true, "r": true, "p": true},
	Legacy:       {"i": true},
}

// ValidateParamKeys rejects any params key not recognized for alg.
func ValidateParamKeys(alg string, params Params) error {
	allowed, ok := recognizedParamKeys[alg]
	if !ok {
		return fmt.Errorf("unknown PBKDF algorithm %q", alg)
	}
	for k := range params {
		if !allowed[k] {
			return fmt.Errorf("unknown PBKDF parameter %q for %s", k, alg)
		}
	}
	return nil
}

// DefaultParams returns the baseline cost parameters for alg, used when the
// caller supplies no explicit params and no timed calibration is requested.
func DefaultParams(alg string) Params {
	switch alg {
	case PBKDF2SHA256, PBKDF2SHA512:
		return Params{"i": 600000}
	case Argon2id:
		return Params{"m": 1 << 16, "t": 3, "p": 4} // 64 MiB, 3 passes, 4 lanes
	case Scrypt:
		return Params{"N": 1 << 15, "r": 8, "p": 1}
	case Legacy:
		return Params{"i": 1000}
	default:
		return Params{}
	}
}

// DeriveKey derives a keySize-byte key from password and salt using alg and
// params. keySize is the target cipher's KeySize(): 32 for AES-GCM and
// AES-GCM-SIV, 64 for AES-SIV (split into two 32-byte subkeys via HKDF,
// see cryptoprim.aesSIV).
func DeriveKey(alg string, password, salt []byte, params Params, keySize int) ([]byte, error) {
	if err := ValidateParamKeys(alg, params); err != nil {
		return nil, err
	}

	switch alg {
	case PBKDF2SHA256:
		iter := paramInt(params, "i", 600000)
		return pbkdf2.Key(password, salt, iter, keySize, sha256.New), nil

	case PBKDF2SHA512:
		iter := paramInt(params, "i", 600000)
		return pbkdf2.Key(password, salt, iter, keySize, sha512.New), nil

	case Legacy:
		iter := paramInt(params, "i", 1000)
		return pbkdf2.Key(password, salt, iter, keySize, sha256.New), nil

	case Argon2id:
		m := uint32(paramInt(params, "m", 1<<16))
		t := uint32(paramInt(params, "t", 3))
		p := uint8(paramInt(params, "p", 4))
		return argon2.IDKey(password, salt, t, m, p, uint32(keySize)), nil

	case Scrypt:
		n := int(paramInt(params, "N", 1<<15))
		r := int(paramInt(params, "r", 8))
		p := int(paramInt(params, "p", 1))
		return scrypt.Key(password, salt, n, r, p, keySize)

	default:
		return nil, fmt.Errorf("unknown PBKDF algorithm %q", alg)
	}
}

func paramInt(params Params, key string, fallback int64) int64 {
	if v, ok := params[key]; ok {
		return v
	}
	return fallback
}

// TimedDerive calibrates a cost parameter for alg so that one derivation
// takes at least targetMillis, then returns the chosen params alongside the
// derived key. pbkdf2 variants scale the iteration count; argon2 scales the
// pass count; scrypt scales N. Each loop also stops at a fixed cost cap, in
// which case the derivation may be faster than targetMillis. Legacy is never
// timed (fixed low cost, kept only for decrypt compatibility with existing
// blobs).
func TimedDerive(alg string, password, salt []byte, targetMillis, keySize int) (Params, []byte, error) {
	target := time.Duration(targetMillis) * time.Millisecond

	switch alg {
	case PBKDF2SHA256, PBKDF2SHA512:
		iter := 100000
		for {
			params := Params{"i": int64(iter)}
			start := time.Now()
			key, err := DeriveKey(alg, password, salt, params, keySize)
			if err != nil {
				return nil, nil, err
			}
			if time.Since(start) >= target || iter > 50_000_000 {
				return params, key, nil
			}
			iter *= 2
		}

	case Argon2id:
		passes := int64(1)
		for {
			params := Params{"m": 1 << 16, "t": passes, "p": 4}
			start := time.Now()
			key, err := DeriveKey(alg, password, salt, params, keySize)
			if err != nil {
				return nil, nil, err
			}
			if time.Since(start) >= target || passes > 64 {
				return params, key, nil
			}
			passes++
		}

	case Scrypt:
		n := int64(1 << 12)
		for {
			params := Params{"N": n, "r": 8, "p": 1}
			start := time.Now()
			key, err := DeriveKey(alg, password, salt, params, keySize)
			if err != nil {
				return nil, nil, err
			}
			if time.Since(start) >= target || n > 1<<22 {
				return params, key, nil
			}
			n *= 2
		}

	case Legacy:
		params := DefaultParams(Legacy)
		key, err := DeriveKey(alg, password, salt, params, keySize)
		return params, key, err

	default:
		return nil, nil, fmt.Errorf("unknown PBKDF algorithm %q", alg)
	}
}
