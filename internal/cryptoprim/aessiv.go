package cryptoprim

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"errors"
	"io"

	"github.com/enprot/enprot/internal/enerrors"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

// aesSIV implements AES-SIV (RFC 5297): deterministic, nonce-misuse
// resistant authenticated encryption. The region's IV (of any length,
// including zero) is folded into the S2V computation as an extra
// associated-data component alongside ad, so IV reuse never leaks the
// plaintext - the "any IV length" property the spec asks for.
type aesSIV struct{}

func (aesSIV) KeySize() int { return 64 } // two 32-byte subkeys, expanded via HKDF

// subkeys derives the S2V (CMAC) key and the CTR key from the 64-byte master
// key via HKDF.
func (aesSIV) subkeys(key []byte) (macKey, ctrKey []byte, err error) {
	r := hkdf.New(sha3.New256, key, nil, []byte("enprot aes-siv"))
	macKey = make([]byte, 32)
	ctrKey = make([]byte, 32)
	if _, err = io.ReadFull(r, macKey); err != nil {
		return nil, nil, err
	}
	if _, err = io.ReadFull(r, ctrKey); err != nil {
		return nil, nil, err
	}
	return macKey, ctrKey, nil
}

func (a aesSIV) s2v(macKey, ad, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(macKey)
	if err != nil {
		return nil, err
	}
	m := cmac(block)

	d := m.sum(make([]byte, 16))
	d = xor(dbl(d), m.sum(ad))
	d = xor(dbl(d), m.sum(iv))

	if len(plaintext) >= 16 {
		t := xorend(plaintext, d)
		return m.sum(t), nil
	}
	t := xor(dbl(d), padBlock(plaintext, 16))
	return m.sum(t), nil
}

func xorend(a, b []byte) []byte {
	out := make([]byte, len(a))
	copy(out, a)
	off := len(a) - len(b)
	for i := range b {
		out[off+i] ^= b[i]
	}
	return out
}

// ctrMasked returns v with the top bit of bytes 8 and 12 cleared, per
// RFC 5297's guidance for portable CTR counters derived from a SIV.
func ctrMasked(v []byte) []byte {
	out := make([]byte, len(v))
	copy(out, v)
	out[8] &= 0x7f
	out[12] &= 0x7f
	return out
}

func (a aesSIV) Seal(key, iv, ad, plaintext []byte) ([]byte, error) {
	macKey, ctrKey, err := a.subkeys(key)
	if err != nil {
		return nil, err
	}
	v, err := a.s2v(macKey, ad, iv, plaintext)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(ctrKey)
	if err != nil {
		return nil, err
	}
	stream := cipher.NewCTR(block, ctrMasked(v))
	ciphertext := make([]byte, len(plaintext))
	stream.XORKeyStream(ciphertext, plaintext)

	out := make([]byte, 0, 16+len(ciphertext))
	out = append(out, v...)
	out = append(out, ciphertext...)
	return out, nil
}

func (a aesSIV) Open(key, iv, ad, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < 16 {
		return nil, errors.New("aes-siv: ciphertext too short")
	}
	v := ciphertext[:16]
	ct := ciphertext[16:]

	macKey, ctrKey, err := a.subkeys(key)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(ctrKey)
	if err != nil {
		return nil, err
	}
	stream := cipher.NewCTR(block, ctrMasked(v))
	plaintext := make([]byte, len(ct))
	stream.XORKeyStream(plaintext, ct)

	expected, err := a.s2v(macKey, ad, iv, plaintext)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(expected, v) != 1 {
		return nil, enerrors.ErrAuthFailed
	}
	return plaintext, nil
}
