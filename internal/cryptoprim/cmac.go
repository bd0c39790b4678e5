package cryptoprim

import "crypto/cipher"

// cmac computes AES-CMAC (RFC 4493) of msg under the given block cipher.
// There is no CMAC implementation in the example pack or in golang.org/x/crypto;
// this is the one primitive built directly on crypto/aes's block interface,
// following the RFC's subkey-generation and padding steps exactly.
func cmac(block cipher.Block) *cmacHash {
	bs := block.BlockSize()
	zero := make([]byte, bs)
	l := make([]byte, bs)
	block.Encrypt(l, zero)

	k1 := dbl(l)
	k2 := dbl(k1)

	return &cmacHash{block: block, k1: k1, k2: k2, bs: bs}
}

type cmacHash struct {
	block  cipher.Block
	k1, k2 []byte
	bs     int
}

// sum returns the 16-byte AES-CMAC of msg.
func (c *cmacHash) sum(msg []byte) []byte {
	bs := c.bs
	var blocks [][]byte
	if len(msg) == 0 {
		blocks = [][]byte{{}} // empty last block, so padBlock pads a full 10...0 block
	} else {
		for i := 0; i < len(msg); i += bs {
			end := i + bs
			if end > len(msg) {
				end = len(msg)
			}
			blocks = append(blocks, msg[i:end])
		}
	}

	last := blocks[len(blocks)-1]
	var lastBlock []byte
	if len(last) == bs && len(msg) != 0 {
		lastBlock = xor(last, c.k1)
	} else {
		lastBlock = xor(padBlock(last, bs), c.k2)
	}

	x := make([]byte, bs)
	for i := 0; i < len(blocks)-1; i++ {
		x = xor(x, blocks[i])
		out := make([]byte, bs)
		c.block.Encrypt(out, x)
		x = out
	}
	x = xor(x, lastBlock)
	out := make([]byte, bs)
	c.block.Encrypt(out, x)
	return out
}

// dbl doubles b in GF(2^128), per RFC 4493's subkey generation.
func dbl(b []byte) []byte {
	bs := len(b)
	out := make([]byte, bs)
	carry := byte(0)
	for i := bs - 1; i >= 0; i-- {
		v := b[i]
		out[i] = (v << 1) | carry
		carry = v >> 7
	}
	if b[0]&0x80 != 0 {
		out[bs-1] ^= 0x87
	}
	return out
}

func padBlock(b []byte, bs int) []byte {
	out := make([]byte, bs)
	copy(out, b)
	out[len(b)] = 0x80
	return out
}

func xor(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}
