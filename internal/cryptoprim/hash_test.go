package cryptoprim

import (
	"bytes"
	"testing"
)

func TestHashSizes(t *testing.T) {
	cases := map[string]int{
		HashSHA3_256: 32,
		HashSHA3_512: 64,
	}
	for alg, want := range cases {
		n, err := HashSize(alg)
		if err != nil {
			t.Fatalf("%s: HashSize: %v", alg, err)
		}
		if n != want {
			t.Fatalf("%s: HashSize = %d, want %d", alg, n, want)
		}
		sum, err := Hash(alg, []byte("hash me"))
		if err != nil {
			t.Fatalf("%s: Hash: %v", alg, err)
		}
		if len(sum) != want {
			t.Fatalf("%s: Hash output length = %d, want %d", alg, len(sum), want)
		}
	}
}

func TestHashDeterministic(t *testing.T) {
	data := []byte("deterministic input")
	a, err := Hash(HashSHA3_256, data)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := Hash(HashSHA3_256, data)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("hashing the same input twice produced different digests")
	}
}

func TestHashUnknownAlgorithm(t *testing.T) {
	if _, err := Hash("bogus", []byte("x")); err == nil {
		t.Fatal("expected error for unknown hash algorithm")
	}
}
