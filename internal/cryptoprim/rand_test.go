package cryptoprim

import "testing"

func TestRandomBytesLength(t *testing.T) {
	for _, n := range []int{0, 1, 16, 32, 64} {
		b, err := RandomBytes(n)
		if err != nil {
			t.Fatalf("RandomBytes(%d): %v", n, err)
		}
		if len(b) != n {
			t.Fatalf("RandomBytes(%d) returned %d bytes", n, len(b))
		}
	}
}

func TestRandomBytesVary(t *testing.T) {
	a, err := RandomBytes(32)
	if err != nil {
		t.Fatalf("RandomBytes: %v", err)
	}
	b, err := RandomBytes(32)
	if err != nil {
		t.Fatalf("RandomBytes: %v", err)
	}
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("two calls to RandomBytes(32) returned identical output")
	}
}
