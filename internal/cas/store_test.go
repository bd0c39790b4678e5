package cas

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/enprot/enprot/internal/cryptoprim"
	"github.com/enprot/enprot/internal/enerrors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(dir, cryptoprim.HashSHA3_256)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	body := []byte("region body bytes")

	digest, err := s.Put(body)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !s.Has(digest) {
		t.Fatalf("Has(%s) = false after Put", digest)
	}

	got, err := s.Get(digest)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("Get returned %q, want %q", got, body)
	}
}

func TestPutIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	body := []byte("same content twice")

	d1, err := s.Put(body)
	if err != nil {
		t.Fatalf("first Put: %v", err)
	}
	d2, err := s.Put(body)
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if d1 != d2 {
		t.Fatalf("digests differ across idempotent Puts: %s vs %s", d1, d2)
	}
}

func TestGetMissingReturnsCASMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get("0000000000000000000000000000000000000000000000000000000000000000")
	if !enerrors.Is(err, enerrors.ErrCASMissing) {
		t.Fatalf("expected ErrCASMissing, got %v", err)
	}
}

func TestGetCorruptedBlobReturnsCASCorruption(t *testing.T) {
	s := newTestStore(t)
	digest, err := s.Put([]byte("original"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := os.WriteFile(filepath.Join(t.TempDir(), "unused"), nil, 0o644); err != nil {
		t.Fatalf("unrelated write: %v", err)
	}
	if err := os.WriteFile(s.path(digest), []byte("tampered"), 0o644); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	_, err = s.Get(digest)
	if !enerrors.Is(err, enerrors.ErrCASCorruption) {
		t.Fatalf("expected ErrCASCorruption, got %v", err)
	}
}
