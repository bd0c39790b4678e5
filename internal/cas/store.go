// Package cas implements the content-addressed store (§4.3): externalized
// region bodies are written under a digest-derived filename and read back
// by that digest, with corruption detected on every read.
package cas

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/enprot/enprot/internal/cryptoprim"
	"github.com/enprot/enprot/internal/enerrors"
	"github.com/enprot/enprot/internal/log"
)

// Store is a directory of "<hex digest>.cas" files, hashed under a single
// policy-approved algorithm for the lifetime of the Store.
type Store struct {
	dir     string
	hashAlg string
}

// New returns a Store rooted at dir, which must already exist.
func New(dir, hashAlg string) (*Store, error) {
	if _, err := cryptoprim.HashSize(hashAlg); err != nil {
		return nil, enerrors.NewCASError("open", "", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, enerrors.NewCASError("open", "", err)
	}
	if !info.IsDir() {
		return nil, enerrors.NewCASError("open", "", fmt.Errorf("%s is not a directory", dir))
	}
	return &Store{dir: dir, hashAlg: hashAlg}, nil
}

func (s *Store) path(digest string) string {
	return filepath.Join(s.dir, digest+".cas")
}

// Digest computes the hex digest Put would use for body, without writing
// anything; callers use this to decide whether a store: directive is
// already up to date.
func (s *Store) Digest(body []byte) (string, error) {
	sum, err := cryptoprim.Hash(s.hashAlg, body)
	if err != nil {
		return "", enerrors.NewCASError("put", "", err)
	}
	return hex.EncodeToString(sum), nil
}

// Put writes body under its content digest, atomically, and returns the
// hex digest. Calling Put twice with the same content is idempotent: if a
// file already exists at the destination, Put trusts the CAS invariant
// that same-digest implies same-content and leaves it untouched.
func (s *Store) Put(body []byte) (string, error) {
	digest, err := s.Digest(body)
	if err != nil {
		return "", err
	}
	if s.Has(digest) {
		log.Debug("cas put: already present", log.String("digest", digest))
		return digest, nil
	}

	dest := s.path(digest)
	tmp := dest + ".incomplete"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", enerrors.NewCASError("put", digest, err)
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", enerrors.NewCASError("put", digest, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", enerrors.NewCASError("put", digest, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return "", enerrors.NewCASError("put", digest, err)
	}
	log.Debug("cas put", log.String("digest", digest), log.Int("bytes", len(body)))
	return digest, nil
}

// Get reads the blob stored under digest and verifies it still hashes to
// digest, returning enerrors.ErrCASCorruption on mismatch.
func (s *Store) Get(digest string) ([]byte, error) {
	body, err := os.ReadFile(s.path(digest))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, enerrors.NewCASError("get", digest, enerrors.ErrCASMissing)
		}
		return nil, enerrors.NewCASError("get", digest, err)
	}
	sum, err := cryptoprim.Hash(s.hashAlg, body)
	if err != nil {
		return nil, enerrors.NewCASError("get", digest, err)
	}
	if hex.EncodeToString(sum) != digest {
		return nil, enerrors.NewCASError("get", digest, enerrors.ErrCASCorruption)
	}
	log.Debug("cas get", log.String("digest", digest), log.Int("bytes", len(body)))
	return body, nil
}

// Has reports whether a blob is stored under digest.
func (s *Store) Has(digest string) bool {
	_, err := os.Stat(s.path(digest))
	return err == nil
}
