package driver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/enprot/enprot/internal/enerrors"
)

func TestResolveDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	defer os.Chdir(wd)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	p, err := Resolve(Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.LeftSep != "<(" || p.RightSep != ")>" {
		t.Fatalf("unexpected default separators: %q %q", p.LeftSep, p.RightSep)
	}
	if p.CASDir != "." {
		t.Fatalf("expected casdir to default to '.', got %q", p.CASDir)
	}
	if p.TransformConfig.Policy.Name() != "none" {
		t.Fatalf("expected default policy 'none', got %q", p.TransformConfig.Policy.Name())
	}
}

func TestResolveCASDirAutoDetectsSubdir(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "cas"), 0o755); err != nil {
		t.Fatal(err)
	}
	wd, _ := os.Getwd()
	defer os.Chdir(wd)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	p, err := Resolve(Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.CASDir != "cas" {
		t.Fatalf("expected auto-detected 'cas' dir, got %q", p.CASDir)
	}
}

func TestResolveFIPSConflictsWithPolicyNone(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	defer os.Chdir(wd)
	os.Chdir(dir)

	_, err := Resolve(Options{FIPS: true, Policy: "none"})
	if err == nil {
		t.Fatal("expected conflict error")
	}
	if got := err.Error(); got == "" {
		t.Fatal("expected non-empty error message")
	}
}

func TestResolveFIPSSelectsNist(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	defer os.Chdir(wd)
	os.Chdir(dir)

	p, err := Resolve(Options{FIPS: true})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.TransformConfig.Policy.Name() != "nist" {
		t.Fatalf("expected nist policy under --fips, got %q", p.TransformConfig.Policy.Name())
	}
}

func TestResolveParsesKeysAndNameSets(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	defer os.Chdir(wd)
	os.Chdir(dir)

	p, err := Resolve(Options{
		Keys:         []string{"Agent_007=password,GEHEIM=other"},
		Encrypt:      []string{"Agent_007"},
		EncryptStore: []string{"GEHEIM"},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	cfg := p.TransformConfig
	if cfg.Passwords["Agent_007"] != "password" || cfg.Passwords["GEHEIM"] != "other" {
		t.Fatalf("passwords not parsed correctly: %+v", cfg.Passwords)
	}
	if !cfg.Ops.Encrypt["Agent_007"] || !cfg.Ops.Encrypt["GEHEIM"] || !cfg.Ops.Store["GEHEIM"] {
		t.Fatalf("encrypt-store did not imply both encrypt and store: %+v", cfg.Ops)
	}
}

func TestResolveRejectsMalformedKeyFlag(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	defer os.Chdir(wd)
	os.Chdir(dir)

	_, err := Resolve(Options{Keys: []string{"no-equals-sign"}})
	if !enerrors.Is(err, enerrors.ErrMalformedKeyFlag) {
		t.Fatalf("expected ErrMalformedKeyFlag, got %v", err)
	}
}

func TestResolveRejectsMalformedHex(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	defer os.Chdir(wd)
	os.Chdir(dir)

	_, err := Resolve(Options{CipherIV: "zz"})
	if !enerrors.Is(err, enerrors.ErrMalformedHex) {
		t.Fatalf("expected ErrMalformedHex, got %v", err)
	}
}

func TestResolveRejectsSameSeparators(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	defer os.Chdir(wd)
	os.Chdir(dir)

	_, err := Resolve(Options{LeftSep: "||", RightSep: "||"})
	if err == nil {
		t.Fatal("expected error for identical separators")
	}
}

func TestRunEncryptRoundTrip(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	defer os.Chdir(wd)
	os.Chdir(dir)

	doc := []byte("intro\n<( BEGIN Agent_007 )>\nclassified\n<( END Agent_007 )>\nend\n")

	p, err := Resolve(Options{
		Encrypt:     []string{"Agent_007"},
		Keys:        []string{"Agent_007=password"},
		PBKDFAlg:    "legacy",
		PBKDFMillis: 1,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	out, err := p.Run(doc)
	if err != nil {
		t.Fatalf("Run(encrypt): %v", err)
	}

	p2, err := Resolve(Options{
		Decrypt: []string{"Agent_007"},
		Keys:    []string{"Agent_007=password"},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	roundTripped, err := p2.Run(out)
	if err != nil {
		t.Fatalf("Run(decrypt): %v", err)
	}
	if string(roundTripped) != string(doc) {
		t.Fatalf("round trip mismatch:\n got: %q\nwant: %q", roundTripped, doc)
	}
}
