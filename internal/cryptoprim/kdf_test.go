package cryptoprim

import (
	"bytes"
	"testing"
)

func TestDeriveKeyDeterministic(t *testing.T) {
	password := []byte("correct horse battery staple")
	salt := bytes.Repeat([]byte{0x42}, 16)

	algs := []string{PBKDF2SHA256, PBKDF2SHA512, Legacy, Argon2id, Scrypt}
	for _, alg := range algs {
		params := DefaultParams(alg)
		if alg == Argon2id || alg == Scrypt {
			// Keep the expensive algorithms cheap for the test run.
			params = Params{"m": 1 << 10, "t": 1, "p": 1}
			if alg == Scrypt {
				params = Params{"N": 1 << 10, "r": 1, "p": 1}
			}
		}
		key1, err := DeriveKey(alg, password, salt, params, KeySize)
		if err != nil {
			t.Fatalf("%s: DeriveKey: %v", alg, err)
		}
		if len(key1) != KeySize {
			t.Fatalf("%s: key length = %d, want %d", alg, len(key1), KeySize)
		}
		key2, err := DeriveKey(alg, password, salt, params, KeySize)
		if err != nil {
			t.Fatalf("%s: second DeriveKey: %v", alg, err)
		}
		if !bytes.Equal(key1, key2) {
			t.Fatalf("%s: same inputs produced different keys", alg)
		}
	}
}

func TestDeriveKeyRespectsKeySize(t *testing.T) {
	password := []byte("pw")
	salt := bytes.Repeat([]byte{1}, 16)
	key, err := DeriveKey(PBKDF2SHA256, password, salt, Params{"i": 1000}, 64)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	if len(key) != 64 {
		t.Fatalf("key length = %d, want 64", len(key))
	}
}

func TestDeriveKeyRejectsUnknownParam(t *testing.T) {
	_, err := DeriveKey(PBKDF2SHA256, []byte("pw"), []byte("salt"), Params{"bogus": 1}, KeySize)
	if err == nil {
		t.Fatal("expected error for unrecognized parameter key")
	}
}

func TestTimedDeriveMeetsFloor(t *testing.T) {
	password := []byte("pw")
	salt := bytes.Repeat([]byte{2}, 16)
	params, key, err := TimedDerive(PBKDF2SHA256, password, salt, 1, KeySize)
	if err != nil {
		t.Fatalf("TimedDerive: %v", err)
	}
	if len(key) != KeySize {
		t.Fatalf("key length = %d, want %d", len(key), KeySize)
	}
	if params["i"] < 100000 {
		t.Fatalf("iteration count %d looks too low for a real calibration", params["i"])
	}
}

func TestValidateParamKeysUnknownAlgorithm(t *testing.T) {
	if err := ValidateParamKeys("not-an-alg", Params{}); err == nil {
		t.Fatal("expected error for unknown algorithm")
	}
}
