// Package transform implements the depth-first tree rewrite described in
// §4.2: applying store/fetch/encrypt/decrypt to the region names named by
// the driver's Ops, using the configured CryptoPolicy and primitives.
package transform

import (
	"fmt"

	"github.com/enprot/enprot/internal/block"
	"github.com/enprot/enprot/internal/cas"
	"github.com/enprot/enprot/internal/cryptoprim"
	"github.com/enprot/enprot/internal/enerrors"
	"github.com/enprot/enprot/internal/log"
	"github.com/enprot/enprot/internal/parser"
	"github.com/enprot/enprot/internal/policy"
	"github.com/enprot/enprot/internal/protblob"
)

// Ops is the set of region names targeted by each of the four operations,
// as parsed from the driver's -e/-E/-d/-s/-f flags.
type Ops struct {
	Encrypt map[string]bool
	Decrypt map[string]bool
	Store   map[string]bool
	Fetch   map[string]bool
}

// Config bundles the policy, primitives, and per-invocation overrides the
// transformer needs. A zero value for an override field means "derive it
// from the policy or generate it", matching the CLI's optional flags.
type Config struct {
	Ops       Ops
	Passwords map[string]string
	Policy    policy.CryptoPolicy
	CAS       *cas.Store

	LeftSep, RightSep string

	PBKDFAlg    string            // "" = policy default
	PBKDFParams cryptoprim.Params // nil = timed calibration
	PBKDFSalt   []byte            // nil = generate
	PBKDFMillis int               // 0 = policy default

	CipherAlg string // "" = policy default
	CipherIV  []byte // nil = generate
	CipherAD  []byte
}

// Apply rewrites blocks in place (and returns it) by applying Config's
// operations to every region in the tree, depth-first.
func Apply(blocks []block.Block, cfg *Config) ([]block.Block, error) {
	if err := transformBlocks(blocks, cfg); err != nil {
		return nil, err
	}
	return blocks, nil
}

func transformBlocks(blocks []block.Block, cfg *Config) error {
	for i := range blocks {
		if blocks[i].IsText {
			continue
		}
		if err := transformRegion(blocks[i].Region, cfg); err != nil {
			return err
		}
	}
	return nil
}

// transformRegion applies fetch -> decrypt -> encrypt -> store, recursing
// into newly-available children after fetch/decrypt and before
// encrypt/store, so inner directives act on plaintext (§4.2).
func transformRegion(r *block.Region, cfg *Config) error {
	name := r.Name

	if cfg.Ops.Fetch[name] && r.State.HasStore() {
		if err := doFetch(r, cfg); err != nil {
			return err
		}
	}

	if cfg.Ops.Decrypt[name] && r.State.HasProt() {
		if r.State == block.EncryptedAndStored {
			if err := doFetch(r, cfg); err != nil {
				return err
			}
		}
		if err := doDecrypt(r, cfg); err != nil {
			return err
		}
	}

	if r.State == block.Plain {
		if err := transformBlocks(r.Children, cfg); err != nil {
			return err
		}
	}

	if cfg.Ops.Encrypt[name] && (r.State == block.Plain || r.State == block.Stored) {
		if err := doEncrypt(r, cfg); err != nil {
			return err
		}
	}

	if cfg.Ops.Store[name] && (r.State == block.Plain || r.State == block.Encrypted) {
		if err := doStore(r, cfg); err != nil {
			return err
		}
	}

	return nil
}

// doFetch reads the region's stored blob from the CAS and restores either
// its children (Stored -> Plain) or its pbkdf:/prot: directives
// (EncryptedAndStored -> Encrypted). (§4.2 fetch, §4.3 get)
func doFetch(r *block.Region, cfg *Config) error {
	digest, ok := r.Directives.Get("store")
	if !ok {
		return enerrors.NewCASError("get", "", fmt.Errorf("region %q has no store: directive", r.Name))
	}
	body, err := cfg.CAS.Get(digest)
	if err != nil {
		return err
	}

	switch r.State {
	case block.Stored:
		children, err := parser.Parse(body, cfg.LeftSep, cfg.RightSep)
		if err != nil {
			return err
		}
		r.Children = children
		r.Directives = r.Directives.Without("store")
		r.State = block.Plain
	case block.EncryptedAndStored:
		pbkdfField, protField, err := protblob.SplitDirectives(string(body))
		if err != nil {
			return enerrors.NewCASError("get", digest, err)
		}
		r.Directives = r.Directives.Set("pbkdf", pbkdfField)
		r.Directives = r.Directives.Set("prot", protField)
		r.Directives = r.Directives.Without("store")
		r.State = block.Encrypted
	default:
		return nil
	}
	r.Touched = true
	log.Debug("fetched region", log.String("name", r.Name), log.String("digest", digest))
	return nil
}

// doDecrypt authenticates and decrypts the region's pbkdf:/prot: ProtBlob
// and reparses the plaintext as children (§4.2 decrypt). On authentication
// failure, r is left untouched.
func doDecrypt(r *block.Region, cfg *Config) error {
	password, ok := cfg.Passwords[r.Name]
	if !ok {
		return enerrors.Wrap(enerrors.ErrMissingPassword, fmt.Sprintf("region %q", r.Name))
	}

	pbkdfField, ok := r.Directives.Get("pbkdf")
	if !ok {
		return enerrors.NewCryptoError("decrypt", fmt.Errorf("region %q has no pbkdf: directive", r.Name))
	}
	protField, ok := r.Directives.Get("prot")
	if !ok {
		return enerrors.NewCryptoError("decrypt", fmt.Errorf("region %q has no prot: directive", r.Name))
	}
	blob, err := protblob.Decode(protblob.JoinDirectives(pbkdfField, protField))
	if err != nil {
		return enerrors.NewCryptoError("decrypt", err)
	}

	cipher, err := cryptoprim.GetCipher(blob.CipherAlg)
	if err != nil {
		return enerrors.NewCryptoError("decrypt", err)
	}

	if err := cfg.Policy.CheckCipher(blob.CipherAlg, blob.IV, blob.AD); err != nil {
		return err
	}
	// legacy blobs are decryptable under every policy; CheckPBKDF still
	// gates legacy on the encrypt path.
	if blob.PBKDFAlg != cryptoprim.Legacy {
		if err := cfg.Policy.CheckPBKDF(blob.PBKDFAlg, cipher.KeySize(), blob.PBKDFParams); err != nil {
			return err
		}
	}
	if err := cfg.Policy.CheckSalt(blob.Salt); err != nil {
		return err
	}

	key, err := cryptoprim.DeriveKey(blob.PBKDFAlg, []byte(password), blob.Salt, blob.PBKDFParams, cipher.KeySize())
	if err != nil {
		return enerrors.NewCryptoError("kdf", err)
	}

	plaintext, err := cipher.Open(key, blob.IV, blob.AD, blob.Ciphertext)
	if err != nil {
		return err // already wraps enerrors.ErrAuthFailed
	}

	children, err := parser.Parse(plaintext, cfg.LeftSep, cfg.RightSep)
	if err != nil {
		return err
	}

	r.Children = children
	r.Directives = r.Directives.Without("prot")
	r.Directives = r.Directives.Without("pbkdf")
	r.State = block.Plain
	r.Touched = true
	log.Debug("decrypted region", log.String("name", r.Name), log.String("pbkdf", blob.PBKDFAlg), log.String("cipher", blob.CipherAlg))
	return nil
}

func defaultIVLength(cipherAlg string) int {
	if cipherAlg == cryptoprim.AES256GCM {
		return 12
	}
	return 16
}

// doEncrypt derives a key, authenticated-encrypts the region's cleartext
// body, and installs the result as a prot: ProtBlob (§4.2 encrypt).
func doEncrypt(r *block.Region, cfg *Config) error {
	password, ok := cfg.Passwords[r.Name]
	if !ok {
		return enerrors.Wrap(enerrors.ErrMissingPassword, fmt.Sprintf("region %q", r.Name))
	}

	var body []byte
	switch r.State {
	case block.Plain:
		body = parser.Serialize(r.Children, cfg.LeftSep, cfg.RightSep)
	case block.Stored:
		digest, _ := r.Directives.Get("store")
		b, err := cfg.CAS.Get(digest)
		if err != nil {
			return err
		}
		body = b
	default:
		return nil
	}

	pbkdfAlg := cfg.PBKDFAlg
	if pbkdfAlg == "" {
		pbkdfAlg = cfg.Policy.DefaultPBKDFAlg()
	}
	cipherAlg := cfg.CipherAlg
	if cipherAlg == "" {
		cipherAlg = cfg.Policy.DefaultCipherAlg()
	}

	cipher, err := cryptoprim.GetCipher(cipherAlg)
	if err != nil {
		return enerrors.NewCryptoError("encrypt", err)
	}

	salt := cfg.PBKDFSalt
	if salt == nil {
		salt, err = cryptoprim.RandomBytes(cfg.Policy.DefaultPBKDFSaltLength())
		if err != nil {
			return enerrors.NewCryptoError("rand", err)
		}
	}
	if err := cfg.Policy.CheckSalt(salt); err != nil {
		return err
	}

	iv := cfg.CipherIV
	if iv == nil {
		iv, err = cryptoprim.RandomBytes(defaultIVLength(cipherAlg))
		if err != nil {
			return enerrors.NewCryptoError("rand", err)
		}
	}
	ad := cfg.CipherAD
	if err := cfg.Policy.CheckCipher(cipherAlg, iv, ad); err != nil {
		return err
	}

	var params cryptoprim.Params
	var key []byte
	if cfg.PBKDFParams != nil {
		params = cfg.PBKDFParams
		if err := cfg.Policy.CheckPBKDF(pbkdfAlg, cipher.KeySize(), params); err != nil {
			return err
		}
		key, err = cryptoprim.DeriveKey(pbkdfAlg, []byte(password), salt, params, cipher.KeySize())
		if err != nil {
			return enerrors.NewCryptoError("kdf", err)
		}
	} else {
		millis := cfg.PBKDFMillis
		if millis == 0 {
			millis = cfg.Policy.DefaultPBKDFMillis()
		}
		params, key, err = cryptoprim.TimedDerive(pbkdfAlg, []byte(password), salt, millis, cipher.KeySize())
		if err != nil {
			return enerrors.NewCryptoError("kdf", err)
		}
		if err := cfg.Policy.CheckPBKDF(pbkdfAlg, cipher.KeySize(), params); err != nil {
			return err
		}
	}

	ciphertext, err := cipher.Seal(key, iv, ad, body)
	if err != nil {
		return enerrors.NewCryptoError("encrypt", err)
	}

	blob := protblob.Blob{
		PBKDFAlg:    pbkdfAlg,
		PBKDFParams: params,
		Salt:        salt,
		CipherAlg:   cipherAlg,
		IV:          iv,
		AD:          ad,
		Ciphertext:  ciphertext,
	}

	pbkdfField, protField, err := protblob.SplitDirectives(protblob.Encode(blob))
	if err != nil {
		return enerrors.NewCryptoError("encrypt", err)
	}

	r.Directives = r.Directives.Without("store")
	r.Directives = r.Directives.Set("pbkdf", pbkdfField)
	r.Directives = r.Directives.Set("prot", protField)
	r.Children = nil
	r.State = block.Encrypted
	r.Touched = true
	log.Debug("encrypted region", log.String("name", r.Name), log.String("pbkdf", pbkdfAlg), log.String("cipher", cipherAlg))
	return nil
}

// doStore writes the region's serialized body to the CAS and installs a
// store: digest directive (§4.2 store, §4.3 put).
func doStore(r *block.Region, cfg *Config) error {
	var body []byte
	switch r.State {
	case block.Plain:
		body = parser.Serialize(r.Children, cfg.LeftSep, cfg.RightSep)
	case block.Encrypted:
		pbkdfField, _ := r.Directives.Get("pbkdf")
		protField, _ := r.Directives.Get("prot")
		body = []byte(protblob.JoinDirectives(pbkdfField, protField))
	default:
		return nil
	}

	digest, err := cfg.CAS.Put(body)
	if err != nil {
		return err
	}

	r.Directives = r.Directives.Set("store", digest)
	r.Children = nil
	if r.State == block.Plain {
		r.State = block.Stored
	} else {
		r.State = block.EncryptedAndStored
	}
	r.Touched = true
	log.Debug("stored region", log.String("name", r.Name), log.String("digest", digest))
	return nil
}
