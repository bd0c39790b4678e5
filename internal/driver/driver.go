// Package driver resolves raw CLI option strings into a ParseOps
// configuration (§3) and threads one document through the
// parse -> transform -> serialize pipeline (§2 data flow).
package driver

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/enprot/enprot/internal/block"
	"github.com/enprot/enprot/internal/cas"
	"github.com/enprot/enprot/internal/cryptoprim"
	"github.com/enprot/enprot/internal/enerrors"
	"github.com/enprot/enprot/internal/log"
	"github.com/enprot/enprot/internal/parser"
	"github.com/enprot/enprot/internal/policy"
	"github.com/enprot/enprot/internal/transform"
)

// Options carries the raw, unvalidated flag values as handed over by the
// CLI layer. Every field mirrors one or more flags from §6; parsing and
// cross-flag validation happen in Resolve, keeping the CLI package a thin
// collector of cobra flag values.
type Options struct {
	Verbose bool
	Quiet   bool

	LeftSep  string
	RightSep string

	Store        []string
	Fetch        []string
	Encrypt      []string
	EncryptStore []string
	Decrypt      []string

	CASDir string
	Prefix string
	Output string

	Keys []string // "WORD=PASSWORD", repeatable/comma-joined

	PBKDFAlg    string
	PBKDFParams string // "k=v,k=v"
	PBKDFSalt   string // hex
	PBKDFMillis int

	CipherAlg string
	CipherIV  string // hex
	CipherAD  string // hex

	Policy string
	FIPS   bool
}

// ParseOps is the resolved, immutable configuration a document pass runs
// under. It is built once per invocation and never mutated afterward
// (§3 Lifecycle).
type ParseOps struct {
	LeftSep, RightSep string
	CASDir            string
	Prefix            string
	Output            string
	Verbose           bool
	Quiet             bool

	TransformConfig *transform.Config
}

// Resolve validates opts and produces a ParseOps, or a Config error
// (§7) describing the first problem found.
func Resolve(opts Options) (*ParseOps, error) {
	leftSep := opts.LeftSep
	if leftSep == "" {
		leftSep = "<("
	}
	rightSep := opts.RightSep
	if rightSep == "" {
		rightSep = ")>"
	}
	if leftSep == rightSep {
		return nil, enerrors.NewConfigError("separators", "left and right separators must differ")
	}

	pol, err := resolvePolicy(opts)
	if err != nil {
		return nil, err
	}

	casdir := opts.CASDir
	if casdir == "" {
		if info, statErr := os.Stat("cas"); statErr == nil && info.IsDir() {
			casdir = "cas"
		} else {
			casdir = "."
		}
	}
	store, err := cas.New(casdir, pol.DefaultHashAlg())
	if err != nil {
		return nil, err
	}

	passwords, err := parseKeys(opts.Keys)
	if err != nil {
		return nil, err
	}

	pbkdfParams, err := parsePBKDFParams(opts.PBKDFParams)
	if err != nil {
		return nil, err
	}
	pbkdfSalt, err := parseHex("pbkdf-salt", opts.PBKDFSalt)
	if err != nil {
		return nil, err
	}
	cipherIV, err := parseHex("cipher-iv", opts.CipherIV)
	if err != nil {
		return nil, err
	}
	cipherAD, err := parseHex("cipher-ad", opts.CipherAD)
	if err != nil {
		return nil, err
	}

	ops := transform.Ops{
		Encrypt: nameSet(opts.Encrypt, opts.EncryptStore),
		Decrypt: nameSet(opts.Decrypt),
		Store:   nameSet(opts.Store, opts.EncryptStore),
		Fetch:   nameSet(opts.Fetch),
	}

	cfg := &transform.Config{
		Ops:         ops,
		Passwords:   passwords,
		Policy:      pol,
		CAS:         store,
		LeftSep:     leftSep,
		RightSep:    rightSep,
		PBKDFAlg:    opts.PBKDFAlg,
		PBKDFParams: pbkdfParams,
		PBKDFSalt:   pbkdfSalt,
		PBKDFMillis: opts.PBKDFMillis,
		CipherAlg:   opts.CipherAlg,
		CipherIV:    cipherIV,
		CipherAD:    cipherAD,
	}

	return &ParseOps{
		LeftSep:         leftSep,
		RightSep:        rightSep,
		CASDir:          casdir,
		Prefix:          opts.Prefix,
		Output:          opts.Output,
		Verbose:         opts.Verbose,
		Quiet:           opts.Quiet,
		TransformConfig: cfg,
	}, nil
}

// resolvePolicy applies the --fips meta-setting (§4.5): it selects nist
// and rejects an explicit conflicting --policy choice.
func resolvePolicy(opts Options) (policy.CryptoPolicy, error) {
	name := opts.Policy
	if opts.FIPS {
		if name != "" && name != "nist" {
			return nil, enerrors.NewConfigError("policy",
				fmt.Sprintf("Policy setting of '%s' conflicts with --fips", name))
		}
		name = "nist"
	}
	if name == "" {
		name = "none"
	}
	return policy.ByName(name)
}

// parseKeys splits "-k WORD=PASSWORD" entries (comma-joined or repeated)
// into a name -> password mapping.
func parseKeys(raw []string) (map[string]string, error) {
	passwords := map[string]string{}
	for _, entry := range raw {
		for _, kv := range strings.Split(entry, ",") {
			if kv == "" {
				continue
			}
			name, password, ok := strings.Cut(kv, "=")
			if !ok || name == "" {
				return nil, enerrors.Wrap(enerrors.ErrMalformedKeyFlag, fmt.Sprintf("%q", kv))
			}
			passwords[name] = password
		}
	}
	return passwords, nil
}

// parsePBKDFParams parses "--pbkdf-params i=1000,m=65536" into a Params map.
func parsePBKDFParams(raw string) (cryptoprim.Params, error) {
	if raw == "" {
		return nil, nil
	}
	params := cryptoprim.Params{}
	for _, kv := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, enerrors.NewConfigError("pbkdf-params", fmt.Sprintf("malformed parameter %q", kv))
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, enerrors.NewConfigError("pbkdf-params", fmt.Sprintf("malformed parameter value %q", kv))
		}
		params[key] = n
	}
	return params, nil
}

func parseHex(field, raw string) ([]byte, error) {
	if raw == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return nil, enerrors.Wrap(enerrors.ErrMalformedHex, field)
	}
	return b, nil
}

// nameSet merges one or more "-s WORD" style flag slices (each entry
// possibly comma-joined) into a set of region names.
func nameSet(groups ...[]string) map[string]bool {
	set := map[string]bool{}
	for _, g := range groups {
		for _, entry := range g {
			for _, name := range strings.Split(entry, ",") {
				if name != "" {
					set[name] = true
				}
			}
		}
	}
	return set
}

// Run executes one document pass: parse input, apply the configured
// operations, and return the re-serialized bytes (§2 data flow).
func (p *ParseOps) Run(input []byte) ([]byte, error) {
	blocks, err := parser.Parse(input, p.LeftSep, p.RightSep)
	if err != nil {
		return nil, err
	}
	if p.Verbose {
		log.Info("parsed document", log.Int("top_level_blocks", len(blocks)), log.Int("regions", countRegions(blocks)))
	}

	blocks, err = transform.Apply(blocks, p.TransformConfig)
	if err != nil {
		return nil, err
	}

	return parser.Serialize(blocks, p.LeftSep, p.RightSep), nil
}

// countRegions is used by verbose logging to report how many regions a
// document contains without walking the tree twice in the CLI layer.
func countRegions(blocks []block.Block) int {
	n := 0
	for _, b := range blocks {
		if !b.IsText {
			n++
			n += countRegions(b.Region.Children)
		}
	}
	return n
}
