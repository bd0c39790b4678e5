// Package cli wires cobra flags to the driver package and performs the
// terminal-facing concerns the core spec treats as external collaborators:
// argument parsing, password prompting, and file I/O (§1 Out of scope).
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/enprot/enprot/internal/driver"
	"github.com/enprot/enprot/internal/log"

	"github.com/spf13/cobra"
)

// Version is set by main.go.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "enprot [flags] [file...]",
	Short: "Selectively encrypt, decrypt, or externalize labeled regions of a text document",
	Long: `enprot parses documents containing nested, named regions delimited by
BEGIN/END markers and applies store, fetch, encrypt, and/or decrypt
operations to the regions named by word, leaving the rest of the
document byte-for-byte unchanged.

With no file arguments, enprot reads from stdin and writes to stdout.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

var (
	optVerbose bool
	optQuiet   bool

	optLeftSep  string
	optRightSep string

	optStore        []string
	optFetch        []string
	optEncrypt      []string
	optEncryptStore []string
	optDecrypt      []string

	optCASDir string
	optPrefix string
	optOutput string

	optKeys []string

	optPBKDFAlg    string
	optPBKDFParams string
	optPBKDFSalt   string
	optPBKDFMillis int

	optCipherAlg string
	optCipherIV  string
	optCipherAD  string

	optPolicy string
	optFIPS   bool
)

func init() {
	flags := rootCmd.Flags()

	flags.BoolVarP(&optVerbose, "verbose", "v", false, "verbose logging")
	flags.BoolVarP(&optQuiet, "quiet", "q", false, "suppress non-error output")

	flags.StringVarP(&optLeftSep, "left-separator", "l", "", "marker left separator (default \"<(\")")
	flags.StringVarP(&optRightSep, "right-separator", "r", "", "marker right separator (default \")>\")")

	flags.StringArrayVarP(&optStore, "store", "s", nil, "region name(s) to store (repeatable, commas allowed)")
	flags.StringArrayVarP(&optFetch, "fetch", "f", nil, "region name(s) to fetch")
	flags.StringArrayVarP(&optEncrypt, "encrypt", "e", nil, "region name(s) to encrypt")
	flags.StringArrayVarP(&optEncryptStore, "encrypt-store", "E", nil, "region name(s) to encrypt and store")
	flags.StringArrayVarP(&optDecrypt, "decrypt", "d", nil, "region name(s) to decrypt")

	flags.StringVarP(&optCASDir, "casdir", "c", "", "content-addressed store directory (default ./cas if it exists, else .)")
	flags.StringVarP(&optPrefix, "prefix", "p", "", "output filename prefix")
	flags.StringVarP(&optOutput, "output", "o", "", "output file (\"-\" for stdout); only valid with a single input")

	flags.StringArrayVarP(&optKeys, "key", "k", nil, "WORD=PASSWORD (repeatable, commas allowed)")

	flags.StringVar(&optPBKDFAlg, "pbkdf", "", "PBKDF algorithm (argon2, scrypt, pbkdf2-sha256, pbkdf2-sha512, legacy)")
	flags.StringVar(&optPBKDFParams, "pbkdf-params", "", "explicit PBKDF parameters, e.g. i=600000")
	flags.StringVar(&optPBKDFSalt, "pbkdf-salt", "", "explicit PBKDF salt, hex-encoded")
	flags.IntVar(&optPBKDFMillis, "pbkdf-millis", 0, "timed PBKDF calibration target in milliseconds")

	flags.StringVar(&optCipherAlg, "cipher", "", "cipher algorithm (aes-256-gcm, aes-256-siv, aes-256-gcm-siv)")
	flags.StringVar(&optCipherIV, "cipher-iv", "", "explicit cipher IV, hex-encoded")
	flags.StringVar(&optCipherAD, "cipher-ad", "", "explicit cipher associated data, hex-encoded")

	flags.StringVar(&optPolicy, "policy", "", "crypto policy: none or nist (default none)")
	flags.BoolVar(&optFIPS, "fips", false, "shorthand for --policy nist")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Execute runs the CLI application and returns the process exit code.
func Execute(version string) int {
	Version = version
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func run(cmd *cobra.Command, args []string) error {
	if optQuiet {
		log.SetLogger(log.NewSimpleLogger(os.Stderr, log.LevelError))
	} else if optVerbose {
		log.SetLogger(log.NewSimpleLogger(os.Stderr, log.LevelDebug))
	}

	keys, err := fillMissingPasswords(optKeys, [][]string{optEncrypt, optEncryptStore}, [][]string{optDecrypt})
	if err != nil {
		return err
	}

	opts := driver.Options{
		Verbose:      optVerbose,
		Quiet:        optQuiet,
		LeftSep:      optLeftSep,
		RightSep:     optRightSep,
		Store:        optStore,
		Fetch:        optFetch,
		Encrypt:      optEncrypt,
		EncryptStore: optEncryptStore,
		Decrypt:      optDecrypt,
		CASDir:       optCASDir,
		Prefix:       optPrefix,
		Output:       optOutput,
		Keys:         keys,
		PBKDFAlg:     optPBKDFAlg,
		PBKDFParams:  optPBKDFParams,
		PBKDFSalt:    optPBKDFSalt,
		PBKDFMillis:  optPBKDFMillis,
		CipherAlg:    optCipherAlg,
		CipherIV:     optCipherIV,
		CipherAD:     optCipherAD,
		Policy:       optPolicy,
		FIPS:         optFIPS,
	}

	ops, err := driver.Resolve(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return err
	}

	if len(args) == 0 {
		return runOne(ops, "", os.Stdin, os.Stdout)
	}

	if optOutput != "" && optOutput != "-" && len(args) > 1 {
		return fmt.Errorf("--output may only be used with a single input file")
	}

	for _, path := range args {
		if err := runFile(ops, path); err != nil {
			fmt.Fprintf(os.Stderr, "%v in %s, aborting.\n", err, path)
			return err
		}
	}
	return nil
}

// fillMissingPasswords prompts interactively for any region named in
// confirmGroups (the encrypt/encrypt-store sets, which confirm with a second
// line since a typo would silently lock the region) or noConfirmGroups (the
// decrypt set, prompted once) that -k did not already supply, per §6's
// stdin prompting contract. A name appearing in both is only prompted once,
// with confirmation.
func fillMissingPasswords(keys []string, confirmGroups, noConfirmGroups [][]string) ([]string, error) {
	have := map[string]bool{}
	for _, entry := range keys {
		for _, kv := range strings.Split(entry, ",") {
			if name, _, ok := strings.Cut(kv, "="); ok {
				have[name] = true
			}
		}
	}

	collect := func(groups [][]string) map[string]bool {
		set := map[string]bool{}
		for _, group := range groups {
			for _, entry := range group {
				for _, name := range strings.Split(entry, ",") {
					if name != "" && !have[name] {
						set[name] = true
					}
				}
			}
		}
		return set
	}
	needConfirm := collect(confirmGroups)
	needPlain := collect(noConfirmGroups)

	result := append([]string(nil), keys...)
	for name := range needConfirm {
		password, err := PromptPassword(name, true)
		if err != nil {
			return nil, err
		}
		result = append(result, name+"="+password)
		delete(needPlain, name)
	}
	for name := range needPlain {
		password, err := PromptPassword(name, false)
		if err != nil {
			return nil, err
		}
		result = append(result, name+"="+password)
	}
	return result, nil
}

// runFile processes one input file, writing to its prefix/output
// destination via a temp-sibling-and-rename (an output of "-" goes straight
// to stdout), so even when the output path equals the input path the input
// is never modified in place (§7).
func runFile(ops *driver.ParseOps, path string) error {
	input, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	out, err := ops.Run(input)
	if err != nil {
		return err
	}

	dest := outputPath(ops, path)
	if dest == "-" {
		_, err := os.Stdout.Write(out)
		return err
	}
	return writeAtomic(dest, out)
}

func runOne(ops *driver.ParseOps, path string, in io.Reader, out io.Writer) error {
	input, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	result, err := ops.Run(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return err
	}
	_, err = out.Write(result)
	return err
}

func outputPath(ops *driver.ParseOps, input string) string {
	if ops.Output != "" {
		return ops.Output
	}
	if ops.Prefix == "" {
		return input
	}
	dir, base := filepath.Split(input)
	return filepath.Join(dir, ops.Prefix+base)
}

// writeAtomic writes data to a temp sibling of dest and renames it into
// place, so a failure mid-write never leaves a truncated dest (§7).
func writeAtomic(dest string, data []byte) error {
	tmp := dest + ".incomplete"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}
