// Package protblob encodes and decodes the textual ProtBlob format
// installed across a region's pbkdf: and prot: directives:
//
//	$<pbkdf-alg>$<p1>=<v1>,<p2>=<v2>,...$<cipher-alg>$iv=<hex>,ad=<hex>,salt=<hex>$<ciphertext-hex>
//
// The KDF cost parameters (iterations, memory, etc.) live in the numeric
// params sub-string; the salt is binary like the cipher's IV and
// associated data, so it travels alongside them in the fourth field
// rather than in the numeric params map.
//
// Encode/Decode operate on the full logical string, used whenever a blob
// is stored or read back as a single unit (CAS bodies). SplitDirectives
// and JoinDirectives divide that same string at the boundary between the
// PBKDF fields and the cipher fields, so the transformer can install the
// PBKDF algorithm/params under their own pbkdf: directive, separate from
// the cipher/ciphertext framing under prot: (spec.md §8 S7 expects the
// default-KDF encrypt case to surface a literal "pbkdf:$argon2$" token in
// the output). DATA-line wrapping of a long directive value is handled
// entirely by the parser and serializer (see internal/parser), which
// fold/split the directive value transparently.
package protblob

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/enprot/enprot/internal/cryptoprim"
)

// Blob is the decoded form of a prot: directive value.
type Blob struct {
	PBKDFAlg    string
	PBKDFParams cryptoprim.Params
	Salt        []byte
	CipherAlg   string
	IV          []byte
	AD          []byte
	Ciphertext  []byte
}

// Encode renders b into its textual ProtBlob form.
func Encode(b Blob) string {
	var sb strings.Builder
	sb.WriteByte('$')
	sb.WriteString(b.PBKDFAlg)
	sb.WriteByte('$')
	sb.WriteString(encodeParams(b.PBKDFParams))
	sb.WriteByte('$')
	sb.WriteString(b.CipherAlg)
	sb.WriteByte('$')
	sb.WriteString("iv=" + hex.EncodeToString(b.IV) + ",ad=" + hex.EncodeToString(b.AD) + ",salt=" + hex.EncodeToString(b.Salt))
	sb.WriteByte('$')
	sb.WriteString(hex.EncodeToString(b.Ciphertext))
	return sb.String()
}

// Decode parses s into a Blob, validating the field count and rejecting
// unrecognized parameter keys per the encoding contract (§4.4).
func Decode(s string) (Blob, error) {
	parts := strings.Split(s, "$")
	// A well-formed blob is "$alg$params$cipher$iv=..,ad=..,salt=..$hex",
	// which splits into 6 parts with parts[0] == "".
	if len(parts) != 6 || parts[0] != "" {
		return Blob{}, fmt.Errorf("protblob: malformed encoding (expected 5 '$'-delimited fields)")
	}

	pbkdfAlg := parts[1]
	params, err := decodeParams(parts[2])
	if err != nil {
		return Blob{}, err
	}
	if err := cryptoprim.ValidateParamKeys(pbkdfAlg, params); err != nil {
		return Blob{}, fmt.Errorf("protblob: %w", err)
	}

	cipherAlg := parts[3]

	iv, ad, salt, err := decodeCipherFields(parts[4])
	if err != nil {
		return Blob{}, err
	}

	ciphertext, err := hex.DecodeString(parts[5])
	if err != nil {
		return Blob{}, fmt.Errorf("protblob: malformed ciphertext hex: %w", err)
	}

	return Blob{
		PBKDFAlg:    pbkdfAlg,
		PBKDFParams: params,
		Salt:        salt,
		CipherAlg:   cipherAlg,
		IV:          iv,
		AD:          ad,
		Ciphertext:  ciphertext,
	}, nil
}

// SplitDirectives divides a fully encoded blob string at the boundary
// between its PBKDF fields and its cipher fields, returning the value to
// install under the region's pbkdf: directive and the value to install
// under its prot: directive. The two concatenate back into the original
// string (see JoinDirectives), so nothing is lost by the split.
func SplitDirectives(full string) (pbkdfField, protField string, err error) {
	parts := strings.SplitN(full, "$", 4)
	if len(parts) != 4 || parts[0] != "" {
		return "", "", fmt.Errorf("protblob: malformed encoding")
	}
	pbkdfField = "$" + parts[1] + "$" + parts[2]
	protField = "$" + parts[3]
	return pbkdfField, protField, nil
}

// JoinDirectives reassembles the full encoded blob string from a region's
// pbkdf: and prot: directive values, reversing SplitDirectives.
func JoinDirectives(pbkdfField, protField string) string {
	return pbkdfField + protField
}

func encodeParams(params cryptoprim.Params) string {
	keys := params.Keys()
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, params[k]))
	}
	return strings.Join(parts, ",")
}

func decodeParams(s string) (cryptoprim.Params, error) {
	params := cryptoprim.Params{}
	if s == "" {
		return params, nil
	}
	for _, kv := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("protblob: malformed parameter %q", kv)
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("protblob: malformed parameter value %q: %w", kv, err)
		}
		params[key] = n
	}
	return params, nil
}

// decodeCipherFields parses the "iv=<hex>,ad=<hex>,salt=<hex>" field,
// rejecting unknown keys and requiring all three to be present (any may
// be empty hex).
func decodeCipherFields(s string) (iv, ad, salt []byte, err error) {
	seen := map[string]bool{}
	for _, kv := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, nil, nil, fmt.Errorf("protblob: malformed cipher field %q", kv)
		}
		var dst *[]byte
		switch key {
		case "iv":
			dst = &iv
		case "ad":
			dst = &ad
		case "salt":
			dst = &salt
		default:
			return nil, nil, nil, fmt.Errorf("protblob: unrecognized field %q", key)
		}
		decoded, err := hex.DecodeString(value)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("protblob: malformed %s hex: %w", key, err)
		}
		*dst = decoded
		seen[key] = true
	}
	if !seen["iv"] || !seen["ad"] || !seen["salt"] {
		return nil, nil, nil, fmt.Errorf("protblob: cipher field missing iv, ad, or salt")
	}
	return iv, ad, salt, nil
}
