package parser

import (
	"errors"
	"regexp"
	"strings"

	"github.com/enprot/enprot/internal/block"
)

// identRe matches a region name: [A-Za-z0-9_]+.
var identRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func isSpace(b byte) bool { return b == ' ' || b == '\t' }

// tryParseMarker recognizes a line as:
//
//	optional_ws LEFTSEP SP+ VERB SP+ REST SP+ RIGHTSEP
//
// returning the captured leading whitespace, the VERB token, and the raw
// REST text (not yet tokenized - callers tokenize BEGIN/END bodies and
// leave DATA bodies as a single opaque payload). ok is false whenever the
// line does not have this shape at all; such lines are literal Text, not
// parse errors.
func tryParseMarker(line, leftSep, rightSep string) (prefix, verb, rest string, ok bool) {
	i := 0
	for i < len(line) && isSpace(line[i]) {
		i++
	}
	prefix = line[:i]
	remainder := line[i:]

	if !strings.HasPrefix(remainder, leftSep) {
		return "", "", "", false
	}
	remainder = remainder[len(leftSep):]

	if !strings.HasSuffix(remainder, rightSep) {
		return "", "", "", false
	}
	core := remainder[:len(remainder)-len(rightSep)]

	trimmed := strings.TrimRight(core, " \t")
	if trimmed == core {
		// No SP+ before RIGHTSEP.
		return "", "", "", false
	}
	core = trimmed

	if len(core) == 0 || !isSpace(core[0]) {
		// No SP+ after LEFTSEP.
		return "", "", "", false
	}
	core = strings.TrimLeft(core, " \t")

	j := 0
	for j < len(core) && !isSpace(core[j]) {
		j++
	}
	if j == 0 {
		return "", "", "", false
	}
	verb = core[:j]
	afterVerb := core[j:]
	if len(afterVerb) == 0 || !isSpace(afterVerb[0]) {
		// A marker with no SP+ REST after VERB (e.g. empty BEGIN/DATA body)
		// still fails the grammar; fall through to Text.
		return "", "", "", false
	}
	rest = strings.TrimLeft(afterVerb, " \t")
	return prefix, verb, rest, true
}

// tokenize splits s on runs of unquoted whitespace, treating a
// double-quoted span as a single token (quotes retained, stripped later
// by the caller that knows it is parsing a directive value).
func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	inQuotes := false
	hasCur := false

	flush := func() {
		if hasCur {
			tokens = append(tokens, cur.String())
			cur.Reset()
			hasCur = false
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
			cur.WriteByte(c)
			hasCur = true
		case isSpace(c) && !inQuotes:
			flush()
		default:
			cur.WriteByte(c)
			hasCur = true
		}
	}
	flush()
	return tokens
}

// unquote strips a single pair of surrounding double quotes, if present.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// parseDirectives turns tokens like "key" or `key:"quoted value"` into an
// ordered Directives slice, rejecting duplicate keys.
func parseDirectives(tokens []string) (block.Directives, error) {
	seen := map[string]bool{}
	var dirs block.Directives
	for _, tok := range tokens {
		key, value, _ := strings.Cut(tok, ":")
		value = unquote(value)
		if seen[key] {
			return nil, errors.New("duplicate directive key: " + key)
		}
		seen[key] = true
		dirs = append(dirs, block.Directive{Key: key, Value: value})
	}
	return dirs, nil
}
