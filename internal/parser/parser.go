// Package parser converts a document's byte stream into a block.Block
// tree, and (via Serialize) converts it back, reproducing untouched
// bytes exactly.
package parser

import (
	"bytes"
	"fmt"

	"github.com/enprot/enprot/internal/block"
	"github.com/enprot/enprot/internal/enerrors"
)

// frame tracks one open Region (or, for the outermost frame, the
// document root) while Parse walks the document line by line.
type frame struct {
	region *block.Region // nil for the root frame

	children    []block.Block
	pendingText bytes.Buffer
	innerRaw    bytes.Buffer
}

func (f *frame) flushText() {
	if f.pendingText.Len() == 0 {
		return
	}
	text := make([]byte, f.pendingText.Len())
	copy(text, f.pendingText.Bytes())
	f.children = append(f.children, block.NewText(text))
	f.pendingText.Reset()
}

// Parse walks data line by line, recognizing BEGIN/END/DATA markers
// delimited by leftSep/rightSep (see package parser's grammar in
// marker.go), and returns the resulting top-level Block sequence.
func Parse(data []byte, leftSep, rightSep string) ([]block.Block, error) {
	root := &frame{}
	stack := []*frame{}

	current := func() *frame {
		if len(stack) == 0 {
			return root
		}
		return stack[len(stack)-1]
	}

	appendText := func(raw []byte) {
		current().pendingText.Write(raw)
	}

	lines := splitLines(data)
	for i, line := range lines {
		lineNo := i + 1
		raw := line.full()

		for _, f := range stack {
			f.innerRaw.Write(raw)
		}

		prefix, verb, rest, ok := tryParseMarker(string(line.content), leftSep, rightSep)
		if !ok {
			appendText(raw)
			continue
		}

		switch verb {
		case "BEGIN":
			tokens := tokenize(rest)
			if len(tokens) == 0 || tokens[0] == "" {
				return nil, enerrors.NewParseError(lineNo, "BEGIN marker missing region name", enerrors.ErrEmptyName)
			}
			name := tokens[0]
			if !identRe.MatchString(name) {
				return nil, enerrors.NewParseError(lineNo, "invalid region name: "+name, enerrors.ErrEmptyName)
			}
			dirs, err := parseDirectives(tokens[1:])
			if err != nil {
				return nil, enerrors.NewParseError(lineNo, err.Error(), enerrors.ErrDuplicateDirective)
			}

			current().flushText()

			region := &block.Region{
				Name:         name,
				OpenerPrefix: prefix,
				State:        block.StateFromDirectives(dirs),
				Directives:   dirs,
				OpenerRaw:    raw,
			}
			stack = append(stack, &frame{region: region})

		case "END":
			if len(stack) == 0 {
				return nil, enerrors.NewParseError(lineNo, "END with no open region", enerrors.ErrNameMismatch)
			}
			tokens := tokenize(rest)
			if len(tokens) != 1 {
				return nil, enerrors.NewParseError(lineNo, "END marker must name exactly one region", enerrors.ErrMalformedMarker)
			}
			name := tokens[0]
			top := stack[len(stack)-1]
			if top.region.Name != name {
				return nil, enerrors.NewParseError(lineNo,
					fmt.Sprintf("END %s does not match open region %s", name, top.region.Name),
					enerrors.ErrNameMismatch)
			}

			top.flushText()
			top.region.CloserPrefix = prefix
			top.region.CloserRaw = raw
			if top.region.State == block.Plain {
				top.region.Children = top.children
			} else {
				// The closing END line was captured above; it is not inner bytes.
				top.region.InnerRaw = top.innerRaw.Bytes()[:top.innerRaw.Len()-len(raw)]
			}

			stack = stack[:len(stack)-1]
			parent := current()
			parent.children = append(parent.children, block.NewRegion(top.region))

		case "DATA":
			if len(stack) > 0 && stack[len(stack)-1].region.State.HasProt() {
				top := stack[len(stack)-1]
				val, _ := top.region.Directives.Get("prot")
				top.region.Directives = top.region.Directives.Set("prot", val+rest)
				continue
			}
			appendText(raw)

		default:
			return nil, enerrors.NewParseError(lineNo, "unknown marker verb: "+verb, enerrors.ErrUnknownVerb)
		}
	}

	if len(stack) > 0 {
		return nil, enerrors.NewParseError(len(lines), "unclosed region: "+stack[len(stack)-1].region.Name, enerrors.ErrUnclosedRegion)
	}

	root.flushText()
	return root.children, nil
}
