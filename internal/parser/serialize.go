package parser

import (
	"bytes"
	"strings"

	"github.com/enprot/enprot/internal/block"
)

// DataLineBudget is the maximum length of the prot: directive value placed
// inline on a BEGIN marker line before the remainder is wrapped across
// DATA continuation lines. Other directive values are not wrapped.
const DataLineBudget = 76

// Serialize renders a Block sequence back to bytes. Regions whose
// Touched flag is false reuse their captured BEGIN/END lines verbatim,
// with a plain region's children serialized in between and a non-plain
// region's captured inner bytes replayed; touched regions are re-emitted from
// their Name/Directives/Children, reproducing the marker grammar and
// wrapping long prot: values across DATA lines (see DataLineBudget).
func Serialize(blocks []block.Block, leftSep, rightSep string) []byte {
	var buf bytes.Buffer
	writeBlocks(&buf, blocks, leftSep, rightSep)
	return buf.Bytes()
}

func writeBlocks(buf *bytes.Buffer, blocks []block.Block, leftSep, rightSep string) {
	for _, b := range blocks {
		if b.IsText {
			buf.Write(b.Text)
			continue
		}
		writeRegion(buf, b.Region, leftSep, rightSep)
	}
}

func writeRegion(buf *bytes.Buffer, r *block.Region, leftSep, rightSep string) {
	if !r.Touched {
		buf.Write(r.OpenerRaw)
		if r.State == block.Plain {
			writeBlocks(buf, r.Children, leftSep, rightSep)
		} else {
			buf.Write(r.InnerRaw)
		}
		buf.Write(r.CloserRaw)
		return
	}

	dirs := r.Directives
	var inlineProt, overflow string
	if prot, ok := dirs.Get("prot"); ok {
		inlineProt, overflow = splitBudget(prot, DataLineBudget)
		dirs = dirs.Set("prot", inlineProt)
	}

	buf.WriteString(r.OpenerPrefix)
	buf.WriteString(leftSep)
	buf.WriteString(" BEGIN ")
	buf.WriteString(r.Name)
	for _, d := range dirs {
		buf.WriteByte(' ')
		buf.WriteString(renderDirective(d))
	}
	buf.WriteByte(' ')
	buf.WriteString(rightSep)
	buf.WriteByte('\n')

	for overflow != "" {
		var chunk string
		chunk, overflow = splitBudget(overflow, DataLineBudget)
		buf.WriteString(r.OpenerPrefix)
		buf.WriteString(leftSep)
		buf.WriteString(" DATA ")
		buf.WriteString(chunk)
		buf.WriteByte(' ')
		buf.WriteString(rightSep)
		buf.WriteByte('\n')
	}

	if r.State == block.Plain {
		writeBlocks(buf, r.Children, leftSep, rightSep)
	}

	buf.WriteString(r.CloserPrefix)
	buf.WriteString(leftSep)
	buf.WriteString(" END ")
	buf.WriteString(r.Name)
	buf.WriteByte(' ')
	buf.WriteString(rightSep)
	buf.WriteByte('\n')
}

// splitBudget splits s at most n bytes from the front, returning the
// head and the remainder.
func splitBudget(s string, n int) (head, rest string) {
	if len(s) <= n {
		return s, ""
	}
	return s[:n], s[n:]
}

// renderDirective renders one key[:value] token, quoting the value if
// it contains whitespace.
func renderDirective(d block.Directive) string {
	if d.Value == "" {
		return d.Key
	}
	if strings.ContainsAny(d.Value, " \t") {
		return d.Key + `:"` + d.Value + `"`
	}
	return d.Key + ":" + d.Value
}
