package parser

import "bytes"

// rawLine is one line of source, split so its terminator can be put back
// verbatim: "\n", "\r\n", or nil for a final line with no terminator.
type rawLine struct {
	content    []byte
	terminator []byte
}

// full returns content+terminator, the exact original bytes of the line.
func (l rawLine) full() []byte {
	out := make([]byte, 0, len(l.content)+len(l.terminator))
	out = append(out, l.content...)
	out = append(out, l.terminator...)
	return out
}

// splitLines breaks data into lines, preserving each line's original
// terminator so the document can be reassembled byte-for-byte.
func splitLines(data []byte) []rawLine {
	var lines []rawLine
	start := 0
	for start <= len(data) {
		idx := bytes.IndexByte(data[start:], '\n')
		if idx < 0 {
			if start < len(data) {
				lines = append(lines, rawLine{content: data[start:]})
			}
			break
		}
		end := start + idx
		lineBytes := data[start:end]
		terminator := []byte{'\n'}
		content := lineBytes
		if len(lineBytes) > 0 && lineBytes[len(lineBytes)-1] == '\r' {
			content = lineBytes[:len(lineBytes)-1]
			terminator = []byte{'\r', '\n'}
		}
		lines = append(lines, rawLine{content: content, terminator: terminator})
		start = end + 1
	}
	return lines
}
