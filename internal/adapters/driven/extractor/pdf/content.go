package pdf

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// stringLiteral matches PDF string literals, honouring escaped parentheses.
var stringLiteral = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)

// streamText pulls the shown text out of a page content stream. Line
// breaks follow the text positioning operators so headings stay on their
// own line.
func streamText(data []byte) string {
	var sb strings.Builder

	newline := func() {
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
	}

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range stringLiteral.FindAllSubmatch(line, -1) {
				sb.WriteString(decodeString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")), bytes.HasSuffix(line, []byte(`"`)):
			newline()
			for _, m := range stringLiteral.FindAllSubmatch(line, -1) {
				sb.WriteString(decodeString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")),
			bytes.Equal(line, []byte("T*")), bytes.Equal(line, []byte("ET")):
			newline()
		}
	}

	return cleanText(sb.String())
}

// decodeString resolves escape sequences and converts WinAnsi bytes to
// UTF-8.
func decodeString(raw []byte) string {
	var out []byte
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			out = append(out, raw[i])
			continue
		}
		i++
		switch c := raw[i]; c {
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'b', 'f':
		case '\\', '(', ')':
			out = append(out, c)
		default:
			if c < '0' || c > '7' {
				out = append(out, c)
				continue
			}
			val := int(c - '0')
			for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}
			out = append(out, byte(val))
		}
	}

	if utf8.Valid(out) {
		return string(out)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(out)
	if err != nil {
		return string(bytes.ToValidUTF8(out, nil))
	}
	return string(decoded)
}

// cleanText collapses runs of blanks inside each line and drops empty lines.
func cleanText(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r", "\n"), "\n")
	kept := lines[:0]
	for _, line := range lines {
		var sb strings.Builder
		space := false
		for _, r := range line {
			switch {
			case unicode.IsSpace(r):
				space = sb.Len() > 0
			case unicode.IsPrint(r):
				if space {
					sb.WriteByte(' ')
					space = false
				}
				sb.WriteRune(r)
			}
		}
		if sb.Len() > 0 {
			kept = append(kept, sb.String())
		}
	}
	return strings.Join(kept, "\n")
}
