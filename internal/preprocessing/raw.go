package preprocessing

import (
	"strings"

	"github.com/Paul-Berdier/123PandaRoux/internal/data"
)

var quoteStripper = strings.NewReplacer(`"`, "", `'`, "")

// NormalizeLine rewrites one raw line: list separators inside brackets become
// "; " so they no longer collide with the field delimiter, then every quote
// character is removed.
func NormalizeLine(line string) string {
	if strings.Contains(line, "[") && strings.Contains(line, "]") {
		line = replaceInsideBrackets(line)
	}
	return quoteStripper.Replace(line)
}

func replaceInsideBrackets(line string) string {
	var b strings.Builder
	b.Grow(len(line))
	depth := 0
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '[':
			depth++
		case c == ']' && depth > 0:
			depth--
		case c == ',' && depth > 0 && i+1 < len(line) && line[i+1] == ' ':
			b.WriteString("; ")
			i++
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// NormalizeRawFile copies src to dst line by line through NormalizeLine.
// Line order, line count and terminators are preserved. dst is only replaced
// once the whole input has been processed.
func NormalizeRawFile(src, dst string) (int, error) {
	return data.StreamFile(src, dst, NormalizeLine)
}
