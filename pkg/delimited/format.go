package delimited

import "strings"

// Format serializes rows with delim, quoting cells that hold the delimiter,
// a quote or a line break. Rows are separated by "\n".
func Format(rows [][]string, delim rune) string {
	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		for j, cell := range row {
			if j > 0 {
				b.WriteRune(delim)
			}
			writeCell(&b, cell, delim)
		}
	}
	return b.String()
}

func writeCell(b *strings.Builder, cell string, delim rune) {
	if !strings.ContainsRune(cell, delim) && !strings.ContainsAny(cell, "\"\r\n") {
		b.WriteString(cell)
		return
	}
	b.WriteByte('"')
	b.WriteString(strings.ReplaceAll(cell, `"`, `""`))
	b.WriteByte('"')
}
