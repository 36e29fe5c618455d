// Package delimited reads and writes comma- or tab-separated text as pasted
// from spreadsheets. Parsing never fails: malformed quoting is recovered by
// reading the rest of the input without quote handling.
package delimited

import (
	"strings"
)

const (
	Comma = ','
	Tab   = '\t'
)

const bom = "\uFEFF"

// Table is a parsed header plus data rows, each padded or truncated to the
// header width.
type Table struct {
	Header []string
	Rows   [][]string
}

// Parse splits text into rows using the delimiter detected from the first line.
func Parse(text string) [][]string {
	return ParseWith(text, DetectDelimiter(text))
}

// ParseTable parses text and separates the header row. An empty input yields
// an empty table.
func ParseTable(text string) Table {
	return NewTable(Parse(text))
}

// NewTable treats rows[0] as the header and normalizes every other row to its width.
func NewTable(rows [][]string) Table {
	if len(rows) == 0 {
		return Table{}
	}
	header := rows[0]
	data := make([][]string, 0, len(rows)-1)
	for _, r := range rows[1:] {
		data = append(data, fit(r, len(header)))
	}
	return Table{Header: header, Rows: data}
}

// FromRows builds a Table from cells read elsewhere, such as a spreadsheet,
// applying the same trimming and trailing-blank rules as Parse.
func FromRows(rows [][]string) Table {
	cleaned := make([][]string, len(rows))
	for i, r := range rows {
		cells := make([]string, len(r))
		for j, c := range r {
			cells[j] = strings.TrimSpace(c)
		}
		cleaned[i] = cells
	}
	return NewTable(dropTrailingBlank(cleaned))
}

// DataRows counts the rows that hold at least one non-empty cell.
func (t Table) DataRows() int {
	n := 0
	for _, row := range t.Rows {
		if !isBlank(row) {
			n++
		}
	}
	return n
}

// IsBlank reports whether every cell of row is empty.
func IsBlank(row []string) bool {
	return isBlank(row)
}

func fit(row []string, width int) []string {
	if len(row) == width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}

// DetectDelimiter returns Tab when the first record holds a tab outside
// quotes, otherwise Comma.
func DetectDelimiter(text string) rune {
	inQuotes := false
	for _, r := range strings.TrimPrefix(text, bom) {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case inQuotes:
		case r == '\n' || r == '\r':
			return Comma
		case r == '\t':
			return Tab
		}
	}
	return Comma
}

type parser struct {
	src   []rune
	delim rune

	rows  [][]string
	row   []string
	field strings.Builder
	// the current field began with a quote, so it exists even when empty
	quoted bool
}

// ParseWith splits text into rows with an explicit delimiter.
func ParseWith(text string, delim rune) [][]string {
	p := &parser{src: []rune(strings.TrimPrefix(text, bom)), delim: delim}
	p.run(0, true)
	return dropTrailingBlank(p.rows)
}

func (p *parser) endField() {
	p.row = append(p.row, strings.TrimSpace(p.field.String()))
	p.field.Reset()
	p.quoted = false
}

func (p *parser) endRow() {
	p.endField()
	p.rows = append(p.rows, p.row)
	p.row = nil
}

// run scans from pos. With quoting disabled every quote is literal.
func (p *parser) run(pos int, quoting bool) {
	for i := pos; i < len(p.src); i++ {
		c := p.src[i]
		switch {
		case c == '"' && quoting && strings.TrimSpace(p.field.String()) == "" && !p.quoted:
			end, ok := p.quotedField(i + 1)
			if !ok {
				// Unterminated: the opening quote and everything after it
				// are plain text.
				p.run(i, false)
				return
			}
			i = end
		case c == p.delim:
			p.endField()
		case c == '\r':
			if i+1 < len(p.src) && p.src[i+1] == '\n' {
				i++
			}
			p.endRow()
		case c == '\n':
			p.endRow()
		default:
			p.field.WriteRune(c)
		}
	}
	if len(p.row) > 0 || p.field.Len() > 0 || p.quoted {
		p.endRow()
	}
}

// quotedField consumes a quoted section starting after the opening quote and
// returns the index of the closing quote.
func (p *parser) quotedField(start int) (int, bool) {
	var b strings.Builder
	for i := start; i < len(p.src); i++ {
		c := p.src[i]
		if c != '"' {
			b.WriteRune(c)
			continue
		}
		if i+1 < len(p.src) && p.src[i+1] == '"' {
			b.WriteRune('"')
			i++
			continue
		}
		p.field.Reset()
		p.field.WriteString(b.String())
		p.quoted = true
		return i, true
	}
	return 0, false
}

func dropTrailingBlank(rows [][]string) [][]string {
	n := len(rows)
	for n > 0 && isBlank(rows[n-1]) {
		n--
	}
	return rows[:n]
}

func isBlank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}
