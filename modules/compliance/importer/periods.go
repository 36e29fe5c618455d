package importer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var periodResultHeader = regexp.MustCompile(`(?i)^(\d{4})-(\d{2})\s+Result$`)

// PeriodColumn is a "<YYYY-MM> Result" header and its optional notes sibling.
type PeriodColumn struct {
	Year         int    `json:"year"`
	Month        int    `json:"month"`
	ResultHeader string `json:"resultHeader"`
	NotesHeader  string `json:"notesHeader,omitempty"`
}

// Key is the YYYY-MM label used in error fields.
func (p PeriodColumn) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

func (p PeriodColumn) ResultField() string { return p.Key() + " Result" }
func (p PeriodColumn) NotesField() string  { return p.Key() + " Notes" }

// DetectPeriodColumns returns result columns in header order. Months outside
// 01-12 are not period columns.
func DetectPeriodColumns(headers []string) []PeriodColumn {
	var out []PeriodColumn
	for _, h := range headers {
		m := periodResultHeader.FindStringSubmatch(strings.TrimSpace(h))
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			continue
		}
		pc := PeriodColumn{Year: year, Month: month, ResultHeader: h}
		want := strings.ToLower(pc.NotesField())
		for _, candidate := range headers {
			if collapseSpace(strings.ToLower(candidate)) == want {
				pc.NotesHeader = candidate
				break
			}
		}
		out = append(out, pc)
	}
	return out
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
