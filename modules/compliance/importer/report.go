package importer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/meridian-grc/meridian/modules/compliance/domain"
	"github.com/meridian-grc/meridian/pkg/constants"
	"github.com/meridian-grc/meridian/pkg/delimited"
)

const (
	MsgRequired        = "Required"
	MsgColumnNotMapped = "Column not mapped"
	MsgNotesRequired   = "Notes are required when result is FAIL or PARTIALLY"
	MsgTriadRequired   = "Testing Frequency, Assigned Tester Email and Summary of Test are required to record test results"
	MsgScoreRange      = "Must be a whole number between 1 and 5"
	MsgNotANumber      = "Must be a number"

	ActionCreate = "create"
	ActionUpdate = "update"
)

// RowError is scoped to a 1-based data row; Row 0 means the whole file.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RowResult carries Entity only when the row has no errors.
type RowResult[T any] struct {
	RowIndex int        `json:"rowIndex"`
	Errors   []RowError `json:"errors"`
	Entity   *T         `json:"entity"`
}

type Report[T any] struct {
	Kind     Kind           `json:"kind"`
	Mapping  Mapping        `json:"mapping"`
	Periods  []PeriodColumn `json:"periods,omitempty"`
	RowCount int            `json:"rowCount"`
	Rows     []RowResult[T] `json:"rows"`
	Errors   []RowError     `json:"errors"`
	Warnings []RowError     `json:"warnings"`
}

func (r Report[T]) Valid() bool {
	return len(r.Errors) == 0
}

// Entities returns validated rows in file order.
func (r Report[T]) Entities() []T {
	out := make([]T, 0, len(r.Rows))
	for _, row := range r.Rows {
		if row.Entity != nil {
			out = append(out, *row.Entity)
		}
	}
	return out
}

// Summary is the preview line shown for a valid row.
type Summary struct {
	Row          int    `json:"row"`
	Action       string `json:"action"`
	Reference    string `json:"reference,omitempty"`
	Name         string `json:"name"`
	BusinessArea string `json:"businessArea,omitempty"`
	NewArea      bool   `json:"newBusinessArea,omitempty"`
	Outcome      string `json:"outcome,omitempty"`
	Measure      string `json:"measure,omitempty"`
	Category     string `json:"category,omitempty"`
	TestResults  int    `json:"testResults,omitempty"`
}

type summarizer interface {
	Summary() Summary
}

// Summaries returns one preview line per valid row.
func Summaries[T summarizer](r Report[T]) []Summary {
	out := make([]Summary, 0, len(r.Rows))
	for _, row := range r.Rows {
		if row.Entity == nil {
			continue
		}
		s := (*row.Entity).Summary()
		s.Row = row.RowIndex
		out = append(out, s)
	}
	return out
}

// rowReader reads mapped cells of one data row and collects its errors.
type rowReader struct {
	row       int
	cells     []string
	index     map[string]int
	mapping   Mapping
	catalogue Catalogue
	errs      []RowError
}

func (r *rowReader) header(h string) string {
	i, ok := r.index[h]
	if !ok || i >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[i])
}

func (r *rowReader) get(f Field) string {
	h, ok := r.mapping[f]
	if !ok {
		return ""
	}
	return r.header(h)
}

func (r *rowReader) label(f Field) string {
	return r.catalogue.Label(f)
}

func (r *rowReader) fail(field, msg string) {
	r.errs = append(r.errs, RowError{Row: r.row, Field: field, Message: msg})
}

func (r *rowReader) required(f Field) string {
	v := r.get(f)
	if v == "" {
		r.fail(r.label(f), MsgRequired)
	}
	return v
}

// enum reads an enum column. Empty optional cells yield def.
func (r *rowReader) enum(f Field, e domain.Enum, required bool, def string) string {
	raw := r.get(f)
	if raw == "" {
		if required {
			r.fail(r.label(f), MsgRequired)
		}
		return def
	}
	v, ok := e.Parse(raw)
	if !ok {
		r.fail(r.label(f), e.Message())
		return ""
	}
	return v
}

// user resolves an email column to an existing user.
func (r *rowReader) user(f Field, required bool, ref *ReferenceData) (domain.User, bool) {
	raw := r.get(f)
	if raw == "" {
		if required {
			r.fail(r.label(f), MsgRequired)
		}
		return domain.User{}, false
	}
	if err := constants.Validate.Var(raw, "email"); err != nil {
		r.fail(r.label(f), "Invalid email: "+raw)
		return domain.User{}, false
	}
	u, ok := ref.User(raw)
	if !ok {
		r.fail(r.label(f), "User not found: "+raw)
		return domain.User{}, false
	}
	return u, true
}

// score reads a 1-5 integer rating.
func (r *rowReader) score(f Field) int {
	raw := r.get(f)
	if raw == "" {
		r.fail(r.label(f), MsgRequired)
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 5 {
		r.fail(r.label(f), MsgScoreRange)
		return 0
	}
	return n
}

func (r *rowReader) ok() bool {
	return len(r.errs) == 0
}

// validateRows drives fn over every non-blank data row. fn returns nil when
// the row failed; its errors are read from the reader.
func validateRows[T any](kind Kind, t delimited.Table, m Mapping, c Catalogue, fn func(r *rowReader) *T) Report[T] {
	report := Report[T]{
		Kind:     kind,
		Mapping:  m,
		Rows:     []RowResult[T]{},
		Errors:   []RowError{},
		Warnings: []RowError{},
	}
	report.RowCount = t.DataRows()

	if missing := MissingRequired(m, c); len(missing) > 0 {
		for _, spec := range missing {
			report.Errors = append(report.Errors, RowError{Row: 0, Field: spec.Label, Message: MsgColumnNotMapped})
		}
		return report
	}

	index := make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	for i, cells := range t.Rows {
		if delimited.IsBlank(cells) {
			continue
		}
		rr := &rowReader{row: i + 1, cells: cells, index: index, mapping: m, catalogue: c}
		entity := fn(rr)
		result := RowResult[T]{RowIndex: rr.row, Errors: []RowError{}}
		if rr.ok() && entity != nil {
			result.Entity = entity
		} else {
			result.Errors = append(result.Errors, rr.errs...)
			report.Errors = append(report.Errors, rr.errs...)
		}
		report.Rows = append(report.Rows, result)
	}
	return report
}

// seenKeys records the first row a natural key appeared on.
type seenKeys map[string]int

func (s seenKeys) check(r *rowReader, field, key string) {
	if key == "" {
		return
	}
	if first, ok := s[key]; ok {
		r.fail(field, fmt.Sprintf("Duplicate of row %d", first))
		return
	}
	s[key] = r.row
}

func actionFor(existing *uuid.UUID) string {
	if existing != nil {
		return ActionUpdate
	}
	return ActionCreate
}
