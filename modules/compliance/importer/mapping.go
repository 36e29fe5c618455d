package importer

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Mapping assigns source headers to canonical fields.
type Mapping map[Field]string

// NormalizeHeader folds diacritics, lower-cases and drops everything but
// ASCII letters and digits.
func NormalizeHeader(h string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), h)
	if err != nil {
		folded = h
	}
	folded = strings.ToLower(folded)
	var b strings.Builder
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// AutoMap matches headers against each field's synonyms in catalogue order.
// A header is claimed by at most one field and the first match wins.
func AutoMap(headers []string, c Catalogue) Mapping {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = NormalizeHeader(h)
	}
	claimed := make([]bool, len(headers))
	m := Mapping{}
	for _, spec := range c {
		for i, n := range normalized {
			if claimed[i] || n == "" || !contains(spec.Synonyms, n) {
				continue
			}
			m[spec.Field] = headers[i]
			claimed[i] = true
			break
		}
	}
	return m
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// MappingError rejects an override the headers cannot satisfy.
type MappingError struct {
	Field   string `json:"field"`
	Header  string `json:"header,omitempty"`
	Message string `json:"message"`
}

type MappingErrors []MappingError

func (e MappingErrors) Error() string {
	parts := make([]string, len(e))
	for i, me := range e {
		parts[i] = fmt.Sprintf("%s: %s", me.Field, me.Message)
	}
	return "invalid column mapping: " + strings.Join(parts, "; ")
}

// Override returns a copy of m with overrides applied. An empty header
// unmaps the field. Unknown fields and headers not present in the file are
// reported instead of applied.
func (m Mapping) Override(overrides map[string]string, headers []string, c Catalogue) (Mapping, error) {
	out := Mapping{}
	for f, h := range m {
		out[f] = h
	}
	var errs MappingErrors
	fields := make([]string, 0, len(overrides))
	for f := range overrides {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, name := range fields {
		header := strings.TrimSpace(overrides[name])
		spec, ok := c.Spec(Field(name))
		if !ok {
			errs = append(errs, MappingError{Field: name, Header: header, Message: "Unknown field"})
			continue
		}
		if header == "" {
			delete(out, spec.Field)
			continue
		}
		if !contains(headers, header) {
			errs = append(errs, MappingError{Field: name, Header: header, Message: "Column not found: " + header})
			continue
		}
		out[spec.Field] = header
	}
	if len(errs) > 0 {
		return m, errs
	}
	return out, nil
}

// MissingRequired lists required fields without a mapped column.
func MissingRequired(m Mapping, c Catalogue) []FieldSpec {
	var missing []FieldSpec
	for _, spec := range c {
		if spec.Required && m[spec.Field] == "" {
			missing = append(missing, spec)
		}
	}
	return missing
}
