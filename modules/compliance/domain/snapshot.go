package domain

import (
	"bytes"
	"encoding/json"
)

// Snapshot is the immutable content of a published report version.
type Snapshot struct {
	Sections []Section `json:"sections"`
	Outcomes []Outcome `json:"outcomes"`
}

type Section struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Position any    `json:"position"`
	Content  Object `json:"content"`
}

type Outcome struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	RAGStatus string    `json:"ragStatus"`
	Measures  []Measure `json:"measures"`
}

type Measure struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	RAGStatus string `json:"ragStatus"`
}

// ParseSnapshot decodes data leniently: the top level must be valid JSON but
// misshapen collections and entries are dropped rather than rejected.
func ParseSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	fields, err := objectFields(data)
	if err != nil {
		return err
	}
	*s = Snapshot{
		Sections: decodeList(fields["sections"], decodeSection),
		Outcomes: decodeList(fields["outcomes"], decodeOutcome),
	}
	return nil
}

func (s *Section) UnmarshalJSON(data []byte) error {
	v, ok := decodeSection(data)
	if ok {
		*s = v
	}
	return nil
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	v, ok := decodeOutcome(data)
	if ok {
		*o = v
	}
	return nil
}

func (m *Measure) UnmarshalJSON(data []byte) error {
	v, ok := decodeMeasure(data)
	if ok {
		*m = v
	}
	return nil
}

// objectFields returns the members of a JSON object, or nil for any other
// valid JSON value.
func objectFields(data []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		var discard any
		if err := json.Unmarshal(data, &discard); err != nil {
			return nil, err
		}
		return nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func decodeList[T any](raw json.RawMessage, decode func([]byte) (T, bool)) []T {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []T{}
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if v, ok := decode(item); ok {
			out = append(out, v)
		}
	}
	return out
}

func decodeSection(data []byte) (Section, bool) {
	f, err := objectFields(data)
	if err != nil || f == nil {
		return Section{}, false
	}
	s := Section{
		ID:    scalarString(f["id"]),
		Title: scalarString(f["title"]),
	}
	if raw, ok := f["position"]; ok {
		_ = json.Unmarshal(raw, &s.Position)
	}
	if raw, ok := f["content"]; ok {
		_ = s.Content.UnmarshalJSON(raw)
	}
	return s, true
}

func decodeOutcome(data []byte) (Outcome, bool) {
	f, err := objectFields(data)
	if err != nil || f == nil {
		return Outcome{}, false
	}
	return Outcome{
		ID:        scalarString(f["id"]),
		Name:      scalarString(f["name"]),
		RAGStatus: scalarString(f["ragStatus"]),
		Measures:  decodeList(f["measures"], decodeMeasure),
	}, true
}

func decodeMeasure(data []byte) (Measure, bool) {
	f, err := objectFields(data)
	if err != nil || f == nil {
		return Measure{}, false
	}
	return Measure{
		ID:        scalarString(f["id"]),
		Name:      scalarString(f["name"]),
		RAGStatus: scalarString(f["ragStatus"]),
	}, true
}

// scalarString reads a string member; numbers and booleans keep their JSON
// text and null or absent members read as "".
func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	t := string(bytes.TrimSpace(raw))
	if t == "null" {
		return ""
	}
	return t
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	type plain Snapshot
	p := plain(s)
	if p.Sections == nil {
		p.Sections = []Section{}
	}
	if p.Outcomes == nil {
		p.Outcomes = []Outcome{}
	}
	return json.Marshal(p)
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	type plain Outcome
	p := plain(o)
	if p.Measures == nil {
		p.Measures = []Measure{}
	}
	return json.Marshal(p)
}
