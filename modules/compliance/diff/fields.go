// Package diff compares two published report snapshots.
package diff

import (
	"bytes"
	"encoding/json"

	"github.com/meridian-grc/meridian/modules/compliance/domain"
)

type FieldChange struct {
	Field     string     `json:"field"`
	OldValue  string     `json:"oldValue"`
	NewValue  string     `json:"newValue"`
	TextEdits []TextEdit `json:"textEdits,omitempty"`
}

// Fields compares two objects key by key. Keys are visited in a's order
// followed by keys only b has, and a change is reported only when the
// serialized values differ.
func Fields(a, b domain.Object, opts ...Option) []FieldChange {
	o := newOptions(opts)
	keys := a.Keys()
	for _, k := range b.Keys() {
		if _, ok := a.Raw(k); !ok {
			keys = append(keys, k)
		}
	}

	changes := []FieldChange{}
	for _, k := range keys {
		oldRaw, _ := a.Raw(k)
		newRaw, _ := b.Raw(k)
		if c, ok := compareValues(k, decode(oldRaw), decode(newRaw), o); ok {
			changes = append(changes, c)
		}
	}
	return changes
}

func compareValues(field string, oldValue, newValue any, o options) (FieldChange, bool) {
	oldText, newText := Serialize(oldValue), Serialize(newValue)
	if oldText == newText {
		return FieldChange{}, false
	}
	c := FieldChange{Field: field, OldValue: oldText, NewValue: newText}
	_, oldIsString := oldValue.(string)
	_, newIsString := newValue.(string)
	if o.textEdits && oldIsString && newIsString {
		c.TextEdits = TextEdits(oldText, newText)
	}
	return c, true
}

func decode(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

// Serialize renders a decoded JSON value for comparison: strings as-is,
// null as "", anything else as compact JSON with object keys sorted.
// Numbers decoded as json.Number keep their literal text, so reordering the
// keys of a nested object is not a change but any digit is.
func Serialize(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
