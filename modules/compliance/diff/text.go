package diff

import "github.com/sergi/go-diff/diffmatchpatch"

const (
	OpEqual  = "equal"
	OpInsert = "insert"
	OpDelete = "delete"
)

// TextEdit is one run of an inline character diff.
type TextEdit struct {
	Op   string `json:"op"`
	Text string `json:"text"`
}

// TextEdits returns a semantically cleaned-up diff from a to b.
func TextEdits(a, b string) []TextEdit {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(a, b, false))
	edits := make([]TextEdit, 0, len(diffs))
	for _, d := range diffs {
		op := OpEqual
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = OpInsert
		case diffmatchpatch.DiffDelete:
			op = OpDelete
		}
		edits = append(edits, TextEdit{Op: op, Text: d.Text})
	}
	return edits
}
