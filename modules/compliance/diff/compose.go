package diff

import (
	"encoding/json"

	"github.com/wI2L/jsondiff"

	"github.com/meridian-grc/meridian/modules/compliance/domain"
)

type Kind string

const (
	KindAdded    Kind = "added"
	KindRemoved  Kind = "removed"
	KindModified Kind = "modified"
)

const (
	EntityOutcome = "outcome"
	EntityMeasure = "measure"
)

type SectionDiff struct {
	ID      string         `json:"id"`
	Title   string         `json:"title"`
	Kind    Kind           `json:"kind"`
	Changes []FieldChange  `json:"changes"`
	Patch   jsondiff.Patch `json:"patch,omitempty"`
}

type RAGChange struct {
	Kind      string `json:"kind"`
	ID        string `json:"id"`
	OutcomeID string `json:"outcomeId,omitempty"`
	Entity    string `json:"entity"`
	OldRAG    string `json:"oldRAG"`
	NewRAG    string `json:"newRAG"`
}

type Summary struct {
	SectionsAdded    int `json:"sectionsAdded"`
	SectionsRemoved  int `json:"sectionsRemoved"`
	SectionsModified int `json:"sectionsModified"`
	MeasuresUpdated  int `json:"measuresUpdated"`
	RAGChanges       int `json:"ragChanges"`
}

type Result struct {
	SectionDiffs []SectionDiff `json:"sectionDiffs"`
	RAGChanges   []RAGChange   `json:"ragChanges"`
	Summary      Summary       `json:"summary"`
}

type options struct {
	contentPatch bool
	textEdits    bool
}

type Option func(*options)

// WithContentPatch attaches an RFC 6902 patch from base to compare content
// to every modified section.
func WithContentPatch() Option {
	return func(o *options) { o.contentPatch = true }
}

// WithoutTextEdits omits inline edits from string field changes.
func WithoutTextEdits() Option {
	return func(o *options) { o.textEdits = false }
}

func newOptions(opts []Option) options {
	o := options{textEdits: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Compare diffs two snapshots. Sections and outcomes are matched by id; the
// first occurrence of a repeated id is used.
func Compare(base, compare domain.Snapshot, opts ...Option) Result {
	o := newOptions(opts)
	res := Result{SectionDiffs: []SectionDiff{}, RAGChanges: []RAGChange{}}

	compareSections := indexSections(compare.Sections)
	baseSections := indexSections(base.Sections)

	seen := map[string]bool{}
	for _, s := range base.Sections {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		other, ok := compareSections[s.ID]
		if !ok {
			res.SectionDiffs = append(res.SectionDiffs, SectionDiff{ID: s.ID, Title: s.Title, Kind: KindRemoved, Changes: []FieldChange{}})
			res.Summary.SectionsRemoved++
			continue
		}
		if sd, changed := compareSection(s, other, o); changed {
			res.SectionDiffs = append(res.SectionDiffs, sd)
			res.Summary.SectionsModified++
		}
	}
	for _, s := range compare.Sections {
		if _, inBase := baseSections[s.ID]; inBase || seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		res.SectionDiffs = append(res.SectionDiffs, SectionDiff{ID: s.ID, Title: s.Title, Kind: KindAdded, Changes: []FieldChange{}})
		res.Summary.SectionsAdded++
	}

	compareOutcomes := map[string]domain.Outcome{}
	for _, oc := range compare.Outcomes {
		if _, dup := compareOutcomes[oc.ID]; !dup {
			compareOutcomes[oc.ID] = oc
		}
	}
	visited := map[string]bool{}
	for _, oc := range base.Outcomes {
		other, ok := compareOutcomes[oc.ID]
		if !ok || visited[oc.ID] {
			continue
		}
		visited[oc.ID] = true
		if oc.RAGStatus != other.RAGStatus {
			res.RAGChanges = append(res.RAGChanges, RAGChange{
				Kind: EntityOutcome, ID: oc.ID, Entity: other.Name,
				OldRAG: oc.RAGStatus, NewRAG: other.RAGStatus,
			})
		}
		changes, updated := compareMeasures(oc.ID, oc.Measures, other.Measures)
		res.RAGChanges = append(res.RAGChanges, changes...)
		res.Summary.MeasuresUpdated += updated
	}
	res.Summary.RAGChanges = len(res.RAGChanges)
	return res
}

func indexSections(sections []domain.Section) map[string]domain.Section {
	idx := make(map[string]domain.Section, len(sections))
	for _, s := range sections {
		if _, dup := idx[s.ID]; !dup {
			idx[s.ID] = s
		}
	}
	return idx
}

// compareSection lists title and position changes ahead of content changes.
func compareSection(base, compare domain.Section, o options) (SectionDiff, bool) {
	changes := []FieldChange{}
	if c, ok := compareValues("title", base.Title, compare.Title, o); ok {
		changes = append(changes, c)
	}
	if c, ok := compareValues("position", base.Position, compare.Position, o); ok {
		changes = append(changes, c)
	}
	content := Fields(base.Content, compare.Content, withOptions(o))
	changes = append(changes, content...)
	if len(changes) == 0 {
		return SectionDiff{}, false
	}
	sd := SectionDiff{ID: base.ID, Title: compare.Title, Kind: KindModified, Changes: changes}
	if o.contentPatch && len(content) > 0 {
		sd.Patch = ContentPatch(base.Content, compare.Content)
	}
	return sd, true
}

func withOptions(o options) Option {
	return func(dst *options) { *dst = o }
}

func compareMeasures(outcomeID string, base, compare []domain.Measure) ([]RAGChange, int) {
	idx := map[string]domain.Measure{}
	for _, m := range compare {
		if _, dup := idx[m.ID]; !dup {
			idx[m.ID] = m
		}
	}
	var changes []RAGChange
	updated := 0
	visited := map[string]bool{}
	for _, m := range base {
		other, ok := idx[m.ID]
		if !ok || visited[m.ID] {
			continue
		}
		visited[m.ID] = true
		if m.RAGStatus != other.RAGStatus {
			changes = append(changes, RAGChange{
				Kind: EntityMeasure, ID: m.ID, OutcomeID: outcomeID, Entity: other.Name,
				OldRAG: m.RAGStatus, NewRAG: other.RAGStatus,
			})
		}
		if m.RAGStatus != other.RAGStatus || m.Name != other.Name {
			updated++
		}
	}
	return changes, updated
}

// ContentPatch returns the JSON patch turning a into b, or nil when either
// side cannot be encoded.
func ContentPatch(a, b domain.Object) jsondiff.Patch {
	src, err := json.Marshal(a)
	if err != nil {
		return nil
	}
	dst, err := json.Marshal(b)
	if err != nil {
		return nil
	}
	patch, err := jsondiff.CompareJSON(src, dst)
	if err != nil {
		return nil
	}
	return patch
}
