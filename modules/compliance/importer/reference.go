package importer

import (
	"strings"

	"github.com/google/uuid"

	"github.com/meridian-grc/meridian/modules/compliance/domain"
)

// ReferenceData is the read-only lookup state validation resolves against.
// Build it with NewReferenceData; validators never modify it.
type ReferenceData struct {
	users       map[string]domain.User
	areas       map[string]domain.BusinessArea
	areaNames   []string
	outcomes    []domain.ConsumerDutyOutcome
	measures    []domain.ConsumerDutyMeasure
	metrics     map[metricKey]domain.ConsumerDutyMetric
	controls    map[string]domain.Control
	risks       map[string]domain.Risk
	measureKeys map[measureKey]domain.ConsumerDutyMeasure
}

type measureKey struct {
	outcome uuid.UUID
	id      string
}

type metricKey struct {
	measure uuid.UUID
	metric  string
}

type ReferenceSet struct {
	Users         []domain.User
	BusinessAreas []domain.BusinessArea
	Outcomes      []domain.ConsumerDutyOutcome
	Measures      []domain.ConsumerDutyMeasure
	Metrics       []domain.ConsumerDutyMetric
	Controls      []domain.Control
	Risks         []domain.Risk
}

func NewReferenceData(set ReferenceSet) *ReferenceData {
	r := &ReferenceData{
		users:       make(map[string]domain.User, len(set.Users)),
		areas:       make(map[string]domain.BusinessArea, len(set.BusinessAreas)),
		outcomes:    set.Outcomes,
		measures:    set.Measures,
		metrics:     make(map[metricKey]domain.ConsumerDutyMetric, len(set.Metrics)),
		controls:    make(map[string]domain.Control, len(set.Controls)),
		risks:       make(map[string]domain.Risk, len(set.Risks)),
		measureKeys: make(map[measureKey]domain.ConsumerDutyMeasure, len(set.Measures)),
	}
	for _, u := range set.Users {
		r.users[fold(u.Email)] = u
	}
	for _, a := range set.BusinessAreas {
		r.areas[fold(a.Name)] = a
		r.areaNames = append(r.areaNames, a.Name)
	}
	for _, m := range set.Measures {
		r.measureKeys[measureKey{m.OutcomeID, fold(m.MeasureID)}] = m
	}
	for _, m := range set.Metrics {
		r.metrics[metricKey{m.MeasureID, fold(m.Metric)}] = m
	}
	for _, c := range set.Controls {
		r.controls[fold(c.Reference)] = c
	}
	for _, rk := range set.Risks {
		r.risks[fold(rk.Reference)] = rk
	}
	return r
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (r *ReferenceData) User(email string) (domain.User, bool) {
	u, ok := r.users[fold(email)]
	return u, ok
}

func (r *ReferenceData) BusinessArea(name string) (domain.BusinessArea, bool) {
	a, ok := r.areas[fold(name)]
	return a, ok
}

func (r *ReferenceData) BusinessAreaNames() []string {
	return append([]string(nil), r.areaNames...)
}

// Outcome resolves by record id, then outcome code, then name.
func (r *ReferenceData) Outcome(v string) (domain.ConsumerDutyOutcome, bool) {
	v = strings.TrimSpace(v)
	if id, err := uuid.Parse(v); err == nil {
		for _, o := range r.outcomes {
			if o.ID == id {
				return o, true
			}
		}
	}
	code := domain.NormalizeEnum(v)
	for _, o := range r.outcomes {
		if o.Code != "" && o.Code == code {
			return o, true
		}
	}
	for _, o := range r.outcomes {
		if fold(o.Name) == fold(v) {
			return o, true
		}
	}
	return domain.ConsumerDutyOutcome{}, false
}

// Measures resolves by record id, then by measure id. Measure ids are only
// unique per outcome, so more than one match can come back.
func (r *ReferenceData) Measures(v string) []domain.ConsumerDutyMeasure {
	v = strings.TrimSpace(v)
	if id, err := uuid.Parse(v); err == nil {
		for _, m := range r.measures {
			if m.ID == id {
				return []domain.ConsumerDutyMeasure{m}
			}
		}
	}
	var out []domain.ConsumerDutyMeasure
	for _, m := range r.measures {
		if fold(m.MeasureID) == fold(v) {
			out = append(out, m)
		}
	}
	return out
}

func (r *ReferenceData) MeasureByKey(outcome uuid.UUID, measureID string) (domain.ConsumerDutyMeasure, bool) {
	m, ok := r.measureKeys[measureKey{outcome, fold(measureID)}]
	return m, ok
}

func (r *ReferenceData) Metric(measure uuid.UUID, metric string) (domain.ConsumerDutyMetric, bool) {
	m, ok := r.metrics[metricKey{measure, fold(metric)}]
	return m, ok
}

func (r *ReferenceData) Control(ref string) (domain.Control, bool) {
	c, ok := r.controls[fold(ref)]
	return c, ok
}

func (r *ReferenceData) Risk(ref string) (domain.Risk, bool) {
	rk, ok := r.risks[fold(ref)]
	return rk, ok
}
