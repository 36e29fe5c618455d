package importer

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-grc/meridian/modules/compliance/domain"
	"github.com/meridian-grc/meridian/pkg/delimited"
)

type MetricRow struct {
	ExistingID   *uuid.UUID          `json:"existingId,omitempty"`
	MeasureID    uuid.UUID           `json:"measureId"`
	MeasureRef   string              `json:"measureRef"`
	Metric       string              `json:"metric"`
	CurrentValue decimal.NullDecimal `json:"currentValue"`
	TargetValue  decimal.NullDecimal `json:"targetValue"`
	RAGStatus    string              `json:"ragStatus,omitempty"`
}

func (m MetricRow) Summary() Summary {
	return Summary{
		Action:  actionFor(m.ExistingID),
		Name:    m.Metric,
		Measure: m.MeasureRef,
	}
}

// ValidateMetrics keys MI rows by (measure, metric).
func ValidateMetrics(t delimited.Table, m Mapping, ref *ReferenceData) Report[MetricRow] {
	keys := seenKeys{}
	return validateRows(KindMetrics, t, m, MetricsCatalogue, func(r *rowReader) *MetricRow {
		row := &MetricRow{
			Metric:       r.required(FieldMetric),
			CurrentValue: r.number(FieldCurrentValue),
			TargetValue:  r.number(FieldTargetValue),
			RAGStatus:    r.enum(FieldRAGStatus, domain.RAGStatuses, false, ""),
		}
		if raw := r.required(FieldMeasureID); raw != "" {
			if measure, ok := r.measure(raw, ref); ok {
				row.MeasureID = measure.ID
				row.MeasureRef = measure.MeasureID
				if row.Metric != "" {
					keys.check(r, r.label(FieldMetric), measure.ID.String()+"/"+fold(row.Metric))
					if existing, ok := ref.Metric(measure.ID, row.Metric); ok {
						id := existing.ID
						row.ExistingID = &id
					}
				}
			}
		}
		if !r.ok() {
			return nil
		}
		return row
	})
}

// measure resolves a Measure ID cell. When the optional Outcome ID column is
// filled the lookup is scoped to that outcome; otherwise the id must match
// exactly one measure.
func (r *rowReader) measure(raw string, ref *ReferenceData) (domain.ConsumerDutyMeasure, bool) {
	if outcomeRaw := r.get(FieldOutcomeID); outcomeRaw != "" {
		outcome, ok := ref.Outcome(outcomeRaw)
		if !ok {
			r.fail(r.label(FieldOutcomeID), "Outcome not found: "+outcomeRaw)
			return domain.ConsumerDutyMeasure{}, false
		}
		if m, ok := ref.MeasureByKey(outcome.ID, raw); ok {
			return m, true
		}
		for _, m := range ref.Measures(raw) {
			if m.OutcomeID == outcome.ID {
				return m, true
			}
		}
		r.fail(r.label(FieldMeasureID), "Measure not found: "+raw)
		return domain.ConsumerDutyMeasure{}, false
	}

	matches := ref.Measures(raw)
	switch len(matches) {
	case 0:
		r.fail(r.label(FieldMeasureID), "Measure not found: "+raw)
	case 1:
		return matches[0], true
	default:
		r.fail(r.label(FieldMeasureID), "Measure ID is ambiguous: "+raw+"; add Outcome ID")
	}
	return domain.ConsumerDutyMeasure{}, false
}

// number reads an optional decimal. One trailing percent sign and thousands
// separators are accepted.
func (r *rowReader) number(f Field) decimal.NullDecimal {
	raw := r.get(f)
	if raw == "" {
		return decimal.NullDecimal{}
	}
	d, err := ParseDecimal(raw)
	if err != nil {
		r.fail(r.label(f), MsgNotANumber)
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func ParseDecimal(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	return decimal.NewFromString(s)
}
