package importer

import (
	"github.com/google/uuid"

	"github.com/meridian-grc/meridian/modules/compliance/domain"
	"github.com/meridian-grc/meridian/pkg/delimited"
)

type MeasureRow struct {
	ExistingID  *uuid.UUID `json:"existingId,omitempty"`
	OutcomeID   uuid.UUID  `json:"outcomeId"`
	OutcomeName string     `json:"outcomeName,omitempty"`
	MeasureID   string     `json:"measureId"`
	Name        string     `json:"name"`
	Owner       string     `json:"owner,omitempty"`
	Description string     `json:"summary,omitempty"`
	RAGStatus   string     `json:"ragStatus"`
}

func (m MeasureRow) Summary() Summary {
	return Summary{
		Action:    actionFor(m.ExistingID),
		Reference: m.MeasureID,
		Name:      m.Name,
		Outcome:   m.OutcomeName,
	}
}

// ValidateMeasures keys measures by (outcome, measure id); an existing pair
// is updated on commit.
func ValidateMeasures(t delimited.Table, m Mapping, ref *ReferenceData) Report[MeasureRow] {
	keys := seenKeys{}
	return validateRows(KindMeasures, t, m, MeasuresCatalogue, func(r *rowReader) *MeasureRow {
		row := &MeasureRow{
			MeasureID:   r.required(FieldMeasureID),
			Name:        r.required(FieldName),
			Owner:       r.get(FieldOwner),
			Description: r.get(FieldSummary),
			RAGStatus:   r.enum(FieldRAGStatus, domain.RAGStatuses, false, domain.RAGGood),
		}
		if raw := r.required(FieldOutcomeID); raw != "" {
			outcome, ok := ref.Outcome(raw)
			if !ok {
				r.fail(r.label(FieldOutcomeID), "Outcome not found: "+raw)
			} else {
				row.OutcomeID = outcome.ID
				row.OutcomeName = outcome.Name
				if row.MeasureID != "" {
					keys.check(r, r.label(FieldMeasureID), outcome.ID.String()+"/"+fold(row.MeasureID))
					if existing, ok := ref.MeasureByKey(outcome.ID, row.MeasureID); ok {
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
