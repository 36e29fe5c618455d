package importer

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/meridian-grc/meridian/modules/compliance/domain"
	"github.com/meridian-grc/meridian/pkg/delimited"
)

type RiskRow struct {
	ExistingID         *uuid.UUID `json:"existingId,omitempty"`
	Reference          string     `json:"reference,omitempty"`
	Name               string     `json:"riskName"`
	Description        string     `json:"riskDescription"`
	Category           string     `json:"category"`
	SubCategory        string     `json:"subCategory,omitempty"`
	OwnerID            uuid.UUID  `json:"ownerId"`
	OwnerEmail         string     `json:"ownerEmail"`
	InherentLikelihood int        `json:"inherentLikelihood"`
	InherentImpact     int        `json:"inherentImpact"`
	ResidualLikelihood int        `json:"residualLikelihood"`
	ResidualImpact     int        `json:"residualImpact"`
	Direction          string     `json:"directionOfTravel"`
}

func (r RiskRow) Summary() Summary {
	return Summary{
		Action:    actionFor(r.ExistingID),
		Reference: r.Reference,
		Name:      r.Name,
		Category:  r.Category,
	}
}

func ValidateRisks(t delimited.Table, m Mapping, ref *ReferenceData) Report[RiskRow] {
	refs := seenKeys{}
	return validateRows(KindRisks, t, m, RisksCatalogue, func(r *rowReader) *RiskRow {
		row := &RiskRow{
			Name:        r.required(FieldRiskName),
			Description: r.required(FieldRiskDescription),
			Category:    r.enum(FieldCategory, domain.RiskCategories, true, ""),
			SubCategory: r.get(FieldSubCategory),
		}
		if reference := r.get(FieldRiskReference); reference != "" {
			refs.check(r, r.label(FieldRiskReference), fold(reference))
			if existing, ok := ref.Risk(reference); ok {
				id := existing.ID
				row.ExistingID = &id
				row.Reference = existing.Reference
			} else {
				r.fail(r.label(FieldRiskReference), "Risk not found: "+reference)
			}
		}
		if owner, ok := r.user(FieldOwnerEmail, true, ref); ok {
			row.OwnerID = owner.ID
			row.OwnerEmail = owner.Email
		}
		row.InherentLikelihood = r.score(FieldInherentLikelihood)
		row.InherentImpact = r.score(FieldInherentImpact)
		row.ResidualLikelihood = r.score(FieldResidualLikelihood)
		row.ResidualImpact = r.score(FieldResidualImpact)
		row.Direction = r.enum(FieldDirectionOfTravel, domain.DirectionsOfTravel, false, domain.DirectionStable)

		if !r.ok() {
			return nil
		}
		inherent := row.InherentLikelihood * row.InherentImpact
		residual := row.ResidualLikelihood * row.ResidualImpact
		if residual > inherent {
			r.fail(r.label(FieldResidualImpact),
				fmt.Sprintf("Residual score (%d) must not exceed inherent score (%d)", residual, inherent))
			return nil
		}
		return row
	})
}
