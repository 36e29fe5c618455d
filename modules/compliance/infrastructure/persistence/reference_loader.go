package persistence

import (
	"context"

	"github.com/meridian-grc/meridian/modules/compliance/domain"
	"github.com/meridian-grc/meridian/modules/compliance/importer"
)

// ReferenceLoader reads the lookup state an import validates against.
type ReferenceLoader struct {
	users        domain.UserRepository
	areas        domain.BusinessAreaRepository
	controls     domain.ControlRepository
	risks        domain.RiskRepository
	consumerDuty domain.ConsumerDutyRepository
}

func NewReferenceLoader() *ReferenceLoader {
	return &ReferenceLoader{
		users:        NewUserRepository(),
		areas:        NewBusinessAreaRepository(),
		controls:     NewControlRepository(),
		risks:        NewRiskRepository(),
		consumerDuty: NewConsumerDutyRepository(),
	}
}

// Load reads only the tables kind needs.
func (l *ReferenceLoader) Load(ctx context.Context, kind importer.Kind) (importer.ReferenceSet, error) {
	var set importer.ReferenceSet
	var err error
	switch kind {
	case importer.KindControls:
		if set.Users, err = l.users.List(ctx); err != nil {
			return set, err
		}
		if set.BusinessAreas, err = l.areas.List(ctx); err != nil {
			return set, err
		}
		set.Controls, err = l.controls.List(ctx)
	case importer.KindRisks:
		if set.Users, err = l.users.List(ctx); err != nil {
			return set, err
		}
		set.Risks, err = l.risks.List(ctx)
	case importer.KindMeasures:
		if set.Outcomes, err = l.consumerDuty.ListOutcomes(ctx); err != nil {
			return set, err
		}
		set.Measures, err = l.consumerDuty.ListMeasures(ctx)
	case importer.KindMetrics:
		if set.Outcomes, err = l.consumerDuty.ListOutcomes(ctx); err != nil {
			return set, err
		}
		if set.Measures, err = l.consumerDuty.ListMeasures(ctx); err != nil {
			return set, err
		}
		set.Metrics, err = l.consumerDuty.ListMetrics(ctx)
	}
	return set, err
}
