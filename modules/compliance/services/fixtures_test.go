package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/meridian-grc/meridian/modules/compliance/domain/events"
	"github.com/meridian-grc/meridian/modules/compliance/importer"
	"github.com/meridian-grc/meridian/modules/compliance/infrastructure/persistence"
	"github.com/meridian-grc/meridian/pkg/delimited"
	"github.com/meridian-grc/meridian/pkg/eventbus"
	"github.com/meridian-grc/meridian/pkg/refnum"
)

var july2025 = time.Date(2025, time.July, 10, 12, 0, 0, 0, time.UTC)

const seedYAML = `
users:
  - email: owner@example.com
    name: Olive Owner
  - email: tester@example.com
    name: Terry Tester
businessAreas:
  - name: Customer Operations
    sortOrder: 1
outcomes:
  - code: PRICE_AND_VALUE
    name: Price and Value
    ragStatus: GOOD
    measures:
      - measureId: PV-01
        name: Fair value assessment
        ragStatus: GOOD
`

type fixture struct {
	ctx      context.Context
	bus      eventbus.EventBus
	repos    ImportRepositories
	svc      *ImportService
	imported []*events.ImportCommittedEvent
}

func newFixture(t *testing.T, opts ...ImportOption) *fixture {
	t.Helper()
	ctx, _ := persistence.NewTestContext(t)

	seed, err := ParseSeed(strings.NewReader(seedYAML))
	require.NoError(t, err)
	_, err = NewSeedService(
		persistence.NewUserRepository(),
		persistence.NewBusinessAreaRepository(),
		persistence.NewConsumerDutyRepository(),
	).Apply(ctx, seed)
	require.NoError(t, err)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	f := &fixture{
		ctx: ctx,
		bus: eventbus.NewEventPublisher(log),
		repos: ImportRepositories{
			Areas:        persistence.NewBusinessAreaRepository(),
			Controls:     persistence.NewControlRepository(),
			Risks:        persistence.NewRiskRepository(),
			ConsumerDuty: persistence.NewConsumerDutyRepository(),
		},
	}
	f.bus.Subscribe(func(e *events.ImportCommittedEvent) {
		f.imported = append(f.imported, e)
	})
	f.svc = f.newService(opts...)
	return f
}

func (f *fixture) newService(opts ...ImportOption) *ImportService {
	opts = append([]ImportOption{WithImportClock(func() time.Time { return july2025 })}, opts...)
	return NewImportService(
		persistence.NewReferenceLoader(),
		f.repos,
		refnum.New(persistence.NewReferenceStore()),
		f.bus,
		opts...,
	)
}

func (f *fixture) validate(t *testing.T, kind importer.Kind, csv string) *Validation {
	t.Helper()
	v, err := f.svc.Validate(f.ctx, ImportRequest{Kind: kind, Table: delimited.ParseTable(csv)})
	require.NoError(t, err)
	return v
}

func (f *fixture) commit(t *testing.T, kind importer.Kind, csv string) *CommitResult {
	t.Helper()
	v := f.validate(t, kind, csv)
	require.True(t, v.Valid, "%v", v.Errors)
	res, err := f.svc.Commit(f.ctx, v)
	require.NoError(t, err)
	return res
}
