package compliance

import (
	"github.com/meridian-grc/meridian/modules/compliance/handlers"
	"github.com/meridian-grc/meridian/modules/compliance/infrastructure/persistence"
	"github.com/meridian-grc/meridian/modules/compliance/presentation/controllers"
	"github.com/meridian-grc/meridian/modules/compliance/services"
	"github.com/meridian-grc/meridian/pkg/application"
	"github.com/meridian-grc/meridian/pkg/blob"
	"github.com/meridian-grc/meridian/pkg/configuration"
	"github.com/meridian-grc/meridian/pkg/refnum"
)

type ModuleOptions struct {
	// Blobs stores published report snapshots. Defaults to an in-memory
	// store.
	Blobs  blob.Store
	Import configuration.ImportOptions
}

func NewModule(opts *ModuleOptions) application.Module {
	if opts == nil {
		opts = &ModuleOptions{}
	}
	return &Module{options: opts}
}

type Module struct {
	options *ModuleOptions
}

func (m *Module) Register(app application.Application) error {
	blobs := m.options.Blobs
	if blobs == nil {
		blobs = blob.NewMemory()
	}
	var refOpts []refnum.GeneratorOption
	if n := m.options.Import.ReferenceAttempts; n > 0 {
		refOpts = append(refOpts, refnum.WithMaxAttempts(n))
	}

	app.RegisterServices(
		services.NewImportService(
			persistence.NewReferenceLoader(),
			services.ImportRepositories{
				Areas:        persistence.NewBusinessAreaRepository(),
				Controls:     persistence.NewControlRepository(),
				Risks:        persistence.NewRiskRepository(),
				ConsumerDuty: persistence.NewConsumerDutyRepository(),
			},
			refnum.New(persistence.NewReferenceStore(), refOpts...),
			app.EventPublisher(),
			services.WithMaxRows(m.options.Import.MaxRows),
		),
		services.NewReportVersionService(
			persistence.NewReportVersionRepository(),
			blobs,
			app.EventPublisher(),
		),
		services.NewSeedService(
			persistence.NewUserRepository(),
			persistence.NewBusinessAreaRepository(),
			persistence.NewConsumerDutyRepository(),
		),
	)

	handlers.RegisterEventHandlers(app)

	app.RegisterControllers(
		controllers.NewImportController(app, m.options.Import.MaxBytes),
		controllers.NewReportVersionController(app, m.options.Import.MaxBytes),
	)
	return nil
}

func (m *Module) Name() string {
	return "compliance"
}
