package modules

import (
	"github.com/meridian-grc/meridian/modules/compliance"
	"github.com/meridian-grc/meridian/pkg/application"
)

// BuiltInModules returns the modules every deployment registers.
func BuiltInModules(opts *compliance.ModuleOptions) []application.Module {
	return []application.Module{
		compliance.NewModule(opts),
	}
}

func Load(app application.Application, externalModules ...application.Module) error {
	return application.Load(app, externalModules...)
}
