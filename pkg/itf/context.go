// Package itf builds in-process test environments: an application wired to a
// migrated in-memory database and its HTTP router.
package itf

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/meridian-grc/meridian/modules/compliance/infrastructure/persistence"
	"github.com/meridian-grc/meridian/pkg/application"
	"github.com/meridian-grc/meridian/pkg/composables"
	"github.com/meridian-grc/meridian/pkg/middleware"
	"github.com/meridian-grc/meridian/pkg/server"
)

// TestContext provides a fluent API for building test environments
type TestContext struct {
	modules []application.Module
	logger  *logrus.Logger
}

func NewTestContext() *TestContext {
	return &TestContext{modules: []application.Module{}}
}

// WithModules adds modules to the test application
func (tc *TestContext) WithModules(modules ...application.Module) *TestContext {
	tc.modules = append(tc.modules, modules...)
	return tc
}

// WithLogger replaces the default discarding logger
func (tc *TestContext) WithLogger(logger *logrus.Logger) *TestContext {
	tc.logger = logger
	return tc
}

// Build creates the environment. The database is closed on test cleanup.
func (tc *TestContext) Build(tb testing.TB) *TestEnvironment {
	tb.Helper()

	db := persistence.NewTestDB(tb)
	logger := tc.logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	app := application.New(&application.ApplicationOptions{DB: db, Logger: logger})
	opts := middleware.DefaultLoggerOptions()
	opts.LogRequestBody = false
	app.RegisterMiddleware(
		middleware.ProvideDB(db),
		middleware.WithLogger(logger, opts),
	)
	if err := application.Load(app, tc.modules...); err != nil {
		tb.Fatal(err)
	}

	return &TestEnvironment{
		Ctx: composables.WithDB(context.Background(), db),
		DB:  db,
		App: app,
	}
}

// TestEnvironment contains all test dependencies
type TestEnvironment struct {
	Ctx context.Context
	DB  *sqlx.DB
	App application.Application
}

// Service retrieves a service from the application
func (te *TestEnvironment) Service(service any) any {
	return te.App.Service(service)
}

// GetService is a generic helper that retrieves and casts a service
func GetService[T any](te *TestEnvironment) *T {
	var zero T
	return te.App.Service(zero).(*T)
}

// Handler returns the application's router with every registered
// controller and middleware.
func (te *TestEnvironment) Handler() http.Handler {
	return server.NewHTTPServer(te.App, nil, nil).Router()
}
