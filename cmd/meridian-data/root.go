package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/meridian-grc/meridian/modules"
	"github.com/meridian-grc/meridian/modules/compliance"
	"github.com/meridian-grc/meridian/modules/compliance/infrastructure/persistence"
	"github.com/meridian-grc/meridian/pkg/application"
	"github.com/meridian-grc/meridian/pkg/blob"
	"github.com/meridian-grc/meridian/pkg/composables"
	"github.com/meridian-grc/meridian/pkg/configuration"
	"github.com/meridian-grc/meridian/pkg/eventbus"
)

// cliEnv holds what commands need from the outside world. Tests swap the
// openers for an in-memory database and blob store.
type cliEnv struct {
	out       io.Writer
	logger    *logrus.Logger
	config    func() (*configuration.Configuration, error)
	openDB    func(ctx context.Context, conf *configuration.Configuration) (*sqlx.DB, func(), error)
	openBlobs func(ctx context.Context, conf *configuration.Configuration) (blob.Store, error)
}

func defaultEnv() *cliEnv {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)

	return &cliEnv{
		out:    os.Stdout,
		logger: logger,
		config: sync.OnceValues(func() (*configuration.Configuration, error) {
			conf, err := configuration.Parse(".env", ".env.local")
			if err == nil {
				logger.SetLevel(conf.LogrusLogLevel())
			}
			return conf, err
		}),
		openDB: func(ctx context.Context, conf *configuration.Configuration) (*sqlx.DB, func(), error) {
			ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			db, err := persistence.OpenConfigured(ctx, conf.Database)
			if err != nil {
				return nil, nil, fmt.Errorf("db connect failed: %w", err)
			}
			return db, func() { _ = db.Close() }, nil
		},
		openBlobs: func(ctx context.Context, conf *configuration.Configuration) (blob.Store, error) {
			return blob.Open(ctx, conf.Blob)
		},
	}
}

func (e *cliEnv) loadConfig() (*configuration.Configuration, error) {
	conf, err := e.config()
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("configuration: %w", err))
	}
	return conf, nil
}

// session is a loaded application bound to an open database.
type session struct {
	ctx   context.Context
	app   application.Application
	close func()
}

func (e *cliEnv) connect(ctx context.Context, conf *configuration.Configuration) (*session, error) {
	db, closeDB, err := e.openDB(ctx, conf)
	if err != nil {
		return nil, withCode(exitDB, err)
	}
	blobs, err := e.openBlobs(ctx, conf)
	if err != nil {
		closeDB()
		return nil, withCode(exitDB, fmt.Errorf("blob store: %w", err))
	}

	app := application.New(&application.ApplicationOptions{
		DB:       db,
		EventBus: eventbus.NewEventPublisher(e.logger),
		Logger:   e.logger,
	})
	if err := modules.Load(app, modules.BuiltInModules(&compliance.ModuleOptions{
		Blobs:  blobs,
		Import: conf.Import,
	})...); err != nil {
		closeDB()
		return nil, fmt.Errorf("load modules: %w", err)
	}

	ctx = composables.WithDB(ctx, db)
	ctx = composables.WithLogger(ctx, logrus.NewEntry(e.logger))
	return &session{ctx: ctx, app: app, close: closeDB}, nil
}

// emit writes v as JSON to path, or to stdout when path is empty.
func (e *cliEnv) emit(path string, v any) error {
	if path == "" {
		return writeJSON(e.out, v)
	}
	return writeJSONFile(path, v)
}

func newRootCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "meridian-data",
		Short:         "Compliance data import, template, diff and seed tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(env.out)

	cmd.AddCommand(newImportCmd(env))
	cmd.AddCommand(newTemplateCmd(env))
	cmd.AddCommand(newDiffCmd(env))
	cmd.AddCommand(newSeedCmd(env))
	cmd.AddCommand(newMigrateCmd(env))
	return cmd
}

func Execute() {
	if err := newRootCmd(defaultEnv()).Execute(); err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}
