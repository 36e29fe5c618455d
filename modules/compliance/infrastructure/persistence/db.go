// Package persistence stores compliance entities with sqlx over Postgres
// (pgx) or an embedded SQLite database.
package persistence

import (
	"context"
	"embed"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/meridian-grc/meridian/pkg/configuration"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	migrationsDir = "migrations"
)

//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// sqlDriver maps a configured driver to the database/sql driver name.
func sqlDriver(driver string) (string, error) {
	switch driver {
	case DriverPostgres, "pgx":
		return "pgx", nil
	case DriverSQLite:
		return DriverSQLite, nil
	default:
		return "", errors.Errorf("unsupported database driver %q", driver)
	}
}

func gooseDialect(db *sqlx.DB) goose.Dialect {
	if db.DriverName() == DriverSQLite {
		return goose.DialectSQLite3
	}
	return goose.DialectPostgres
}

// Open connects to the database. SQLite connections are limited to one so
// that in-memory databases are shared by every query.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	name, err := sqlDriver(driver)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(name, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if name == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	return db, nil
}

// OpenConfigured opens the database described by opts.
func OpenConfigured(ctx context.Context, opts configuration.DatabaseOptions) (*sqlx.DB, error) {
	return Open(ctx, opts.Driver, opts.ConnectionString())
}

func withGoose(db *sqlx.DB, logger logrus.FieldLogger, fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)
	if logger != nil {
		goose.SetLogger(gooseLogger{logger})
	} else {
		goose.SetLogger(goose.NopLogger())
	}
	if err := goose.SetDialect(string(gooseDialect(db))); err != nil {
		return errors.Wrap(err, "set migration dialect")
	}
	return fn()
}

// Migrate applies every pending embedded migration.
func Migrate(ctx context.Context, db *sqlx.DB, logger logrus.FieldLogger) error {
	return withGoose(db, logger, func() error {
		return errors.Wrap(goose.UpContext(ctx, db.DB, migrationsDir), "apply migrations")
	})
}

// MigrationStatus logs the applied state of every embedded migration.
func MigrationStatus(ctx context.Context, db *sqlx.DB, logger logrus.FieldLogger) error {
	return withGoose(db, logger, func() error {
		return errors.Wrap(goose.StatusContext(ctx, db.DB, migrationsDir), "migration status")
	})
}

// MigrationVersion returns the current schema version.
func MigrationVersion(ctx context.Context, db *sqlx.DB) (int64, error) {
	var version int64
	err := withGoose(db, nil, func() error {
		v, err := goose.GetDBVersionContext(ctx, db.DB)
		version = v
		return errors.Wrap(err, "read migration version")
	})
	return version, err
}

type gooseLogger struct {
	log logrus.FieldLogger
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Fatalf(format, v...)
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.log.Infof(format, v...)
}
