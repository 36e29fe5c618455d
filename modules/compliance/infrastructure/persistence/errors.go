package persistence

import (
	"database/sql"
	stderrors "errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"github.com/meridian-grc/meridian/modules/compliance/domain"
)

// IsUniqueViolation reports whether err came from a unique constraint on
// either supported driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// wrap annotates driver errors, translating missing rows and unique
// violations into domain sentinels.
func wrap(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, sql.ErrNoRows):
		return errors.Wrap(domain.ErrNotFound, msg)
	case IsUniqueViolation(err):
		return errors.Wrap(stderrors.Join(domain.ErrDuplicate, err), msg)
	default:
		return errors.Wrap(err, msg)
	}
}

func isNotFound(err error) bool {
	return stderrors.Is(err, domain.ErrNotFound)
}

// expectRow wraps an Exec outcome, reporting ErrNotFound when no row changed.
func expectRow(res sql.Result, err error, msg string) error {
	if err != nil {
		return wrap(err, msg)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap(err, msg)
	}
	if n == 0 {
		return errors.Wrap(domain.ErrNotFound, msg)
	}
	return nil
}
