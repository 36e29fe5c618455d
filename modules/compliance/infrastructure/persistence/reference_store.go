package persistence

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/meridian-grc/meridian/pkg/composables"
	"github.com/meridian-grc/meridian/pkg/refnum"
)

type referenceColumn struct {
	entity, field string
}

// referenceColumns whitelists the (entity, field) pairs that may be
// interpolated into SQL.
var referenceColumns = map[referenceColumn]string{
	{"control", "reference"}: "controls.reference",
	{"risk", "reference"}:    "risks.reference",
}

// ReferenceStore serves refnum lookups from the entity tables.
type ReferenceStore struct{}

var _ refnum.Store = (*ReferenceStore)(nil)

func NewReferenceStore() *ReferenceStore {
	return &ReferenceStore{}
}

func referenceTarget(entity, field string) (table, column string, err error) {
	qualified, ok := referenceColumns[referenceColumn{entity, field}]
	if !ok {
		return "", "", errors.Errorf("no reference column for %s.%s", entity, field)
	}
	table, column, _ = strings.Cut(qualified, ".")
	return table, column, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *ReferenceStore) ListReferences(ctx context.Context, entity, field, prefix string) ([]string, error) {
	table, column, err := referenceTarget(entity, field)
	if err != nil {
		return nil, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	refs := []string{}
	err = sqlx.SelectContext(ctx, tx, &refs, tx.Rebind(
		`SELECT `+column+` FROM `+table+` WHERE `+column+` LIKE ? ESCAPE '\'`,
	), likeEscaper.Replace(prefix)+"%")
	return refs, wrap(err, "list references")
}

func (s *ReferenceStore) ReferenceExists(ctx context.Context, entity, field, ref string) (bool, error) {
	table, column, err := referenceTarget(entity, field)
	if err != nil {
		return false, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	var n int
	err = sqlx.GetContext(ctx, tx, &n, tx.Rebind(`SELECT COUNT(*) FROM `+table+` WHERE `+column+` = ?`), ref)
	return n > 0, wrap(err, "check reference")
}
