package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/meridian-grc/meridian/modules/compliance/domain"
	"github.com/meridian-grc/meridian/pkg/composables"
)

const businessAreaColumns = `id, name, sort_order, created_at`

type BusinessAreaRepository struct{}

func NewBusinessAreaRepository() domain.BusinessAreaRepository {
	return &BusinessAreaRepository{}
}

func (r *BusinessAreaRepository) List(ctx context.Context) ([]domain.BusinessArea, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	areas := []domain.BusinessArea{}
	err = sqlx.SelectContext(ctx, tx, &areas, `SELECT `+businessAreaColumns+` FROM business_areas ORDER BY sort_order, name`)
	return areas, wrap(err, "list business areas")
}

func (r *BusinessAreaRepository) GetByName(ctx context.Context, name string) (domain.BusinessArea, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return domain.BusinessArea{}, err
	}
	var a domain.BusinessArea
	err = sqlx.GetContext(ctx, tx, &a, tx.Rebind(
		`SELECT `+businessAreaColumns+` FROM business_areas WHERE LOWER(name) = ?`,
	), strings.ToLower(strings.TrimSpace(name)))
	return a, wrap(err, "get business area by name")
}

func (r *BusinessAreaRepository) MaxSortOrder(ctx context.Context) (int, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	err = sqlx.GetContext(ctx, tx, &n, `SELECT COALESCE(MAX(sort_order), 0) FROM business_areas`)
	return n, wrap(err, "max business area sort order")
}

func (r *BusinessAreaRepository) Create(ctx context.Context, a domain.BusinessArea) (domain.BusinessArea, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return domain.BusinessArea{}, err
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.Name = strings.TrimSpace(a.Name)
	_, err = tx.ExecContext(ctx, tx.Rebind(
		`INSERT INTO business_areas (`+businessAreaColumns+`) VALUES (?, ?, ?, ?)`,
	), a.ID, a.Name, a.SortOrder, a.CreatedAt)
	if err != nil {
		return domain.BusinessArea{}, wrap(err, "create business area")
	}
	return a, nil
}
