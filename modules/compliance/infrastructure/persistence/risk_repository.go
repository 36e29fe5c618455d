package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/meridian-grc/meridian/modules/compliance/domain"
	"github.com/meridian-grc/meridian/pkg/composables"
)

const riskColumns = `id, reference, name, description, category, sub_category, owner_id,
	inherent_likelihood, inherent_impact, residual_likelihood, residual_impact,
	direction_of_travel, created_at, updated_at`

type RiskRepository struct{}

func NewRiskRepository() domain.RiskRepository {
	return &RiskRepository{}
}

func (r *RiskRepository) List(ctx context.Context) ([]domain.Risk, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	risks := []domain.Risk{}
	err = sqlx.SelectContext(ctx, tx, &risks, `SELECT `+riskColumns+` FROM risks ORDER BY reference`)
	return risks, wrap(err, "list risks")
}

func (r *RiskRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Risk, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return domain.Risk{}, err
	}
	var risk domain.Risk
	err = sqlx.GetContext(ctx, tx, &risk, tx.Rebind(`SELECT `+riskColumns+` FROM risks WHERE id = ?`), id)
	return risk, wrap(err, "get risk")
}

func (r *RiskRepository) Create(ctx context.Context, risk domain.Risk) (domain.Risk, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return domain.Risk{}, err
	}
	if risk.ID == uuid.Nil {
		risk.ID = uuid.New()
	}
	now := time.Now().UTC()
	risk.CreatedAt, risk.UpdatedAt = now, now
	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO risks (`+riskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		risk.ID, risk.Reference, risk.Name, risk.Description, risk.Category, risk.SubCategory, risk.OwnerID,
		risk.InherentLikelihood, risk.InherentImpact, risk.ResidualLikelihood, risk.ResidualImpact,
		risk.Direction, risk.CreatedAt, risk.UpdatedAt,
	)
	if err != nil {
		return domain.Risk{}, wrap(err, "create risk")
	}
	return risk, nil
}

func (r *RiskRepository) Update(ctx context.Context, risk domain.Risk) (domain.Risk, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return domain.Risk{}, err
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE risks SET
			name = ?, description = ?, category = ?, sub_category = ?, owner_id = ?,
			inherent_likelihood = ?, inherent_impact = ?, residual_likelihood = ?, residual_impact = ?,
			direction_of_travel = ?, updated_at = ?
		WHERE id = ?`),
		risk.Name, risk.Description, risk.Category, risk.SubCategory, risk.OwnerID,
		risk.InherentLikelihood, risk.InherentImpact, risk.ResidualLikelihood, risk.ResidualImpact,
		risk.Direction, time.Now().UTC(), risk.ID,
	)
	if err := expectRow(res, err, "update risk"); err != nil {
		return domain.Risk{}, err
	}
	return r.GetByID(ctx, risk.ID)
}
