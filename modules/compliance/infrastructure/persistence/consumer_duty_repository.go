package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/meridian-grc/meridian/modules/compliance/domain"
	"github.com/meridian-grc/meridian/pkg/composables"
)

const (
	outcomeColumns = `id, code, name, rag_status`
	measureColumns = `id, outcome_id, measure_id, name, owner, summary, rag_status, updated_at`
	metricColumns  = `id, measure_id, metric, current_value, target_value, rag_status, updated_at`
)

type ConsumerDutyRepository struct{}

func NewConsumerDutyRepository() domain.ConsumerDutyRepository {
	return &ConsumerDutyRepository{}
}

func (r *ConsumerDutyRepository) ListOutcomes(ctx context.Context) ([]domain.ConsumerDutyOutcome, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	outcomes := []domain.ConsumerDutyOutcome{}
	err = sqlx.SelectContext(ctx, tx, &outcomes, `SELECT `+outcomeColumns+` FROM consumer_duty_outcomes ORDER BY code`)
	return outcomes, wrap(err, "list outcomes")
}

func (r *ConsumerDutyRepository) UpsertOutcome(ctx context.Context, o domain.ConsumerDutyOutcome) (domain.ConsumerDutyOutcome, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return domain.ConsumerDutyOutcome{}, err
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.RAGStatus == "" {
		o.RAGStatus = domain.RAGGood
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO consumer_duty_outcomes (`+outcomeColumns+`) VALUES (?, ?, ?, ?)
		ON CONFLICT (code) DO UPDATE SET name = excluded.name, rag_status = excluded.rag_status`),
		o.ID, o.Code, o.Name, o.RAGStatus,
	)
	if err != nil {
		return domain.ConsumerDutyOutcome{}, wrap(err, "upsert outcome")
	}
	var stored domain.ConsumerDutyOutcome
	err = sqlx.GetContext(ctx, tx, &stored, tx.Rebind(`SELECT `+outcomeColumns+` FROM consumer_duty_outcomes WHERE code = ?`), o.Code)
	return stored, wrap(err, "read outcome")
}

func (r *ConsumerDutyRepository) ListMeasures(ctx context.Context) ([]domain.ConsumerDutyMeasure, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	measures := []domain.ConsumerDutyMeasure{}
	err = sqlx.SelectContext(ctx, tx, &measures, `SELECT `+measureColumns+` FROM consumer_duty_measures ORDER BY outcome_id, measure_id`)
	return measures, wrap(err, "list measures")
}

func (r *ConsumerDutyRepository) UpsertMeasure(ctx context.Context, m domain.ConsumerDutyMeasure) (domain.ConsumerDutyMeasure, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return domain.ConsumerDutyMeasure{}, err
	}
	m.UpdatedAt = time.Now().UTC()
	if m.ID != uuid.Nil {
		res, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE consumer_duty_measures
			SET name = ?, owner = ?, summary = ?, rag_status = ?, updated_at = ?
			WHERE id = ?`),
			m.Name, m.Owner, m.Summary, m.RAGStatus, m.UpdatedAt, m.ID,
		)
		if err := expectRow(res, err, "update measure"); err != nil {
			return domain.ConsumerDutyMeasure{}, err
		}
		var stored domain.ConsumerDutyMeasure
		err = sqlx.GetContext(ctx, tx, &stored, tx.Rebind(`SELECT `+measureColumns+` FROM consumer_duty_measures WHERE id = ?`), m.ID)
		return stored, wrap(err, "read measure")
	}
	m.ID = uuid.New()
	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO consumer_duty_measures (`+measureColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (outcome_id, measure_id) DO UPDATE SET
			name = excluded.name,
			owner = excluded.owner,
			summary = excluded.summary,
			rag_status = excluded.rag_status,
			updated_at = excluded.updated_at`),
		m.ID, m.OutcomeID, m.MeasureID, m.Name, m.Owner, m.Summary, m.RAGStatus, m.UpdatedAt,
	)
	if err != nil {
		return domain.ConsumerDutyMeasure{}, wrap(err, "upsert measure")
	}
	var stored domain.ConsumerDutyMeasure
	err = sqlx.GetContext(ctx, tx, &stored, tx.Rebind(`
		SELECT `+measureColumns+` FROM consumer_duty_measures WHERE outcome_id = ? AND measure_id = ?`),
		m.OutcomeID, m.MeasureID,
	)
	return stored, wrap(err, "read measure")
}

func (r *ConsumerDutyRepository) ListMetrics(ctx context.Context) ([]domain.ConsumerDutyMetric, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	metrics := []domain.ConsumerDutyMetric{}
	err = sqlx.SelectContext(ctx, tx, &metrics, `SELECT `+metricColumns+` FROM consumer_duty_metrics ORDER BY measure_id, metric`)
	return metrics, wrap(err, "list metrics")
}

func (r *ConsumerDutyRepository) UpsertMetric(ctx context.Context, m domain.ConsumerDutyMetric) (domain.ConsumerDutyMetric, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return domain.ConsumerDutyMetric{}, err
	}
	m.UpdatedAt = time.Now().UTC()
	if m.ID != uuid.Nil {
		res, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE consumer_duty_metrics
			SET current_value = ?, target_value = ?, rag_status = ?, updated_at = ?
			WHERE id = ?`),
			m.CurrentValue, m.TargetValue, m.RAGStatus, m.UpdatedAt, m.ID,
		)
		if err := expectRow(res, err, "update metric"); err != nil {
			return domain.ConsumerDutyMetric{}, err
		}
		var stored domain.ConsumerDutyMetric
		err = sqlx.GetContext(ctx, tx, &stored, tx.Rebind(`SELECT `+metricColumns+` FROM consumer_duty_metrics WHERE id = ?`), m.ID)
		return stored, wrap(err, "read metric")
	}
	m.ID = uuid.New()
	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO consumer_duty_metrics (`+metricColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (measure_id, metric) DO UPDATE SET
			current_value = excluded.current_value,
			target_value = excluded.target_value,
			rag_status = excluded.rag_status,
			updated_at = excluded.updated_at`),
		m.ID, m.MeasureID, m.Metric, m.CurrentValue, m.TargetValue, m.RAGStatus, m.UpdatedAt,
	)
	if err != nil {
		return domain.ConsumerDutyMetric{}, wrap(err, "upsert metric")
	}
	var stored domain.ConsumerDutyMetric
	err = sqlx.GetContext(ctx, tx, &stored, tx.Rebind(`
		SELECT `+metricColumns+` FROM consumer_duty_metrics WHERE measure_id = ? AND metric = ?`),
		m.MeasureID, m.Metric,
	)
	return stored, wrap(err, "read metric")
}
