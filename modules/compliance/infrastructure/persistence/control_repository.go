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
	controlColumns = `id, reference, name, description, business_area_id, owner_id, consumer_duty_outcome,
		control_frequency, internal_or_third_party, control_type, standing_comments, created_at, updated_at`
	scheduleColumns = `id, control_id, testing_frequency, assigned_tester_id, summary_of_test, created_at, updated_at`
	resultColumns   = `id, schedule_id, period_year, period_month, result, notes, is_backdated, tested_at`
)

type ControlRepository struct{}

func NewControlRepository() domain.ControlRepository {
	return &ControlRepository{}
}

func (r *ControlRepository) List(ctx context.Context) ([]domain.Control, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	controls := []domain.Control{}
	err = sqlx.SelectContext(ctx, tx, &controls, `SELECT `+controlColumns+` FROM controls ORDER BY reference`)
	return controls, wrap(err, "list controls")
}

func (r *ControlRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Control, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return domain.Control{}, err
	}
	var c domain.Control
	err = sqlx.GetContext(ctx, tx, &c, tx.Rebind(`SELECT `+controlColumns+` FROM controls WHERE id = ?`), id)
	return c, wrap(err, "get control")
}

func (r *ControlRepository) Create(ctx context.Context, c domain.Control) (domain.Control, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return domain.Control{}, err
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO controls (`+controlColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		c.ID, c.Reference, c.Name, c.Description, c.BusinessAreaID, c.OwnerID, c.Outcome,
		c.Frequency, c.Sourcing, c.ControlType, c.StandingComments, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return domain.Control{}, wrap(err, "create control")
	}
	return c, nil
}

// Update rewrites every mutable column of an existing control. The
// reference and creation time are kept.
func (r *ControlRepository) Update(ctx context.Context, c domain.Control) (domain.Control, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return domain.Control{}, err
	}
	c.UpdatedAt = time.Now().UTC()
	res, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE controls SET
			name = ?, description = ?, business_area_id = ?, owner_id = ?, consumer_duty_outcome = ?,
			control_frequency = ?, internal_or_third_party = ?, control_type = ?, standing_comments = ?,
			updated_at = ?
		WHERE id = ?`),
		c.Name, c.Description, c.BusinessAreaID, c.OwnerID, c.Outcome,
		c.Frequency, c.Sourcing, c.ControlType, c.StandingComments,
		c.UpdatedAt, c.ID,
	)
	if err := expectRow(res, err, "update control"); err != nil {
		return domain.Control{}, err
	}
	return r.GetByID(ctx, c.ID)
}

func (r *ControlRepository) ScheduleForControl(ctx context.Context, controlID uuid.UUID) (domain.TestingSchedule, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return domain.TestingSchedule{}, err
	}
	var s domain.TestingSchedule
	err = sqlx.GetContext(ctx, tx, &s, tx.Rebind(`SELECT `+scheduleColumns+` FROM testing_schedules WHERE control_id = ?`), controlID)
	return s, wrap(err, "get testing schedule")
}

// SaveSchedule creates the control's schedule or updates the one it has.
func (r *ControlRepository) SaveSchedule(ctx context.Context, s domain.TestingSchedule) (domain.TestingSchedule, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return domain.TestingSchedule{}, err
	}
	now := time.Now().UTC()
	existing, err := r.ScheduleForControl(ctx, s.ControlID)
	switch {
	case err == nil:
		s.ID, s.CreatedAt, s.UpdatedAt = existing.ID, existing.CreatedAt, now
		_, err = tx.ExecContext(ctx, tx.Rebind(`
			UPDATE testing_schedules
			SET testing_frequency = ?, assigned_tester_id = ?, summary_of_test = ?, updated_at = ?
			WHERE id = ?`),
			s.Frequency, s.TesterID, s.Summary, s.UpdatedAt, s.ID,
		)
		return s, wrap(err, "update testing schedule")
	case !isNotFound(err):
		return domain.TestingSchedule{}, err
	}

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt, s.UpdatedAt = now, now
	_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO testing_schedules (`+scheduleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		s.ID, s.ControlID, s.Frequency, s.TesterID, s.Summary, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return domain.TestingSchedule{}, wrap(err, "create testing schedule")
	}
	return s, nil
}

// UpsertResult records the result for (schedule, year, month), replacing
// any earlier result for the same period.
func (r *ControlRepository) UpsertResult(ctx context.Context, res domain.TestResult) (domain.TestResult, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return domain.TestResult{}, err
	}
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	if res.TestedAt.IsZero() {
		res.TestedAt = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO test_results (`+resultColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (schedule_id, period_year, period_month) DO UPDATE SET
			result = excluded.result,
			notes = excluded.notes,
			is_backdated = excluded.is_backdated,
			tested_at = excluded.tested_at`),
		res.ID, res.ScheduleID, res.Year, res.Month, res.Result, res.Notes, res.IsBackdated, res.TestedAt,
	)
	if err != nil {
		return domain.TestResult{}, wrap(err, "upsert test result")
	}
	var stored domain.TestResult
	err = sqlx.GetContext(ctx, tx, &stored, tx.Rebind(`
		SELECT `+resultColumns+` FROM test_results
		WHERE schedule_id = ? AND period_year = ? AND period_month = ?`),
		res.ScheduleID, res.Year, res.Month,
	)
	return stored, wrap(err, "read test result")
}

func (r *ControlRepository) ListResults(ctx context.Context, scheduleID uuid.UUID) ([]domain.TestResult, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	results := []domain.TestResult{}
	err = sqlx.SelectContext(ctx, tx, &results, tx.Rebind(`
		SELECT `+resultColumns+` FROM test_results
		WHERE schedule_id = ?
		ORDER BY period_year, period_month`), scheduleID)
	return results, wrap(err, "list test results")
}
