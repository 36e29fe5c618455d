package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

type UserRepository interface {
	List(ctx context.Context) ([]User, error)
	Upsert(ctx context.Context, u User) (User, error)
}

type BusinessAreaRepository interface {
	List(ctx context.Context) ([]BusinessArea, error)
	GetByName(ctx context.Context, name string) (BusinessArea, error)
	MaxSortOrder(ctx context.Context) (int, error)
	// Create returns ErrDuplicate when an area with the same name (ignoring
	// case) already exists.
	Create(ctx context.Context, a BusinessArea) (BusinessArea, error)
}

type ControlRepository interface {
	List(ctx context.Context) ([]Control, error)
	GetByID(ctx context.Context, id uuid.UUID) (Control, error)
	Create(ctx context.Context, c Control) (Control, error)
	Update(ctx context.Context, c Control) (Control, error)
	ScheduleForControl(ctx context.Context, controlID uuid.UUID) (TestingSchedule, error)
	SaveSchedule(ctx context.Context, s TestingSchedule) (TestingSchedule, error)
	UpsertResult(ctx context.Context, r TestResult) (TestResult, error)
	ListResults(ctx context.Context, scheduleID uuid.UUID) ([]TestResult, error)
}

type RiskRepository interface {
	List(ctx context.Context) ([]Risk, error)
	GetByID(ctx context.Context, id uuid.UUID) (Risk, error)
	Create(ctx context.Context, r Risk) (Risk, error)
	Update(ctx context.Context, r Risk) (Risk, error)
}

type ConsumerDutyRepository interface {
	ListOutcomes(ctx context.Context) ([]ConsumerDutyOutcome, error)
	UpsertOutcome(ctx context.Context, o ConsumerDutyOutcome) (ConsumerDutyOutcome, error)
	ListMeasures(ctx context.Context) ([]ConsumerDutyMeasure, error)
	// UpsertMeasure updates by ID when set, otherwise upserts on
	// (OutcomeID, MeasureID).
	UpsertMeasure(ctx context.Context, m ConsumerDutyMeasure) (ConsumerDutyMeasure, error)
	ListMetrics(ctx context.Context) ([]ConsumerDutyMetric, error)
	// UpsertMetric updates by ID when set, otherwise upserts on
	// (MeasureID, Metric).
	UpsertMetric(ctx context.Context, m ConsumerDutyMetric) (ConsumerDutyMetric, error)
}

type ReportVersionRepository interface {
	List(ctx context.Context, reportID string) ([]ReportVersion, error)
	GetByID(ctx context.Context, id uuid.UUID) (ReportVersion, error)
	MaxVersion(ctx context.Context, reportID string) (int, error)
	// Create returns ErrDuplicate when (ReportID, Version) is taken.
	Create(ctx context.Context, v ReportVersion) (ReportVersion, error)
}
