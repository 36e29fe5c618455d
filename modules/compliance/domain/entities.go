package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const PendingPrefix = "pending:"

type User struct {
	ID    uuid.UUID `db:"id" json:"id"`
	Email string    `db:"email" json:"email"`
	Name  string    `db:"name" json:"name"`
}

type BusinessArea struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	SortOrder int       `db:"sort_order" json:"sortOrder"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// BusinessAreaRef points at an existing area, or names one that the
// committer will create.
type BusinessAreaRef struct {
	ID      uuid.UUID
	Name    string
	Pending bool
}

func (r BusinessAreaRef) String() string {
	if r.Pending {
		return PendingPrefix + r.Name
	}
	return r.ID.String()
}

func (r BusinessAreaRef) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// ParseBusinessAreaRef reads the form produced by String.
func ParseBusinessAreaRef(s string) (BusinessAreaRef, error) {
	if name, ok := strings.CutPrefix(s, PendingPrefix); ok {
		return BusinessAreaRef{Name: name, Pending: true}, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return BusinessAreaRef{}, err
	}
	return BusinessAreaRef{ID: id}, nil
}

type Control struct {
	ID               uuid.UUID `db:"id" json:"id"`
	Reference        string    `db:"reference" json:"reference"`
	Name             string    `db:"name" json:"name"`
	Description      string    `db:"description" json:"description"`
	BusinessAreaID   uuid.UUID `db:"business_area_id" json:"businessAreaId"`
	OwnerID          uuid.UUID `db:"owner_id" json:"ownerId"`
	Outcome          string    `db:"consumer_duty_outcome" json:"consumerDutyOutcome"`
	Frequency        string    `db:"control_frequency" json:"controlFrequency"`
	Sourcing         string    `db:"internal_or_third_party" json:"internalOrThirdParty"`
	ControlType      string    `db:"control_type" json:"controlType,omitempty"`
	StandingComments string    `db:"standing_comments" json:"standingComments,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`
}

type TestingSchedule struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ControlID uuid.UUID `db:"control_id" json:"controlId"`
	Frequency string    `db:"testing_frequency" json:"testingFrequency"`
	TesterID  uuid.UUID `db:"assigned_tester_id" json:"assignedTesterId"`
	Summary   string    `db:"summary_of_test" json:"summaryOfTest"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

type TestResult struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ScheduleID  uuid.UUID `db:"schedule_id" json:"scheduleId"`
	Year        int       `db:"period_year" json:"periodYear"`
	Month       int       `db:"period_month" json:"periodMonth"`
	Result      string    `db:"result" json:"result"`
	Notes       string    `db:"notes" json:"notes,omitempty"`
	IsBackdated bool      `db:"is_backdated" json:"isBackdated"`
	TestedAt    time.Time `db:"tested_at" json:"testedAt"`
}

// IsBackdated reports whether (year, month) precedes the calendar month of
// now in UTC.
func IsBackdated(year, month int, now time.Time) bool {
	now = now.UTC()
	if year != now.Year() {
		return year < now.Year()
	}
	return month < int(now.Month())
}

type Risk struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	Reference          string    `db:"reference" json:"reference"`
	Name               string    `db:"name" json:"name"`
	Description        string    `db:"description" json:"description"`
	Category           string    `db:"category" json:"category"`
	SubCategory        string    `db:"sub_category" json:"subCategory,omitempty"`
	OwnerID            uuid.UUID `db:"owner_id" json:"ownerId"`
	InherentLikelihood int       `db:"inherent_likelihood" json:"inherentLikelihood"`
	InherentImpact     int       `db:"inherent_impact" json:"inherentImpact"`
	ResidualLikelihood int       `db:"residual_likelihood" json:"residualLikelihood"`
	ResidualImpact     int       `db:"residual_impact" json:"residualImpact"`
	Direction          string    `db:"direction_of_travel" json:"directionOfTravel"`
	CreatedAt          time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time `db:"updated_at" json:"updatedAt"`
}

func (r Risk) InherentScore() int { return r.InherentLikelihood * r.InherentImpact }
func (r Risk) ResidualScore() int { return r.ResidualLikelihood * r.ResidualImpact }

type ConsumerDutyOutcome struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	RAGStatus string    `db:"rag_status" json:"ragStatus"`
}

type ConsumerDutyMeasure struct {
	ID        uuid.UUID `db:"id" json:"id"`
	OutcomeID uuid.UUID `db:"outcome_id" json:"outcomeId"`
	MeasureID string    `db:"measure_id" json:"measureId"`
	Name      string    `db:"name" json:"name"`
	Owner     string    `db:"owner" json:"owner,omitempty"`
	Summary   string    `db:"summary" json:"summary,omitempty"`
	RAGStatus string    `db:"rag_status" json:"ragStatus"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

type ConsumerDutyMetric struct {
	ID           uuid.UUID           `db:"id" json:"id"`
	MeasureID    uuid.UUID           `db:"measure_id" json:"measureId"`
	Metric       string              `db:"metric" json:"metric"`
	CurrentValue decimal.NullDecimal `db:"current_value" json:"currentValue"`
	TargetValue  decimal.NullDecimal `db:"target_value" json:"targetValue"`
	RAGStatus    string              `db:"rag_status" json:"ragStatus,omitempty"`
	UpdatedAt    time.Time           `db:"updated_at" json:"updatedAt"`
}

type ReportVersion struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ReportID    string    `db:"report_id" json:"reportId"`
	Version     int       `db:"version" json:"version"`
	BlobKey     string    `db:"blob_key" json:"blobKey"`
	SizeBytes   int64     `db:"size_bytes" json:"sizeBytes"`
	PublishedBy string    `db:"published_by" json:"publishedBy,omitempty"`
	Note        string    `db:"note" json:"note,omitempty"`
	PublishedAt time.Time `db:"published_at" json:"publishedAt"`
}
