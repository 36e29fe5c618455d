package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-grc/meridian/modules/compliance/domain"
	"github.com/meridian-grc/meridian/modules/compliance/importer"
	"github.com/meridian-grc/meridian/pkg/composables"
	"github.com/meridian-grc/meridian/pkg/refnum"
)

func seedUser(t *testing.T, ctx context.Context, email string) domain.User {
	t.Helper()
	u, err := NewUserRepository().Upsert(ctx, domain.User{Email: email, Name: email})
	require.NoError(t, err)
	return u
}

func seedArea(t *testing.T, ctx context.Context, name string, order int) domain.BusinessArea {
	t.Helper()
	a, err := NewBusinessAreaRepository().Create(ctx, domain.BusinessArea{Name: name, SortOrder: order})
	require.NoError(t, err)
	return a
}

func seedControl(t *testing.T, ctx context.Context, ref string) domain.Control {
	t.Helper()
	owner := seedUser(t, ctx, ref+"@example.com")
	area := seedArea(t, ctx, "Area "+ref, 1)
	c, err := NewControlRepository().Create(ctx, domain.Control{
		Reference:      ref,
		Name:           "Control " + ref,
		BusinessAreaID: area.ID,
		OwnerID:        owner.ID,
		Outcome:        "PRICE_AND_VALUE",
		Frequency:      "MONTHLY",
		Sourcing:       domain.SourcingInternal,
	})
	require.NoError(t, err)
	return c
}

func TestMigrate_Idempotent(t *testing.T) {
	ctx, db := NewTestContext(t)
	require.NoError(t, Migrate(ctx, db, nil))

	version, err := MigrationVersion(ctx, db)
	require.NoError(t, err)
	assert.EqualValues(t, 1, version)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "")
	require.Error(t, err)
}

func TestUserRepository_UpsertByEmail(t *testing.T) {
	ctx, _ := NewTestContext(t)
	repo := NewUserRepository()

	first, err := repo.Upsert(ctx, domain.User{Email: "Owner@Example.com", Name: "Owner"})
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", first.Email)

	second, err := repo.Upsert(ctx, domain.User{Email: "owner@example.com", Name: "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	users, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Renamed", users[0].Name)
}

func TestBusinessAreaRepository(t *testing.T) {
	ctx, _ := NewTestContext(t)
	repo := NewBusinessAreaRepository()

	n, err := repo.MaxSortOrder(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	seedArea(t, ctx, "Customer Operations", 3)
	seedArea(t, ctx, "Finance", 1)

	n, err = repo.MaxSortOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := repo.GetByName(ctx, "  customer operations ")
	require.NoError(t, err)
	assert.Equal(t, "Customer Operations", got.Name)

	_, err = repo.GetByName(ctx, "Nowhere")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.Create(ctx, domain.BusinessArea{Name: "FINANCE", SortOrder: 4})
	require.ErrorIs(t, err, domain.ErrDuplicate)
	assert.True(t, IsUniqueViolation(err))

	areas, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, areas, 2)
	assert.Equal(t, "Finance", areas[0].Name)
	assert.False(t, areas[0].CreatedAt.IsZero())
}

func TestControlRepository_CreateUpdate(t *testing.T) {
	ctx, _ := NewTestContext(t)
	repo := NewControlRepository()
	c := seedControl(t, ctx, "CTRL-001")

	_, err := repo.Create(ctx, domain.Control{
		Reference: "CTRL-001", Name: "dup", BusinessAreaID: c.BusinessAreaID, OwnerID: c.OwnerID,
		Outcome: "PRICE_AND_VALUE", Frequency: "MONTHLY", Sourcing: domain.SourcingInternal,
	})
	require.ErrorIs(t, err, domain.ErrDuplicate)

	c.Name = "Renamed"
	c.StandingComments = "Reviewed"
	updated, err := repo.Update(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "Reviewed", updated.StandingComments)
	assert.Equal(t, "CTRL-001", updated.Reference)

	_, err = repo.Update(ctx, domain.Control{ID: uuid.New()})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestControlRepository_ScheduleAndResults(t *testing.T) {
	ctx, _ := NewTestContext(t)
	repo := NewControlRepository()
	c := seedControl(t, ctx, "CTRL-001")
	tester := seedUser(t, ctx, "tester@example.com")

	_, err := repo.ScheduleForControl(ctx, c.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	s, err := repo.SaveSchedule(ctx, domain.TestingSchedule{
		ControlID: c.ID, Frequency: "QUARTERLY", TesterID: tester.ID, Summary: "Sample ten files",
	})
	require.NoError(t, err)

	again, err := repo.SaveSchedule(ctx, domain.TestingSchedule{
		ControlID: c.ID, Frequency: "MONTHLY", TesterID: tester.ID, Summary: "Sample five files",
	})
	require.NoError(t, err)
	assert.Equal(t, s.ID, again.ID)

	stored, err := repo.ScheduleForControl(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "MONTHLY", stored.Frequency)

	_, err = repo.UpsertResult(ctx, domain.TestResult{ScheduleID: s.ID, Year: 2025, Month: 2, Result: "FAIL", Notes: "Gap", IsBackdated: true})
	require.NoError(t, err)
	r, err := repo.UpsertResult(ctx, domain.TestResult{ScheduleID: s.ID, Year: 2025, Month: 2, Result: "PASS"})
	require.NoError(t, err)
	assert.Equal(t, "PASS", r.Result)
	assert.Empty(t, r.Notes)
	assert.False(t, r.IsBackdated)
	_, err = repo.UpsertResult(ctx, domain.TestResult{ScheduleID: s.ID, Year: 2025, Month: 1, Result: "PARTIALLY", Notes: "n", IsBackdated: true})
	require.NoError(t, err)

	results, err := repo.ListResults(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Month)
	assert.True(t, results[0].IsBackdated)
	assert.Equal(t, 2, results[1].Month)
}

func TestRiskRepository(t *testing.T) {
	ctx, _ := NewTestContext(t)
	repo := NewRiskRepository()
	owner := seedUser(t, ctx, "owner@example.com")

	r, err := repo.Create(ctx, domain.Risk{
		Reference: "RISK-001", Name: "Pricing", Category: "CONDUCT", OwnerID: owner.ID,
		InherentLikelihood: 4, InherentImpact: 4, ResidualLikelihood: 2, ResidualImpact: 3,
		Direction: "STABLE",
	})
	require.NoError(t, err)

	r.ResidualImpact = 2
	updated, err := repo.Update(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, 4, updated.ResidualScore())

	risks, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, risks, 1)
	assert.Equal(t, 16, risks[0].InherentScore())
}

func TestConsumerDutyRepository(t *testing.T) {
	ctx, _ := NewTestContext(t)
	repo := NewConsumerDutyRepository()

	o, err := repo.UpsertOutcome(ctx, domain.ConsumerDutyOutcome{Code: "PV", Name: "Price and Value"})
	require.NoError(t, err)
	assert.Equal(t, domain.RAGGood, o.RAGStatus)
	again, err := repo.UpsertOutcome(ctx, domain.ConsumerDutyOutcome{Code: "PV", Name: "Price & Value", RAGStatus: domain.RAGWarning})
	require.NoError(t, err)
	assert.Equal(t, o.ID, again.ID)
	assert.Equal(t, "Price & Value", again.Name)

	m, err := repo.UpsertMeasure(ctx, domain.ConsumerDutyMeasure{OutcomeID: o.ID, MeasureID: "PV-01", Name: "Fair value", RAGStatus: domain.RAGGood})
	require.NoError(t, err)
	m2, err := repo.UpsertMeasure(ctx, domain.ConsumerDutyMeasure{OutcomeID: o.ID, MeasureID: "PV-01", Name: "Fair value review", RAGStatus: domain.RAGHarm})
	require.NoError(t, err)
	assert.Equal(t, m.ID, m2.ID)
	assert.Equal(t, domain.RAGHarm, m2.RAGStatus)

	m2.Owner = "Pricing team"
	m3, err := repo.UpsertMeasure(ctx, m2)
	require.NoError(t, err)
	assert.Equal(t, "Pricing team", m3.Owner)

	metric, err := repo.UpsertMetric(ctx, domain.ConsumerDutyMetric{
		MeasureID:    m.ID,
		Metric:       "Complaints upheld",
		CurrentValue: decimal.NewNullDecimal(decimal.RequireFromString("12.5")),
	})
	require.NoError(t, err)
	require.True(t, metric.CurrentValue.Valid)
	assert.True(t, metric.CurrentValue.Decimal.Equal(decimal.RequireFromString("12.5")))
	assert.False(t, metric.TargetValue.Valid)

	metric.TargetValue = decimal.NewNullDecimal(decimal.NewFromInt(10))
	metric, err = repo.UpsertMetric(ctx, metric)
	require.NoError(t, err)
	assert.True(t, metric.TargetValue.Decimal.Equal(decimal.NewFromInt(10)))

	metrics, err := repo.ListMetrics(ctx)
	require.NoError(t, err)
	assert.Len(t, metrics, 1)
}

func TestReportVersionRepository(t *testing.T) {
	ctx, _ := NewTestContext(t)
	repo := NewReportVersionRepository()

	n, err := repo.MaxVersion(ctx, "board-pack")
	require.NoError(t, err)
	assert.Zero(t, n)

	v1, err := repo.Create(ctx, domain.ReportVersion{ReportID: "board-pack", Version: 1, BlobKey: "reports/board-pack/v1.json", SizeBytes: 10})
	require.NoError(t, err)
	_, err = repo.Create(ctx, domain.ReportVersion{ReportID: "board-pack", Version: 2, BlobKey: "reports/board-pack/v2.json", SizeBytes: 12})
	require.NoError(t, err)
	_, err = repo.Create(ctx, domain.ReportVersion{ReportID: "board-pack", Version: 2, BlobKey: "x"})
	require.ErrorIs(t, err, domain.ErrDuplicate)

	versions, err := repo.List(ctx, "board-pack")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].Version)

	got, err := repo.GetByID(ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, "reports/board-pack/v1.json", got.BlobKey)

	_, err = repo.GetByID(ctx, uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReferenceStore(t *testing.T) {
	ctx, _ := NewTestContext(t)
	store := NewReferenceStore()
	seedControl(t, ctx, "CTRL-009")
	seedControl(t, ctx, "CTRL-010")
	seedControl(t, ctx, "CTRLX-500")

	refs, err := store.ListReferences(ctx, "control", "reference", "CTRL-")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"CTRL-009", "CTRL-010"}, refs)

	ok, err := store.ReferenceExists(ctx, "control", "reference", "CTRL-010")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = store.ListReferences(ctx, "control", "name; DROP TABLE controls", "CTRL-")
	require.Error(t, err)

	ref, err := refnum.New(store).Next(ctx, "CTRL-", "control")
	require.NoError(t, err)
	assert.Equal(t, "CTRL-011", ref)
}

func TestReferenceStore_InTransaction(t *testing.T) {
	ctx, _ := NewTestContext(t)
	store := NewReferenceStore()

	err := composables.InTx(ctx, func(txCtx context.Context) error {
		seedControl(t, txCtx, "CTRL-001")
		ref, err := refnum.New(store).Next(txCtx, "CTRL-", "control")
		require.NoError(t, err)
		assert.Equal(t, "CTRL-002", ref)
		return nil
	})
	require.NoError(t, err)
}

func TestReferenceLoader_Load(t *testing.T) {
	ctx, _ := NewTestContext(t)
	seedControl(t, ctx, "CTRL-001")
	_, err := NewConsumerDutyRepository().UpsertOutcome(ctx, domain.ConsumerDutyOutcome{Code: "PV", Name: "Price and Value"})
	require.NoError(t, err)

	set, err := NewReferenceLoader().Load(ctx, importer.KindControls)
	require.NoError(t, err)
	assert.Len(t, set.Users, 1)
	assert.Len(t, set.BusinessAreas, 1)
	assert.Len(t, set.Controls, 1)
	assert.Empty(t, set.Risks)
	assert.Empty(t, set.Outcomes)

	set, err = NewReferenceLoader().Load(ctx, importer.KindRisks)
	require.NoError(t, err)
	assert.Len(t, set.Users, 1)
	assert.Empty(t, set.Controls)
}
