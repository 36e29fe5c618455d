package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-grc/meridian/modules/compliance/domain"
	"github.com/meridian-grc/meridian/modules/compliance/importer"
	"github.com/meridian-grc/meridian/pkg/delimited"
)

const (
	controlsHeader = "Control Name,Control Description,Business Area,Control Owner Email,Consumer Duty Outcome,Control Frequency"
	triadHeader    = controlsHeader + ",Testing Frequency,Assigned Tester Email,Summary of Test"
)

func requireServiceError(t *testing.T, err error, status int, code string) *ServiceError {
	t.Helper()
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr), "expected *ServiceError, got %v", err)
	assert.Equal(t, status, svcErr.Status)
	assert.Equal(t, code, svcErr.Code)
	return svcErr
}

func TestImportControls_CreatesPendingAreaThenControl(t *testing.T) {
	f := newFixture(t)
	csv := controlsHeader + "\nTest Control,Desc,NewArea,owner@example.com,PRODUCTS_AND_SERVICES,MONTHLY"

	v := f.validate(t, importer.KindControls, csv)
	require.True(t, v.Valid, "%v", v.Errors)
	require.Len(t, v.Rows, 1)
	assert.True(t, v.Rows[0].NewArea)
	assert.Equal(t, importer.ActionCreate, v.Rows[0].Action)

	controls, err := f.repos.Controls.List(f.ctx)
	require.NoError(t, err)
	require.Empty(t, controls, "validation must not write")

	res, err := f.svc.Commit(f.ctx, v)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.AreasCreated)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "CTRL-001", res.Items[0].Reference)
	assert.Equal(t, ActionCreated, res.Items[0].Action)

	area, err := f.repos.Areas.GetByName(f.ctx, "NewArea")
	require.NoError(t, err)
	assert.Equal(t, 2, area.SortOrder)

	control, err := f.repos.Controls.GetByID(f.ctx, res.Items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, area.ID, control.BusinessAreaID)
	assert.Equal(t, "Test Control", control.Name)
	assert.Equal(t, domain.SourcingInternal, control.Sourcing)

	require.Len(t, f.imported, 1)
	assert.Equal(t, "controls", f.imported[0].Kind)
	assert.Equal(t, 1, f.imported[0].Created)
	assert.Equal(t, 1, f.imported[0].AreasCreated)
}

func TestImportControls_PendingAreaCreatedOnce(t *testing.T) {
	f := newFixture(t)
	res := f.commit(t, importer.KindControls, controlsHeader+"\n"+
		"First,Desc,Retail Lending,owner@example.com,PRICE_AND_VALUE,MONTHLY\n"+
		"Second,Desc,retail lending,owner@example.com,PRICE_AND_VALUE,WEEKLY\n"+
		"Third,Desc,Wholesale,owner@example.com,PRICE_AND_VALUE,ANNUAL")

	assert.Equal(t, 3, res.Created)
	assert.Equal(t, 2, res.AreasCreated)
	assert.Equal(t, []string{"CTRL-001", "CTRL-002", "CTRL-003"},
		[]string{res.Items[0].Reference, res.Items[1].Reference, res.Items[2].Reference})

	areas, err := f.repos.Areas.List(f.ctx)
	require.NoError(t, err)
	require.Len(t, areas, 3)
	assert.Equal(t, "Retail Lending", areas[1].Name)
	assert.Equal(t, 2, areas[1].SortOrder)
	assert.Equal(t, "Wholesale", areas[2].Name)
	assert.Equal(t, 3, areas[2].SortOrder)

	first, err := f.repos.Controls.GetByID(f.ctx, res.Items[0].ID)
	require.NoError(t, err)
	second, err := f.repos.Controls.GetByID(f.ctx, res.Items[1].ID)
	require.NoError(t, err)
	assert.Equal(t, first.BusinessAreaID, second.BusinessAreaID)
}

func TestImportControls_AreaCreatedSinceValidationIsReused(t *testing.T) {
	f := newFixture(t)
	v := f.validate(t, importer.KindControls, controlsHeader+"\nC,D,Late Area,owner@example.com,PRICE_AND_VALUE,MONTHLY")
	require.True(t, v.Valid)

	created, err := f.repos.Areas.Create(f.ctx, domain.BusinessArea{Name: "late area", SortOrder: 9})
	require.NoError(t, err)

	res, err := f.svc.Commit(f.ctx, v)
	require.NoError(t, err)
	assert.Zero(t, res.AreasCreated)
	control, err := f.repos.Controls.GetByID(f.ctx, res.Items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, control.BusinessAreaID)
}

func TestImportControls_ScheduleAndBackdatedResults(t *testing.T) {
	f := newFixture(t)
	res := f.commit(t, importer.KindControls, triadHeader+",2025-05 Result,2025-05 Notes,2025-07 Result\n"+
		"C,D,Customer Operations,owner@example.com,CONSUMER_SUPPORT,MONTHLY,QUARTERLY,tester@example.com,Sample ten files,FAIL,Missing evidence,PASS")
	require.Len(t, res.Items, 1)

	schedule, err := f.repos.Controls.ScheduleForControl(f.ctx, res.Items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "QUARTERLY", schedule.Frequency)
	assert.Equal(t, "Sample ten files", schedule.Summary)

	results, err := f.repos.Controls.ListResults(f.ctx, schedule.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 5, results[0].Month)
	assert.Equal(t, domain.ResultFail, results[0].Result)
	assert.Equal(t, "Missing evidence", results[0].Notes)
	assert.True(t, results[0].IsBackdated)
	assert.Equal(t, 7, results[1].Month)
	assert.False(t, results[1].IsBackdated)
}

func TestImportControls_UpdatesByReference(t *testing.T) {
	f := newFixture(t)
	created := f.commit(t, importer.KindControls, controlsHeader+"\nOriginal,D,Customer Operations,owner@example.com,PRICE_AND_VALUE,MONTHLY")
	require.Equal(t, "CTRL-001", created.Items[0].Reference)

	updated := f.commit(t, importer.KindControls, controlsHeader+",Control Reference\n"+
		"Renamed,D2,Customer Operations,owner@example.com,CONSUMER_SUPPORT,WEEKLY,ctrl-001")
	assert.Equal(t, 0, updated.Created)
	assert.Equal(t, 1, updated.Updated)
	assert.Equal(t, CreatedEntity{ID: created.Items[0].ID, Reference: "CTRL-001", Name: "Renamed", Action: ActionUpdated}, updated.Items[0])

	controls, err := f.repos.Controls.List(f.ctx)
	require.NoError(t, err)
	require.Len(t, controls, 1)
	assert.Equal(t, "WEEKLY", controls[0].Frequency)
}

func TestImportControls_InvalidCommitsNothing(t *testing.T) {
	f := newFixture(t)
	v := f.validate(t, importer.KindControls, controlsHeader+"\n"+
		"Good,D,Customer Operations,owner@example.com,PRICE_AND_VALUE,MONTHLY\n"+
		"Bad,D,Customer Operations,nobody@example.com,PRICE_AND_VALUE,MONTHLY")
	require.False(t, v.Valid)
	assert.Equal(t, 2, v.RowCount)

	_, err := f.svc.Commit(f.ctx, v)
	requireServiceError(t, err, http.StatusBadRequest, CodeImportValidationFailed)

	controls, err := f.repos.Controls.List(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, controls)
	assert.Empty(t, f.imported)
}

func TestImportValidate_RequestErrors(t *testing.T) {
	f := newFixture(t, WithMaxRows(1))
	two := controlsHeader + "\nA,D,Customer Operations,owner@example.com,PRICE_AND_VALUE,MONTHLY\nB,D,Customer Operations,owner@example.com,PRICE_AND_VALUE,MONTHLY"

	_, err := f.svc.Validate(f.ctx, ImportRequest{Kind: importer.KindControls, Table: delimited.ParseTable(two)})
	requireServiceError(t, err, http.StatusBadRequest, CodeImportInvalidBody)

	_, err = f.svc.Validate(f.ctx, ImportRequest{Kind: importer.KindControls, Table: delimited.ParseTable("")})
	requireServiceError(t, err, http.StatusBadRequest, CodeImportInvalidBody)

	_, err = f.svc.Validate(f.ctx, ImportRequest{Kind: "widgets", Table: delimited.ParseTable(two)})
	requireServiceError(t, err, http.StatusBadRequest, CodeImportInvalidBody)

	_, err = f.svc.Validate(f.ctx, ImportRequest{
		Kind:    importer.KindControls,
		Table:   delimited.ParseTable(controlsHeader + "\nA,D,Customer Operations,owner@example.com,PRICE_AND_VALUE,MONTHLY"),
		Mapping: map[string]string{"controlName": "Nope"},
	})
	svcErr := requireServiceError(t, err, http.StatusBadRequest, CodeImportMappingInvalid)
	assert.Equal(t, importer.MappingErrors{{Field: "controlName", Header: "Nope", Message: "Column not found: Nope"}}, svcErr.Meta["fields"])
}

func TestImportValidate_MaxRowsIgnoresBlankRows(t *testing.T) {
	f := newFixture(t, WithMaxRows(2))
	csv := controlsHeader + "\nA,D,Customer Operations,owner@example.com,PRICE_AND_VALUE,MONTHLY\n,,,,,\n\n" +
		"B,D,Customer Operations,owner@example.com,PRICE_AND_VALUE,MONTHLY"

	v := f.validate(t, importer.KindControls, csv)
	assert.True(t, v.Valid, "%v", v.Errors)
	assert.Equal(t, 2, v.RowCount)
}

func TestImportValidate_MappingOverride(t *testing.T) {
	f := newFixture(t)
	v, err := f.svc.Validate(f.ctx, ImportRequest{
		Kind: importer.KindControls,
		Table: delimited.ParseTable("Title,Control Description,Business Area,Control Owner Email,Consumer Duty Outcome,Control Frequency\n" +
			"Mapped,D,Customer Operations,owner@example.com,PRICE_AND_VALUE,MONTHLY"),
		Mapping: map[string]string{"controlName": "Title"},
	})
	require.NoError(t, err)
	require.True(t, v.Valid, "%v", v.Errors)
	assert.Equal(t, "Title", v.Mapping[importer.FieldControlName])
	assert.Equal(t, "Mapped", v.Rows[0].Name)
}

type failingControls struct {
	domain.ControlRepository
	calls  int
	failOn int
}

func (r *failingControls) Create(ctx context.Context, c domain.Control) (domain.Control, error) {
	r.calls++
	if r.calls == r.failOn {
		return domain.Control{}, errors.New("disk full")
	}
	return r.ControlRepository.Create(ctx, c)
}

func TestImportControls_FailingRowKeepsEarlierRows(t *testing.T) {
	f := newFixture(t)
	failing := &failingControls{ControlRepository: f.repos.Controls, failOn: 2}
	f.repos.Controls = failing
	svc := f.newService()

	table := delimited.ParseTable(controlsHeader + "\n" +
		"One,D,Customer Operations,owner@example.com,PRICE_AND_VALUE,MONTHLY\n" +
		"Two,D,Customer Operations,owner@example.com,PRICE_AND_VALUE,MONTHLY\n" +
		"Three,D,Customer Operations,owner@example.com,PRICE_AND_VALUE,MONTHLY")
	v, err := svc.Validate(f.ctx, ImportRequest{Kind: importer.KindControls, Table: table})
	require.NoError(t, err)
	require.True(t, v.Valid)

	res, err := svc.Commit(f.ctx, v)
	svcErr := requireServiceError(t, err, http.StatusInternalServerError, CodeImportCommitFailed)
	assert.Equal(t, 1, svcErr.Meta["committed"])
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Created)

	controls, err := f.repos.Controls.List(f.ctx)
	require.NoError(t, err)
	require.Len(t, controls, 1)
	assert.Equal(t, "One", controls[0].Name)
	assert.Empty(t, f.imported)
}

func TestImportRisks_CreateAndUpdate(t *testing.T) {
	f := newFixture(t)
	header := "Risk Name,Risk Description,Category,Owner Email,Inherent Likelihood,Inherent Impact,Residual Likelihood,Residual Impact"
	res := f.commit(t, importer.KindRisks, header+"\nMis-selling,Outside target market,CONDUCT,owner@example.com,4,4,2,3")
	require.Len(t, res.Items, 1)
	assert.Equal(t, "RISK-001", res.Items[0].Reference)

	res = f.commit(t, importer.KindRisks, header+",Risk Reference\nMis-selling,Updated,CONDUCT,owner@example.com,4,4,2,2,RISK-001")
	assert.Equal(t, 1, res.Updated)

	risks, err := f.repos.Risks.List(f.ctx)
	require.NoError(t, err)
	require.Len(t, risks, 1)
	assert.Equal(t, "Updated", risks[0].Description)
	assert.Equal(t, 4, risks[0].ResidualScore())
	assert.Equal(t, domain.DirectionStable, risks[0].Direction)
}

func TestImportMeasuresAndMetrics(t *testing.T) {
	f := newFixture(t)
	res := f.commit(t, importer.KindMeasures, "Outcome ID,Measure ID,Name,RAG Status\n"+
		"PRICE_AND_VALUE,PV-02,Renewal pricing,WARNING\n"+
		"Price and Value,pv-01,Fair value assessment refreshed,HARM")
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Updated)

	measures, err := f.repos.ConsumerDuty.ListMeasures(f.ctx)
	require.NoError(t, err)
	require.Len(t, measures, 2)
	byID := map[string]domain.ConsumerDutyMeasure{}
	for _, m := range measures {
		byID[m.MeasureID] = m
	}
	assert.Equal(t, domain.RAGHarm, byID["PV-01"].RAGStatus)
	assert.Equal(t, "Fair value assessment refreshed", byID["PV-01"].Name)
	assert.Equal(t, domain.RAGWarning, byID["PV-02"].RAGStatus)

	res = f.commit(t, importer.KindMetrics, "Measure ID,Metric,Current Value,Target Value,RAG Status\n"+
		"PV-01,Complaints upheld,12.5%,10%,WARNING")
	require.Len(t, res.Items, 1)
	assert.Equal(t, ActionCreated, res.Items[0].Action)

	res = f.commit(t, importer.KindMetrics, "Measure ID,Metric,Current Value\nPV-01,complaints upheld,9")
	assert.Equal(t, ActionUpdated, res.Items[0].Action)

	metrics, err := f.repos.ConsumerDuty.ListMetrics(f.ctx)
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, "Complaints upheld", metrics[0].Metric)
	assert.True(t, metrics[0].CurrentValue.Decimal.Equal(decimal.NewFromInt(9)))
	assert.Equal(t, byID["PV-01"].ID, metrics[0].MeasureID)
}
