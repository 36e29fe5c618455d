package controllers_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-grc/meridian/modules/compliance"
	"github.com/meridian-grc/meridian/modules/compliance/diff"
	"github.com/meridian-grc/meridian/modules/compliance/domain"
	"github.com/meridian-grc/meridian/modules/compliance/importer"
	"github.com/meridian-grc/meridian/modules/compliance/presentation/controllers"
	"github.com/meridian-grc/meridian/modules/compliance/services"
	"github.com/meridian-grc/meridian/pkg/configuration"
	"github.com/meridian-grc/meridian/pkg/httpapi"
	"github.com/meridian-grc/meridian/pkg/itf"
)

const seedYAML = `
users:
  - email: owner@example.com
    name: Olive Owner
businessAreas:
  - name: Customer Operations
outcomes:
  - code: PRICE_AND_VALUE
    name: Price and Value
    measures:
      - measureId: PV-01
        name: Fair value assessment
`

const controlsCSV = "Control Name,Control Description,Business Area,Control Owner Email,Consumer Duty Outcome,Control Frequency\n" +
	"Test Control,Desc,NewArea,owner@example.com,PRODUCTS_AND_SERVICES,MONTHLY"

type previewResponse struct {
	Valid    bool                `json:"valid"`
	RowCount int                 `json:"rowCount"`
	Errors   []importer.RowError `json:"errors"`
	Mapping  map[string]string   `json:"mapping"`
	Controls []importer.Summary  `json:"controls"`
	Code     string              `json:"code"`
}

type commitResponse struct {
	Created      int                      `json:"created"`
	Updated      int                      `json:"updated"`
	AreasCreated int                      `json:"areasCreated"`
	Controls     []services.CreatedEntity `json:"controls"`
	Risks        []services.CreatedEntity `json:"risks"`
}

func newEnv(t *testing.T, maxBytes int64) *itf.TestEnvironment {
	t.Helper()
	env := itf.NewTestContext().
		WithModules(compliance.NewModule(&compliance.ModuleOptions{
			Import: configuration.ImportOptions{MaxBytes: maxBytes, MaxRows: 100},
		})).
		Build(t)

	seed, err := services.ParseSeed(strings.NewReader(seedYAML))
	require.NoError(t, err)
	_, err = itf.GetService[services.SeedService](env).Apply(env.Ctx, seed)
	require.NoError(t, err)
	return env
}

func TestImport_PreviewDoesNotWrite(t *testing.T) {
	env := newEnv(t, 1<<20)

	resp := env.Request(http.MethodPost, "/api/controls/import").
		JSON(t, map[string]any{"csv": controlsCSV, "preview": true}).
		Do(t)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	body := itf.Decode[previewResponse](t, resp)
	assert.True(t, body.Valid)
	assert.Equal(t, 1, body.RowCount)
	assert.Equal(t, "Control Name", body.Mapping["controlName"])
	require.Len(t, body.Controls, 1)
	assert.True(t, body.Controls[0].NewArea)
	assert.Equal(t, importer.ActionCreate, body.Controls[0].Action)

	var n int
	require.NoError(t, env.DB.Get(&n, "SELECT COUNT(*) FROM controls"))
	assert.Zero(t, n)
}

func TestImport_Commit(t *testing.T) {
	env := newEnv(t, 1<<20)

	resp := env.Request(http.MethodPost, "/api/controls/import").
		JSON(t, map[string]any{"csv": controlsCSV}).
		Do(t)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	body := itf.Decode[commitResponse](t, resp)
	assert.Equal(t, 1, body.Created)
	assert.Equal(t, 1, body.AreasCreated)
	require.Len(t, body.Controls, 1)
	assert.Equal(t, "CTRL-001", body.Controls[0].Reference)
	assert.NotEmpty(t, resp.Header().Get("X-Request-Id"))
}

func TestImport_InvalidCommitReturnsPreview(t *testing.T) {
	env := newEnv(t, 1<<20)
	before := testutil.ToFloat64(controllers.ComplianceRequests("controls.import", "4xx"))

	csv := strings.Replace(controlsCSV, "owner@example.com", "nobody@example.com", 1)
	resp := env.Request(http.MethodPost, "/api/controls/import").
		JSON(t, map[string]any{"csv": csv}).
		Do(t)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	body := itf.Decode[previewResponse](t, resp)
	assert.False(t, body.Valid)
	assert.Equal(t, services.CodeImportValidationFailed, body.Code)
	assert.Equal(t, []importer.RowError{{Row: 1, Field: "Control Owner Email", Message: "User not found: nobody@example.com"}}, body.Errors)
	assert.InDelta(t, before+1, testutil.ToFloat64(controllers.ComplianceRequests("controls.import", "4xx")), 0)
}

func TestImport_BodyErrors(t *testing.T) {
	env := newEnv(t, 1024)

	cases := []struct {
		name   string
		req    *itf.Request
		status int
		code   string
	}{
		{
			name:   "too large",
			req:    env.Request(http.MethodPost, "/api/risks/import").JSON(t, map[string]any{"csv": strings.Repeat("x", 2048)}),
			status: http.StatusRequestEntityTooLarge,
			code:   services.CodeImportTooLarge,
		},
		{
			name:   "malformed json",
			req:    env.Request(http.MethodPost, "/api/risks/import").Raw([]byte(`{"csv":`), "application/json"),
			status: http.StatusBadRequest,
			code:   services.CodeImportInvalidBody,
		},
		{
			name:   "missing csv",
			req:    env.Request(http.MethodPost, "/api/risks/import").JSON(t, map[string]any{"preview": true}),
			status: http.StatusBadRequest,
			code:   services.CodeImportInvalidBody,
		},
		{
			name:   "headerless",
			req:    env.Request(http.MethodPost, "/api/risks/import").JSON(t, map[string]any{"csv": "\n\n"}),
			status: http.StatusBadRequest,
			code:   services.CodeImportInvalidBody,
		},
		{
			name: "bad mapping",
			req: env.Request(http.MethodPost, "/api/controls/import").
				JSON(t, map[string]any{"csv": controlsCSV, "mapping": map[string]string{"controlName": "Missing"}}),
			status: http.StatusBadRequest,
			code:   services.CodeImportMappingInvalid,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := tc.req.Do(t)
			require.Equal(t, tc.status, resp.Code, resp.Body.String())
			envelope := itf.Decode[httpapi.ErrorEnvelope](t, resp)
			assert.Equal(t, tc.code, envelope.Code)
			assert.NotEmpty(t, envelope.Meta["request_id"])
		})
	}
}

func TestImport_MultipartUpload(t *testing.T) {
	env := newEnv(t, 1<<20)
	csv := strings.Replace(controlsCSV, "Control Name", "Title", 1)

	resp := env.Request(http.MethodPost, "/api/controls/import").
		File(t, "file", "controls.csv", []byte(csv), map[string]string{
			"preview": "true",
			"mapping": `{"controlName":"Title"}`,
		}).
		Do(t)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	body := itf.Decode[previewResponse](t, resp)
	assert.True(t, body.Valid, "%v", body.Errors)
	assert.Equal(t, "Title", body.Mapping["controlName"])
	require.Len(t, body.Controls, 1)
	assert.Equal(t, "Test Control", body.Controls[0].Name)

	resp = env.Request(http.MethodPost, "/api/controls/import").
		File(t, "upload", "controls.csv", []byte(csv), nil).
		Do(t)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestImport_Template(t *testing.T) {
	env := newEnv(t, 1<<20)

	resp := env.Request(http.MethodGet, "/api/imports/controls/template").Do(t)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header().Get("Content-Type"))
	assert.Contains(t, resp.Header().Get("Content-Disposition"), `filename="controls-template.csv"`)
	assert.True(t, strings.HasPrefix(resp.Body.String(), "Control Name,"))

	resp = env.Request(http.MethodGet, "/api/imports/mi/template?format=xlsx").Do(t)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, importer.MimeXLSX, resp.Header().Get("Content-Type"))
	table, err := importer.ReadWorkbook(resp.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Measure ID", table.Header[0])

	assert.Equal(t, http.StatusNotFound, env.Request(http.MethodGet, "/api/imports/widgets/template").Do(t).Code)
	assert.Equal(t, http.StatusBadRequest, env.Request(http.MethodGet, "/api/imports/risks/template?format=pdf").Do(t).Code)
}

const (
	snapshotV1 = `{"sections":[{"id":"s1","title":"Introduction","position":1,"content":{"body":"Complaints fell"}}],"outcomes":[]}`
	snapshotV2 = `{"sections":[{"id":"s1","title":"Introduction","position":1,"content":{"body":"Complaints rose"}},` +
		`{"id":"s2","title":"Outlook","position":2,"content":{}}],"outcomes":[]}`
)

func publish(t *testing.T, env *itf.TestEnvironment, reportID, snapshot string) domain.ReportVersion {
	t.Helper()
	resp := env.Request(http.MethodPost, "/api/reports/"+reportID+"/versions").
		Raw([]byte(`{"snapshot":`+snapshot+`,"publishedBy":"board@example.com"}`), "application/json").
		Do(t)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return itf.Decode[domain.ReportVersion](t, resp)
}

func TestReportVersions_PublishListCompare(t *testing.T) {
	env := newEnv(t, 1<<20)
	v1 := publish(t, env, "annual-2025", snapshotV1)
	v2 := publish(t, env, "annual-2025", snapshotV2)
	assert.Equal(t, 2, v2.Version)

	resp := env.Request(http.MethodGet, "/api/reports/annual-2025/versions").Do(t)
	require.Equal(t, http.StatusOK, resp.Code)
	list := itf.Decode[struct {
		Versions []domain.ReportVersion `json:"versions"`
	}](t, resp)
	require.Len(t, list.Versions, 2)
	assert.Equal(t, v2.ID, list.Versions[0].ID)

	resp = env.Request(http.MethodGet, "/api/reports/annual-2025/versions/compare?base="+v1.ID.String()+"&compare="+v2.ID.String()+"&patch=true").Do(t)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	cmp := itf.Decode[services.VersionComparison](t, resp)
	assert.Equal(t, v1.ID, cmp.Base.ID)
	assert.Equal(t, diff.Summary{SectionsAdded: 1, SectionsModified: 1}, cmp.Summary)
	require.Len(t, cmp.SectionDiffs, 2)
	assert.Equal(t, diff.KindModified, cmp.SectionDiffs[0].Kind)
	assert.NotEmpty(t, cmp.SectionDiffs[0].Patch)
	assert.Equal(t, diff.KindAdded, cmp.SectionDiffs[1].Kind)

	resp = env.Request(http.MethodGet, "/api/reports/annual-2025/versions/"+v1.ID.String()+"/snapshot").Do(t)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, snapshotV1, resp.Body.String())
}

func TestReportVersions_Errors(t *testing.T) {
	env := newEnv(t, 1<<20)
	v1 := publish(t, env, "annual-2025", snapshotV1)
	other := publish(t, env, "quarterly", snapshotV2)

	cases := []struct {
		name   string
		req    *itf.Request
		status int
		code   string
	}{
		{
			name:   "different reports",
			req:    env.Request(http.MethodGet, "/api/reports/annual-2025/versions/compare?base="+v1.ID.String()+"&compare="+other.ID.String()),
			status: http.StatusUnprocessableEntity,
			code:   services.CodeReportVersionMismatch,
		},
		{
			name:   "unknown version",
			req:    env.Request(http.MethodGet, "/api/reports/annual-2025/versions/compare?base="+v1.ID.String()+"&compare=6f1c1a52-4bb4-4a36-9c1e-3f1f0f5c2b11"),
			status: http.StatusNotFound,
			code:   services.CodeReportVersionNotFound,
		},
		{
			name:   "missing query",
			req:    env.Request(http.MethodGet, "/api/reports/annual-2025/versions/compare?base="+v1.ID.String()),
			status: http.StatusBadRequest,
			code:   "INVALID_QUERY",
		},
		{
			name:   "version of another report",
			req:    env.Request(http.MethodGet, "/api/reports/annual-2025/versions/"+other.ID.String()),
			status: http.StatusNotFound,
			code:   services.CodeReportVersionNotFound,
		},
		{
			name:   "snapshot not an object",
			req:    env.Request(http.MethodPost, "/api/reports/annual-2025/versions").Raw([]byte(`{"snapshot":[1,2]}`), "application/json"),
			status: http.StatusBadRequest,
			code:   services.CodeReportInvalidSnapshot,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := tc.req.Do(t)
			require.Equal(t, tc.status, resp.Code, resp.Body.String())
			assert.Equal(t, tc.code, itf.Decode[httpapi.ErrorEnvelope](t, resp).Code)
		})
	}
}
