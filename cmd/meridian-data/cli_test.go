package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-grc/meridian/modules/compliance/diff"
	"github.com/meridian-grc/meridian/modules/compliance/importer"
	"github.com/meridian-grc/meridian/modules/compliance/infrastructure/persistence"
	"github.com/meridian-grc/meridian/modules/compliance/services"
	"github.com/meridian-grc/meridian/pkg/blob"
	"github.com/meridian-grc/meridian/pkg/configuration"
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

const (
	snapshotV1 = `{"sections":[{"id":"s1","title":"Introduction","position":1,"content":{"body":"Complaints fell"}}],` +
		`"outcomes":[{"id":"o1","name":"Price and Value","ragStatus":"GOOD","measures":[{"id":"m1","name":"Fair value","ragStatus":"GOOD"}]}]}`
	snapshotV2 = `{"sections":[{"id":"s1","title":"Introduction","position":1,"content":{"body":"Complaints rose","owner":"ops"}}],` +
		`"outcomes":[{"id":"o1","name":"Price and Value","ragStatus":"WARNING","measures":[{"id":"m1","name":"Fair value","ragStatus":"HARM"}]}]}`
)

type testEnv struct {
	*cliEnv
	out  *bytes.Buffer
	db   *sqlx.DB
	conf *configuration.Configuration
	dir  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	db := persistence.NewTestDB(t)
	blobs := blob.NewMemory()

	te := &testEnv{
		out: &bytes.Buffer{},
		db:  db,
		conf: &configuration.Configuration{
			Import: configuration.ImportOptions{MaxBytes: 1 << 20, MaxRows: 100, ReferenceAttempts: 3},
		},
		dir: t.TempDir(),
	}
	te.cliEnv = &cliEnv{
		out:    te.out,
		logger: logger,
		config: func() (*configuration.Configuration, error) { return te.conf, nil },
		openDB: func(context.Context, *configuration.Configuration) (*sqlx.DB, func(), error) {
			return db, func() {}, nil
		},
		openBlobs: func(context.Context, *configuration.Configuration) (blob.Store, error) {
			return blobs, nil
		},
	}
	return te
}

func (te *testEnv) run(args ...string) error {
	te.out.Reset()
	cmd := newRootCmd(te.cliEnv)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func (te *testEnv) file(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(te.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (te *testEnv) seed(t *testing.T) {
	t.Helper()
	require.NoError(t, te.run("seed", "--file", te.file(t, "seed.yaml", seedYAML)))
}

func decodeOut[T any](t *testing.T, te *testEnv) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(te.out.Bytes(), &v), te.out.String())
	return v
}

type previewOutput struct {
	Valid    bool                `json:"valid"`
	RowCount int                 `json:"rowCount"`
	Errors   []importer.RowError `json:"errors"`
	Mapping  map[string]string   `json:"mapping"`
}

func TestExitCode(t *testing.T) {
	base := errors.New("boom")

	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, 1, exitCode(base))
	assert.Equal(t, exitUsage, exitCode(withCode(exitUsage, base)))
	assert.Equal(t, exitDBWrite, exitCode(fmt.Errorf("wrapped: %w", withCode(exitDBWrite, base))))
	assert.NoError(t, withCode(exitDB, nil))
}

func TestParseMappingFlags(t *testing.T) {
	m, err := parseMappingFlags([]string{"controlName = Title", "businessArea=Team"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"controlName": "Title", "businessArea": "Team"}, m)

	m, err = parseMappingFlags(nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	for _, bad := range []string{"controlName", "=Title", "controlName="} {
		_, err := parseMappingFlags([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestSeed_AppliesFile(t *testing.T) {
	te := newTestEnv(t)
	te.seed(t)

	res := decodeOut[services.SeedResult](t, te)
	assert.Equal(t, services.SeedResult{Users: 1, BusinessAreas: 1, Outcomes: 1, Measures: 1}, res)

	err := te.run("seed", "--file", te.file(t, "bad.yaml", "users:\n  - email: not-an-email\n"))
	assert.Equal(t, exitValidation, exitCode(err))

	err = te.run("seed")
	assert.Equal(t, exitUsage, exitCode(err))
}

func TestImport_DryRunThenApply(t *testing.T) {
	te := newTestEnv(t)
	te.seed(t)
	path := te.file(t, "controls.csv", controlsCSV)

	require.NoError(t, te.run("import", "controls", "--file", path))
	preview := decodeOut[previewOutput](t, te)
	assert.True(t, preview.Valid)
	assert.Equal(t, 1, preview.RowCount)
	assert.Equal(t, "Control Name", preview.Mapping["controlName"])

	var count int
	require.NoError(t, te.db.Get(&count, "SELECT COUNT(*) FROM controls"))
	assert.Zero(t, count, "dry run must not write")

	outPath := filepath.Join(te.dir, "out", "result.json")
	require.NoError(t, te.run("import", "controls", "--file", path, "--apply", "--output", outPath))
	assert.Empty(t, te.out.String())

	raw, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var res services.CommitResult
	require.NoError(t, json.Unmarshal(raw, &res))
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.AreasCreated)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "CTRL-001", res.Items[0].Reference)

	require.NoError(t, te.db.Get(&count, "SELECT COUNT(*) FROM controls"))
	assert.Equal(t, 1, count)
}

func TestImport_MappingOverride(t *testing.T) {
	te := newTestEnv(t)
	te.seed(t)
	csv := strings.Replace(controlsCSV, "Control Name", "Title", 1)
	path := te.file(t, "controls.csv", csv)

	require.NoError(t, te.run("import", "controls", "--file", path, "--map", "controlName=Title"))
	preview := decodeOut[previewOutput](t, te)
	assert.True(t, preview.Valid)
	assert.Equal(t, "Title", preview.Mapping["controlName"])

	err := te.run("import", "controls", "--file", path, "--map", "controlName=Nope")
	assert.Equal(t, exitValidation, exitCode(err))
}

func TestImport_InvalidRowsExitWithValidation(t *testing.T) {
	te := newTestEnv(t)
	te.seed(t)
	path := te.file(t, "controls.csv", strings.Replace(controlsCSV, "owner@example.com", "nobody@example.com", 1))

	err := te.run("import", "controls", "--file", path, "--apply")
	require.Error(t, err)
	assert.Equal(t, exitValidation, exitCode(err))

	preview := decodeOut[previewOutput](t, te)
	assert.False(t, preview.Valid)
	require.NotEmpty(t, preview.Errors)

	var count int
	require.NoError(t, te.db.Get(&count, "SELECT COUNT(*) FROM controls"))
	assert.Zero(t, count)
}

func TestImport_UsageAndSizeErrors(t *testing.T) {
	te := newTestEnv(t)
	path := te.file(t, "controls.csv", controlsCSV)

	cases := map[string][]string{
		"unknown kind":  {"import", "widgets", "--file", path},
		"missing file":  {"import", "controls"},
		"absent file":   {"import", "controls", "--file", filepath.Join(te.dir, "nope.csv")},
		"bad map":       {"import", "controls", "--file", path, "--map", "controlName"},
		"too many args": {"import", "controls", "risks", "--file", path},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, exitUsage, exitCode(te.run(args...)))
		})
	}

	te.conf.Import.MaxBytes = 16
	assert.Equal(t, exitValidation, exitCode(te.run("import", "controls", "--file", path)))
}

func TestTemplate(t *testing.T) {
	te := newTestEnv(t)

	require.NoError(t, te.run("template", "controls"))
	assert.True(t, strings.HasPrefix(te.out.String(), "Control Name,"), te.out.String())

	assert.Equal(t, exitUsage, exitCode(te.run("template", "mi", "--format", "xlsx")))
	assert.Equal(t, exitUsage, exitCode(te.run("template", "mi", "--format", "pdf")))

	out := filepath.Join(te.dir, "mi.xlsx")
	require.NoError(t, te.run("template", "mi", "--format", "xlsx", "--out", out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	table, err := importer.ReadWorkbook(data)
	require.NoError(t, err)
	require.NotEmpty(t, table.Header)
	assert.Equal(t, "Measure ID", table.Header[0])
}

func TestDiff_Files(t *testing.T) {
	te := newTestEnv(t)
	base := te.file(t, "v1.json", snapshotV1)
	compare := te.file(t, "v2.json", snapshotV2)

	require.NoError(t, te.run("diff", "--base", base, "--compare", compare))
	res := decodeOut[diff.Result](t, te)
	assert.Equal(t, diff.Summary{SectionsModified: 1, MeasuresUpdated: 1, RAGChanges: 2}, res.Summary)
	require.Len(t, res.SectionDiffs, 1)
	assert.Nil(t, res.SectionDiffs[0].Patch)

	require.NoError(t, te.run("diff", "--base", base, "--compare", compare, "--patch"))
	res = decodeOut[diff.Result](t, te)
	assert.NotEmpty(t, res.SectionDiffs[0].Patch)

	assert.Equal(t, exitUsage, exitCode(te.run("diff", "--base", base)))
	assert.Equal(t, exitUsage, exitCode(te.run("diff", "--base", base, "--compare", filepath.Join(te.dir, "missing.json"))))
	broken := te.file(t, "broken.json", `{"sections":`)
	assert.Equal(t, exitValidation, exitCode(te.run("diff", "--base", base, "--compare", broken)))
}

func TestDiff_PublishedVersions(t *testing.T) {
	te := newTestEnv(t)
	sess, err := te.connect(context.Background(), te.conf)
	require.NoError(t, err)
	svc := sess.app.Service(services.ReportVersionService{}).(*services.ReportVersionService)

	v1, err := svc.Publish(sess.ctx, services.PublishInput{ReportID: "annual", Snapshot: json.RawMessage(snapshotV1)})
	require.NoError(t, err)
	v2, err := svc.Publish(sess.ctx, services.PublishInput{ReportID: "annual", Snapshot: json.RawMessage(snapshotV2)})
	require.NoError(t, err)

	require.NoError(t, te.run("diff", "--base", v1.ID.String(), "--compare", v2.ID.String(), "--report", "annual"))
	cmp := decodeOut[services.VersionComparison](t, te)
	assert.Equal(t, 1, cmp.Base.Version)
	assert.Equal(t, 2, cmp.Compare.Version)
	assert.Equal(t, 2, cmp.Summary.RAGChanges)

	err = te.run("diff", "--base", v1.ID.String(), "--compare", v2.ID.String(), "--report", "other")
	assert.Equal(t, exitValidation, exitCode(err))

	err = te.run("diff", "--base", v1.ID.String(), "--compare", uuid.NewString())
	assert.Equal(t, exitValidation, exitCode(err))
}

func TestMigrate(t *testing.T) {
	te := newTestEnv(t)

	require.NoError(t, te.run("migrate", "up"))
	out := decodeOut[map[string]int64](t, te)
	assert.Positive(t, out["version"])

	require.NoError(t, te.run("migrate", "status"))
	assert.Equal(t, exitUsage, exitCode(te.run("migrate", "down")))
	assert.Equal(t, exitUsage, exitCode(te.run("migrate")))
}
