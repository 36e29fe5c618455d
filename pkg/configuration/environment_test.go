package configuration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv_FallsBackToGoModRoot(t *testing.T) {
	tmp := t.TempDir()

	requireWriteFile(t, filepath.Join(tmp, "go.mod"), "module example.com/test\n\ngo 1.22\n")
	requireWriteFile(t, filepath.Join(tmp, ".env.local"), "MERIDIAN_TEST_ENV_LOAD=ok\n")

	sub := filepath.Join(tmp, "modules", "compliance")
	requireMkdirAll(t, sub)

	origWd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	require.NoError(t, os.Chdir(sub))

	_ = os.Unsetenv("MERIDIAN_TEST_ENV_LOAD")
	t.Cleanup(func() { _ = os.Unsetenv("MERIDIAN_TEST_ENV_LOAD") })

	n, err := LoadEnv([]string{".env", ".env.local"})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "ok", os.Getenv("MERIDIAN_TEST_ENV_LOAD"))
}

func TestConfiguration_Defaults(t *testing.T) {
	var c Configuration
	require.NoError(t, env.ParseWithOptions(&c, env.Options{Environment: map[string]string{}}))
	require.NoError(t, c.Validate())

	require.Equal(t, "sqlite", c.Database.Driver)
	require.Equal(t, "fs", c.Blob.Driver)
	require.Equal(t, 5000, c.Import.MaxRows)
	require.Equal(t, 5, c.Import.ReferenceAttempts)
	require.Equal(t, []string{"http://localhost:3000"}, c.CORS.AllowedOrigins)
}

func TestConfiguration_ValidateRejectsBadCombinations(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown db driver", env: map[string]string{"DB_DRIVER": "mysql"}},
		{name: "s3 without bucket", env: map[string]string{"BLOB_DRIVER": "s3"}},
		{name: "unknown blob driver", env: map[string]string{"BLOB_DRIVER": "gcs"}},
		{name: "zero max rows", env: map[string]string{"IMPORT_MAX_ROWS": "0"}},
		{name: "redis limiter without url", env: map[string]string{"RATE_LIMIT_STORAGE": "redis"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var c Configuration
			require.NoError(t, env.ParseWithOptions(&c, env.Options{Environment: tc.env}))
			require.Error(t, c.Validate())
		})
	}
}

func TestDatabaseOptions_ConnectionString(t *testing.T) {
	pg := DatabaseOptions{Driver: "postgres", Host: "db", Port: "5432", User: "u", Name: "n", Password: "p"}
	require.Equal(t, "host=db port=5432 user=u dbname=n password=p sslmode=disable", pg.ConnectionString())

	lite := DatabaseOptions{Driver: "sqlite", SQLitePath: "/tmp/x.db"}
	require.Equal(t, "/tmp/x.db", lite.ConnectionString())
}

func requireWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func requireMkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}

func TestParse_ReadsEnvironment(t *testing.T) {
	t.Setenv("IMPORT_MAX_ROWS", "42")
	t.Setenv("BLOB_DRIVER", "memory")

	c, err := Parse("meridian-test-missing.env")
	require.NoError(t, err)
	require.Equal(t, 42, c.Import.MaxRows)
	require.Equal(t, "memory", c.Blob.Driver)
	require.Nil(t, c.Logger())

	t.Setenv("DB_DRIVER", "mysql")
	_, err = Parse("meridian-test-missing.env")
	require.ErrorContains(t, err, "database configuration error")
}
