package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteError_IncludesRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteError(rec, http.StatusBadRequest, "req-1", "IMPORT_INVALID_BODY", "invalid json body", map[string]any{"committed": 2}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "IMPORT_INVALID_BODY", env.Code)
	require.Equal(t, "invalid json body", env.Message)
	require.Equal(t, "req-1", env.Meta["request_id"])
	require.EqualValues(t, 2, env.Meta["committed"])
}

func TestWriteError_OmitsEmptyMeta(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteError(rec, http.StatusNotFound, "", "NOT_FOUND", "not found", nil))
	require.NotContains(t, rec.Body.String(), "meta")
}
