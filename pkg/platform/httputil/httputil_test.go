package httputil_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "amanah/pkg/domain-errors"
	"amanah/pkg/platform/httputil"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	httputil.WriteJSON(rec, http.StatusCreated, map[string]string{"hello": "world"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "world", body["hello"])
}

func TestWriteError(t *testing.T) {
	t.Run("domain error surfaces code and message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		httputil.WriteError(rec, dErrors.New(dErrors.CodeNotFound, "escrow account ESC-2025-000001 not found"))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "not_found", body["error"])
		assert.Contains(t, body["message"], "ESC-2025-000001")
	})

	t.Run("internal details never leak", func(t *testing.T) {
		rec := httptest.NewRecorder()
		httputil.WriteError(rec, errors.New("pq: connection refused at 10.0.0.5"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "internal", body["error"])
		assert.Equal(t, "internal error", body["message"])
	})
}
