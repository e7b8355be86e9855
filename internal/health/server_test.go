package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeReady(t *testing.T, rec *httptest.ResponseRecorder) ReadyResponse {
	t.Helper()
	var resp ReadyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestReadyGatedUntilSetReady(t *testing.T) {
	s := NewServer(Config{ServiceName: "gridiron-edge"})

	rec := httptest.NewRecorder()
	s.handleReady(rec, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, 503, rec.Code)
	assert.Equal(t, "not_ready", decodeReady(t, rec).Checks["service"])

	s.SetReady(true)
	rec = httptest.NewRecorder()
	s.handleReady(rec, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "ok", decodeReady(t, rec).Status)
}

func TestReadyReportsFailingCheck(t *testing.T) {
	s := NewServer(Config{ServiceName: "gridiron-edge"})
	s.SetReady(true)
	s.AddCheck("database", func(ctx context.Context) error { return nil })
	s.AddCheck("archive", func(ctx context.Context) error { return errors.New("locked") })

	rec := httptest.NewRecorder()
	s.handleReady(rec, httptest.NewRequest("GET", "/ready", nil))

	assert.Equal(t, 503, rec.Code)
	resp := decodeReady(t, rec)
	assert.Equal(t, "not_ready", resp.Status)
	assert.Equal(t, "ok", resp.Checks["database"])
	assert.Contains(t, resp.Checks["archive"], "locked")
}

func TestHealthReportsUptimeAndVersion(t *testing.T) {
	s := NewServer(Config{ServiceName: "gridiron-edge", Version: "1.2.3"})

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, 200, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "1.2.3", resp.Version)
	assert.NotEmpty(t, resp.Uptime)
}
