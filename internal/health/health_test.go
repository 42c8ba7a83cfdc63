package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func get(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, Report) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var rep Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	return rec, rep
}

func TestHealthAllOK(t *testing.T) {
	r := NewReporter("telemetry-ingestor", quietLogger(), "")
	r.AddCheck("storage", func(ctx context.Context) error { return nil })
	r.AddCheck("mqtt", func(ctx context.Context) error { return nil })

	rec, rep := get(t, r.Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ok", rep.Status)
	assert.Equal(t, "telemetry-ingestor", rep.Service)
	assert.Equal(t, map[string]string{"storage": "ok", "mqtt": "ok"}, rep.Checks)
	assert.Nil(t, rep.System)
}

func TestHealthDegraded(t *testing.T) {
	r := NewReporter("home-api", quietLogger(), "")
	r.AddCheck("storage", func(ctx context.Context) error { return nil })
	r.AddCheck("valkey", func(ctx context.Context) error { return errors.New("dial tcp: connection refused") })

	rec, rep := get(t, r.Handler(), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", rep.Status)
	assert.Equal(t, "dial tcp: connection refused", rep.Checks["valkey"])
	assert.Equal(t, "ok", rep.Checks["storage"])
}

func TestHealthNoChecks(t *testing.T) {
	rep := NewReporter("svc", quietLogger(), "").Run(context.Background())
	assert.Equal(t, "ok", rep.Status)
	assert.Empty(t, rep.Checks)
}

func TestHealthSystemStats(t *testing.T) {
	r := NewReporter("svc", quietLogger(), "")
	r.collect = func(ctx context.Context) SystemStats {
		return SystemStats{CPULoad: 12.5, RAMTotalMB: 1024}
	}

	_, rep := get(t, r.Handler(), "/health?system=1")
	require.NotNil(t, rep.System)
	assert.Equal(t, 12.5, rep.System.CPULoad)
	assert.Equal(t, 1024.0, rep.System.RAMTotalMB)
}

func TestCollectStats(t *testing.T) {
	stats := CollectStats(context.Background(), quietLogger(), t.TempDir())
	assert.Greater(t, stats.RAMTotalMB, 0.0)
	assert.Greater(t, stats.DiskTotalGB, 0.0)
	assert.Greater(t, stats.ProcessMB, 0.0)
}
