package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRun(t *testing.T) {
	tests := []struct {
		name      string
		attempted int
		kept      int
		valid     bool
		status    string
		level     int
	}{
		{"all kept", 3, 3, true, "healthy", 2},
		{"empty envelope", 0, 0, true, "healthy", 2},
		{"some dropped", 3, 2, true, "degraded", 1},
		{"envelope failed", 0, 0, false, "unhealthy", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := FromRun("ingest", tt.attempted, tt.kept, tt.valid, "boom")
			assert.Equal(t, tt.status, s.Status)
			assert.Equal(t, tt.level, s.Level())
			require.NotNil(t, s.Metrics)
			assert.Equal(t, tt.kept, s.Metrics.RecordsKept)
		})
	}
}

func TestSanitizeErrorMessage(t *testing.T) {
	msg := sanitizeErrorMessage("Download of key failed: GET https://kms.local/keys/a?key_verifier=s3cret: 10.0.0.1 refused")
	assert.NotContains(t, msg, "s3cret")
	assert.NotContains(t, msg, "kms.local")
	assert.NotContains(t, msg, "10.0.0.1")
	assert.Contains(t, msg, "Download of key failed")
	assert.Empty(t, sanitizeErrorMessage(""))
}

func TestAggregate(t *testing.T) {
	assert.True(t, Aggregate("sys", nil).IsHealthy())

	agg := Aggregate("sys", []Status{NewHealthy("a", ""), NewDegraded("b", "")})
	assert.True(t, agg.IsDegraded())
	assert.Len(t, agg.SubStatuses, 2)

	agg = Aggregate("sys", []Status{NewDegraded("a", ""), NewUnhealthy("b", "")})
	assert.True(t, agg.IsUnhealthy())
}

func TestMonitor(t *testing.T) {
	mon := NewMonitor()
	mon.Update("west", NewHealthy("", "ok"))
	mon.Update("east", FromRun("", 2, 1, true, ""))

	s, ok := mon.Get("east")
	require.True(t, ok)
	assert.Equal(t, "east", s.Component)

	agg := mon.AggregateHealth("stanagfeed")
	assert.True(t, agg.IsDegraded())
	assert.Equal(t, "east", agg.SubStatuses[0].Component)

	rec := httptest.NewRecorder()
	mon.Handler("stanagfeed").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	mon.Update("north", NewUnhealthy("", "bad envelope"))
	rec = httptest.NewRecorder()
	mon.Handler("stanagfeed").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var decoded Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.Equal(t, "unhealthy", decoded.Status)
	assert.Len(t, decoded.SubStatuses, 3)
	assert.Contains(t, decoded.Message, "north")
	assert.Equal(t, 3, mon.Updates())
}
