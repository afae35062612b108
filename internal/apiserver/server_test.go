package apiserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosix/stagebacktest/internal/config"
	"github.com/kosix/stagebacktest/internal/datamanager"
	"github.com/kosix/stagebacktest/internal/numerics"
	"github.com/kosix/stagebacktest/internal/stage"
)

func emptyRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func TestHealthzReportsOK(t *testing.T) {
	s := New(emptyRegistry(), nil, config.Default())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpointServesPrometheusText(t *testing.T) {
	s := New(emptyRegistry(), nil, config.Default())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetUnknownRunReturnsNotFound(t *testing.T) {
	s := New(emptyRegistry(), nil, config.Default())

	req := httptest.NewRequest(http.MethodGet, "/runs/does-not-exist", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitRunWithoutDatasetFails(t *testing.T) {
	s := New(emptyRegistry(), nil, config.Default())

	body := `{"start_date":"2024-01-02","end_date":"2024-01-03"}`
	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSubmitRunEventuallyCompletes(t *testing.T) {
	d0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	d1 := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	bars := []numerics.Bar{
		{Date: d0, Open: 99, High: 101, Low: 98, Close: 100, Volume: 1000},
		{Date: d1, Open: 99, High: 101, Low: 98, Close: 100, Volume: 1000},
	}
	table, err := numerics.NewBarTable("AAA", bars)
	require.NoError(t, err)
	enriched := &numerics.EnrichedTable{
		BarTable: table,
		EMA5:     numerics.NewUndefinedSeries(2),
		EMA20:    numerics.NewUndefinedSeries(2),
		EMA40:    numerics.NewUndefinedSeries(2),
		ATR:      numerics.NewUndefinedSeries(2),
		DirUpper:  make(numerics.DirectionSeries, 2),
		DirMiddle: make(numerics.DirectionSeries, 2),
		DirLower:  make(numerics.DirectionSeries, 2),
	}
	dataset := datamanager.Dataset{
		"AAA": &datamanager.EnrichedTicker{Table: enriched, Stages: make(stage.Series, 2)},
	}

	s := New(emptyRegistry(), dataset, config.Default())

	body := `{"start_date":"2024-01-02","end_date":"2024-01-03"}`
	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var submitResp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitResp))
	runID, _ := submitResp["run_id"].(string)
	require.NotEmpty(t, runID)

	require.Eventually(t, func() bool {
		run := s.runs.Get(runID)
		return run != nil && run.Status == StatusDone
	}, 2*time.Second, 10*time.Millisecond)
}
