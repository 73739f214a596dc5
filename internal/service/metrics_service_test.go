package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estudio-sgt/sgt-api/internal/models"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest("GET", "/api/v1/expedientes", 200, 20*time.Millisecond)
	m.ObserveHTTPRequest("GET", "/api/v1/expedientes", 200, 40*time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordOverdue(3)
	m.RecordOverdue(0)
	m.RecordDocumentUpload("application/pdf")
	m.RecordReportJob(models.ReportStatusFinished, models.ReportFormatCSV)
	m.RecordReportJob(models.ReportStatusFailed, models.ReportFormatPDF)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.RequestsTotal)
	assert.InDelta(t, 30.0, snap.AverageRequestDurationMs, 0.001)
	assert.InDelta(t, 0.5, snap.CacheHitRatio, 0.001)
	assert.Equal(t, uint64(3), snap.OverdueMarked)
	assert.Equal(t, uint64(1), snap.DocumentsUploaded)
	assert.Equal(t, uint64(1), snap.ReportsFinished)
	assert.Equal(t, uint64(1), snap.ReportsFailed)
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.RecordOverdue(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "sgt_expedientes_marked_overdue_total 2"))
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.RecordOverdue(1)
	m.ObserveHTTPRequest("GET", "/", 200, time.Second)
	assert.Equal(t, uint64(0), m.Snapshot().RequestsTotal)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
