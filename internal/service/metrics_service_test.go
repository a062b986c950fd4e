package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceCountsClassTeacherChecks(t *testing.T) {
	m := NewMetricsService()
	m.RecordClassTeacherCheck(ClassTeacherOutcomeValid)
	m.RecordClassTeacherCheck(ClassTeacherOutcomeConflict)
	m.RecordClassTeacherCheck(ClassTeacherOutcomeConflict)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.classTeacherCheck.WithLabelValues(ClassTeacherOutcomeValid)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.classTeacherCheck.WithLabelValues(ClassTeacherOutcomeConflict)))
}

func TestMetricsServiceHandlerExposesSeries(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/teachers", http.StatusOK, 20*time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordExportJob("class_teacher_roster", "FINISHED", time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, series := range []string{"http_requests_total", "dashboard_cache_lookups_total", "export_jobs_total"} {
		assert.True(t, strings.Contains(body, series), series)
	}
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	m.RecordClassTeacherCheck(ClassTeacherOutcomeValid)
	m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
