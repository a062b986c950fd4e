package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-dashboard-api/internal/middleware"
	"github.com/noah-isme/school-dashboard-api/internal/models"
	"github.com/noah-isme/school-dashboard-api/internal/service"
	appErrors "github.com/noah-isme/school-dashboard-api/pkg/errors"
)

type exportServiceMock struct {
	lastActor   *models.JWTClaims
	lastRequest service.CreateExportRequest
	job         *models.ExportJob
	requestErr  error
	status      *service.ExportStatusResponse
	statusErr   error
	download    *service.ExportDownload
	downloadErr error
}

func (m *exportServiceMock) Request(ctx context.Context, actor *models.JWTClaims, req service.CreateExportRequest) (*models.ExportJob, error) {
	m.lastActor = actor
	m.lastRequest = req
	return m.job, m.requestErr
}

func (m *exportServiceMock) Status(ctx context.Context, actor *models.JWTClaims, id string) (*service.ExportStatusResponse, error) {
	return m.status, m.statusErr
}

func (m *exportServiceMock) Download(ctx context.Context, token string) (*service.ExportDownload, error) {
	return m.download, m.downloadErr
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestExportHandlerRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{job: &models.ExportJob{ID: "job-1", Status: models.ExportStatusQueued}}
	handler := NewExportHandler(mockSvc)

	payload, _ := json.Marshal(service.CreateExportRequest{Type: models.ExportTypeClassTeacherRoster, Format: "csv"})
	c, w := newGinContext(http.MethodPost, "/exports", payload)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.Request(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "admin", mockSvc.lastActor.UserID)
	assert.Equal(t, "csv", mockSvc.lastRequest.Format)

	c, w = newGinContext(http.MethodPost, "/exports", []byte("{"))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})
	handler.Request(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newGinContext(http.MethodPost, "/exports", payload)
	handler.Request(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExportHandlerStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	url := "/api/v1/exports/download/tok"
	mockSvc := &exportServiceMock{status: &service.ExportStatusResponse{
		ExportJob:   models.ExportJob{ID: "job-1", Status: models.ExportStatusFinished, Progress: 100},
		DownloadURL: &url,
	}}
	handler := NewExportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/exports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.Status(c)
	require.Equal(t, http.StatusOK, w.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, url, envelope.Data["downloadUrl"])
	assert.Equal(t, "FINISHED", envelope.Data["status"])
}

func TestExportHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{download: &service.ExportDownload{
		Body:        io.NopCloser(strings.NewReader("Class,Grade,Class Teacher\n")),
		Filename:    "job-1.csv",
		ContentType: "text/csv",
	}}
	handler := NewExportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/exports/download/token", nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}

	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="job-1.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Class,Grade,Class Teacher\n", w.Body.String())

	mockSvc.downloadErr = appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	c, w = newGinContext(http.MethodGet, "/exports/download/bad", nil)
	handler.Download(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
