package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-dashboard-api/internal/middleware"
	"github.com/noah-isme/school-dashboard-api/internal/models"
	"github.com/noah-isme/school-dashboard-api/internal/service"
	appErrors "github.com/noah-isme/school-dashboard-api/pkg/errors"
)

type attendanceServiceMock struct {
	actor   *models.JWTClaims
	request service.RecordAttendanceRequest
	err     error
}

func (m *attendanceServiceMock) Record(ctx context.Context, actor *models.JWTClaims, req service.RecordAttendanceRequest) ([]models.AttendanceRecord, error) {
	m.actor = actor
	m.request = req
	return []models.AttendanceRecord{}, m.err
}

func (m *attendanceServiceMock) Register(ctx context.Context, classID, rawDate string) ([]models.AttendanceRegisterRow, error) {
	return []models.AttendanceRegisterRow{}, nil
}

func (m *attendanceServiceMock) StudentSummary(ctx context.Context, actor *models.JWTClaims, studentID, termID string) (*models.AttendanceSummary, error) {
	m.actor = actor
	return &models.AttendanceSummary{StudentID: studentID}, m.err
}

func (m *attendanceServiceMock) ClassSummary(ctx context.Context, classID, termID string) ([]models.AttendanceSummary, error) {
	return []models.AttendanceSummary{}, nil
}

type assessmentServiceMock struct {
	gradesFor string
	err       error
}

func (m *assessmentServiceMock) Create(ctx context.Context, actor *models.JWTClaims, req service.CreateAssessmentRequest) (*models.Assessment, error) {
	return &models.Assessment{ID: "as-1", Title: req.Title}, m.err
}

func (m *assessmentServiceMock) List(ctx context.Context, filter models.AssessmentFilter) ([]models.Assessment, error) {
	return []models.Assessment{}, nil
}

func (m *assessmentServiceMock) RecordGrades(ctx context.Context, actor *models.JWTClaims, assessmentID string, req service.RecordGradesRequest) ([]models.Grade, error) {
	m.gradesFor = assessmentID
	return []models.Grade{}, m.err
}

func (m *assessmentServiceMock) Grades(ctx context.Context, assessmentID string) ([]models.GradeRow, error) {
	return []models.GradeRow{}, nil
}

func (m *assessmentServiceMock) StudentReport(ctx context.Context, actor *models.JWTClaims, studentID, termID string) (*models.StudentReport, error) {
	return &models.StudentReport{StudentID: studentID}, m.err
}

func TestAttendanceHandlerRecord(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &attendanceServiceMock{}
	handler := NewAttendanceHandler(mockSvc)
	teacher := &models.JWTClaims{UserID: "u-teacher", Role: models.RoleTeacher, ProfileID: "t1"}

	body := []byte(`{"classId":"c1","date":"2025-02-10","entries":[{"studentId":"s1","status":"PRESENT"}]}`)
	c, w := newGinContext(http.MethodPost, "/attendance", body)
	c.Set(middleware.ContextUserKey, teacher)
	handler.Record(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, teacher, mockSvc.actor)
	assert.Equal(t, "c1", mockSvc.request.ClassID)
	require.Len(t, mockSvc.request.Entries, 1)
	assert.Equal(t, models.AttendanceStatus("PRESENT"), mockSvc.request.Entries[0].Status)

	mockSvc.err = appErrors.Clone(appErrors.ErrForbidden, "only the class teacher can record attendance")
	c, w = newGinContext(http.MethodPost, "/attendance", body)
	c.Set(middleware.ContextUserKey, teacher)
	handler.Record(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	c, w = newGinContext(http.MethodPost, "/attendance", []byte(`{"entries":"nope"}`))
	c.Set(middleware.ContextUserKey, teacher)
	handler.Record(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAssessmentHandlerRoutesParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &assessmentServiceMock{}
	handler := NewAssessmentHandler(mockSvc)
	admin := &models.JWTClaims{UserID: "u-admin", Role: models.RoleAdmin}

	c, w := newGinContext(http.MethodPut, "/assessments/as-1/grades", []byte(`{"grades":[{"studentId":"s1","score":18}]}`))
	c.Params = gin.Params{{Key: "id", Value: "as-1"}}
	c.Set(middleware.ContextUserKey, admin)
	handler.RecordGrades(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "as-1", mockSvc.gradesFor)

	c, w = newGinContext(http.MethodPost, "/assessments", []byte(`{"title":"Quiz 1"}`))
	c.Set(middleware.ContextUserKey, admin)
	handler.Create(c)
	assert.Equal(t, http.StatusCreated, w.Code)

	mockSvc.err = appErrors.Clone(appErrors.ErrForbidden, "students may only view their own report")
	c, w = newGinContext(http.MethodGet, "/reports/students/s2", nil)
	c.Params = gin.Params{{Key: "studentId", Value: "s2"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-student", Role: models.RoleStudent, ProfileID: "s1"})
	handler.StudentReport(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
