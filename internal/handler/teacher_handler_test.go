package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-dashboard-api/internal/middleware"
	"github.com/noah-isme/school-dashboard-api/internal/models"
	"github.com/noah-isme/school-dashboard-api/internal/service"
	"github.com/noah-isme/school-dashboard-api/internal/validation"
	appErrors "github.com/noah-isme/school-dashboard-api/pkg/errors"
)

type assignmentServiceMock struct {
	check     *validation.ClassTeacherValidation
	assignErr error
	lastMeta  service.AuditMeta
	lastCheck [3]string
	rows      []models.ClassTeacherRow
}

func (m *assignmentServiceMock) ListByTeacher(ctx context.Context, teacherID string, filter models.TeacherAssignmentFilter) ([]models.TeacherAssignmentDetail, error) {
	return []models.TeacherAssignmentDetail{}, nil
}

func (m *assignmentServiceMock) CheckClassTeacher(ctx context.Context, teacherID, academicYearID, termID string) (*validation.ClassTeacherValidation, error) {
	m.lastCheck = [3]string{teacherID, academicYearID, termID}
	return m.check, nil
}

func (m *assignmentServiceMock) Assign(ctx context.Context, teacherID string, req service.CreateTeacherAssignmentRequest, meta service.AuditMeta) (*models.TeacherAssignmentDetail, error) {
	m.lastMeta = meta
	if m.assignErr != nil {
		return nil, m.assignErr
	}
	return &models.TeacherAssignmentDetail{TeacherAssignment: models.TeacherAssignment{ID: "a-new", TeacherID: teacherID, ClassID: req.ClassID}}, nil
}

func (m *assignmentServiceMock) UpdateFlags(ctx context.Context, teacherID, assignmentID string, req service.UpdateTeacherAssignmentRequest, meta service.AuditMeta) (*models.TeacherAssignmentDetail, error) {
	return &models.TeacherAssignmentDetail{}, nil
}

func (m *assignmentServiceMock) Unassign(ctx context.Context, teacherID, assignmentID string, meta service.AuditMeta) error {
	m.lastMeta = meta
	return nil
}

func (m *assignmentServiceMock) ListClassTeachers(ctx context.Context, termID string) ([]models.ClassTeacherRow, *models.Term, error) {
	return m.rows, &models.Term{ID: "t1", Name: "Term 1"}, nil
}

func TestTeacherHandlerCheckClassTeacher(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &assignmentServiceMock{check: &validation.ClassTeacherValidation{
		IsValid: false,
		Message: validation.FormatConflictMessage("Grace Achieng", "9A"),
	}}
	handler := NewTeacherHandler(nil, mockSvc)

	c, w := newGinContext(http.MethodGet, "/teachers/t1/class-teacher/check?academicYearId=y1&termId=t1", nil)
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	handler.CheckClassTeacher(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, [3]string{"t1", "y1", "t1"}, mockSvc.lastCheck)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, false, envelope.Data["isValid"])
	assert.Contains(t, envelope.Data["message"], "Grace Achieng is already the class teacher for 9A")

	c, w = newGinContext(http.MethodGet, "/teachers/t1/class-teacher/check?termId=t1", nil)
	handler.CheckClassTeacher(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTeacherHandlerCreateAssignment(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &assignmentServiceMock{}
	handler := NewTeacherHandler(nil, mockSvc)

	body := []byte(`{"classId":"c1","academicYearId":"y1","termId":"t1","isClassTeacher":true}`)
	c, w := newGinContext(http.MethodPost, "/teachers/t1/assignments", body)
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	c.Request.Header.Set("User-Agent", "registrar-console")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	handler.CreateAssignment(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "admin-1", mockSvc.lastMeta.ActorID)
	assert.Equal(t, "registrar-console", mockSvc.lastMeta.UserAgent)

	mockSvc.assignErr = appErrors.Clone(appErrors.ErrClassTeacherConflict, validation.FormatConflictMessage("Grace Achieng", "9A"))
	c, w = newGinContext(http.MethodPost, "/teachers/t1/assignments", body)
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	handler.CreateAssignment(c)

	require.Equal(t, http.StatusConflict, w.Code)
	var envelope struct {
		Error appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "CLASS_TEACHER_CONFLICT", envelope.Error.Code)
}

func TestTeacherHandlerClassTeachers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	name := "Grace Achieng"
	mockSvc := &assignmentServiceMock{rows: []models.ClassTeacherRow{{ClassID: "c1", ClassName: "9A", TeacherName: &name}}}
	handler := NewTeacherHandler(nil, mockSvc)

	c, w := newGinContext(http.MethodGet, "/class-teachers", nil)
	handler.ClassTeachers(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data []models.ClassTeacherRow `json:"data"`
		Meta map[string]interface{}   `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "Grace Achieng", *envelope.Data[0].TeacherName)
	assert.Equal(t, "t1", envelope.Meta["termId"])
}
