package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-dashboard-api/internal/dto"
	"github.com/noah-isme/school-dashboard-api/internal/middleware"
	"github.com/noah-isme/school-dashboard-api/internal/models"
)

type fakeDashboardSrv struct {
	adminResp   *dto.AdminDashboardResponse
	adminErr    error
	adminHit    bool
	teacherResp *dto.TeacherDashboardResponse
	teacherErr  error
	teacherHit  bool
	lastTeacher struct {
		teacherID string
		termID    string
		date      time.Time
	}
	lastStudent string
}

func (f *fakeDashboardSrv) Admin(context.Context, string) (*dto.AdminDashboardResponse, bool, error) {
	return f.adminResp, f.adminHit, f.adminErr
}

func (f *fakeDashboardSrv) Teacher(_ context.Context, teacherID, termID string, date time.Time) (*dto.TeacherDashboardResponse, bool, error) {
	f.lastTeacher.teacherID = teacherID
	f.lastTeacher.termID = termID
	f.lastTeacher.date = date
	return f.teacherResp, f.teacherHit, f.teacherErr
}

func (f *fakeDashboardSrv) HeadOfDepartment(_ context.Context, teacherID, termID string) (*dto.HODDashboardResponse, bool, error) {
	return &dto.HODDashboardResponse{}, false, nil
}

func (f *fakeDashboardSrv) Student(_ context.Context, studentID, termID string) (*dto.StudentDashboardResponse, bool, error) {
	f.lastStudent = studentID
	return &dto.StudentDashboardResponse{}, false, nil
}

type responseEnvelope struct {
	Data map[string]interface{} `json:"data"`
	Meta map[string]interface{} `json:"meta"`
}

func TestDashboardHandlerAdminSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{
		adminResp: &dto.AdminDashboardResponse{Term: dto.DashboardTerm{ID: "term-1", Name: "Term 1"}},
		adminHit:  true,
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/admin?termId=term-1", nil)

	handler.Admin(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Equal(t, "term-1", envelope.Data["term"].(map[string]interface{})["id"])
}

func TestDashboardHandlerTeacherInvalidDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/teacher?date=99-99-9999", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-1", Role: models.RoleTeacher, ProfileID: "teacher-1"})

	handler.Teacher(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardHandlerTeacherUsesLinkedProfile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeDashboardSrv{teacherResp: &dto.TeacherDashboardResponse{TeacherID: "teacher-1"}}
	handler := NewDashboardHandler(service)
	handler.now = func() time.Time { return time.Date(2025, 2, 10, 8, 0, 0, 0, time.UTC) }

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/teacher?termId=term-1&teacherId=someone-else", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-1", Role: models.RoleTeacher, ProfileID: "teacher-1"})

	handler.Teacher(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "teacher-1", service.lastTeacher.teacherID)
	assert.Equal(t, "term-1", service.lastTeacher.termID)
	assert.Equal(t, "2025-02-10", service.lastTeacher.date.Format("2006-01-02"))
}

func TestDashboardHandlerSubjectResolution(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name    string
		claims  *models.JWTClaims
		query   string
		status  int
		student string
	}{
		{"student sees own board", &models.JWTClaims{Role: models.RoleStudent, ProfileID: "s1"}, "?studentId=s2", http.StatusOK, "s1"},
		{"admin names the student", &models.JWTClaims{Role: models.RoleAdmin}, "?studentId=s2", http.StatusOK, "s2"},
		{"admin without student", &models.JWTClaims{Role: models.RoleAdmin}, "", http.StatusBadRequest, ""},
		{"unlinked account", &models.JWTClaims{Role: models.RoleStudent}, "", http.StatusForbidden, ""},
		{"anonymous", nil, "", http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &fakeDashboardSrv{}
			handler := NewDashboardHandler(service)
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/student"+tc.query, nil)
			if tc.claims != nil {
				c.Set(middleware.ContextUserKey, tc.claims)
			}

			handler.Student(c)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.student, service.lastStudent)
		})
	}
}
