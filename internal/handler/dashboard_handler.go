package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-dashboard-api/internal/dto"
	"github.com/noah-isme/school-dashboard-api/internal/middleware"
	"github.com/noah-isme/school-dashboard-api/internal/models"
	appErrors "github.com/noah-isme/school-dashboard-api/pkg/errors"
	"github.com/noah-isme/school-dashboard-api/pkg/response"
)

type dashboardService interface {
	Admin(ctx context.Context, termID string) (*dto.AdminDashboardResponse, bool, error)
	Teacher(ctx context.Context, teacherID, termID string, date time.Time) (*dto.TeacherDashboardResponse, bool, error)
	HeadOfDepartment(ctx context.Context, teacherID, termID string) (*dto.HODDashboardResponse, bool, error)
	Student(ctx context.Context, studentID, termID string) (*dto.StudentDashboardResponse, bool, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
	now     func() time.Time
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service, now: time.Now}
}

// Admin godoc
// @Summary Admin dashboard summary
// @Tags Dashboard
// @Produce json
// @Param termId query string false "Term ID (defaults to the active term)"
// @Success 200 {object} response.Envelope
// @Router /dashboard/admin [get]
func (h *DashboardHandler) Admin(c *gin.Context) {
	summary, cacheHit, err := h.service.Admin(c.Request.Context(), strings.TrimSpace(c.Query("termId")))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, summary, cacheHit)
}

// Teacher godoc
// @Summary Teacher dashboard
// @Description Teachers see their own board; admins pass teacherId
// @Tags Dashboard
// @Produce json
// @Param termId query string false "Term ID (defaults to the active term)"
// @Param date query string false "Date (YYYY-MM-DD). Defaults to today"
// @Param teacherId query string false "Teacher ID (admins only)"
// @Success 200 {object} response.Envelope
// @Router /dashboard/teacher [get]
func (h *DashboardHandler) Teacher(c *gin.Context) {
	teacherID, ok := h.subject(c, "teacherId")
	if !ok {
		return
	}
	date := h.now().UTC()
	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD"))
			return
		}
		date = parsed
	}
	summary, cacheHit, err := h.service.Teacher(c.Request.Context(), teacherID, strings.TrimSpace(c.Query("termId")), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, summary, cacheHit)
}

// HeadOfDepartment godoc
// @Summary Head of department dashboard
// @Tags Dashboard
// @Produce json
// @Param termId query string false "Term ID (defaults to the active term)"
// @Param teacherId query string false "Department head's teacher ID (admins only)"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /dashboard/hod [get]
func (h *DashboardHandler) HeadOfDepartment(c *gin.Context) {
	teacherID, ok := h.subject(c, "teacherId")
	if !ok {
		return
	}
	summary, cacheHit, err := h.service.HeadOfDepartment(c.Request.Context(), teacherID, strings.TrimSpace(c.Query("termId")))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, summary, cacheHit)
}

// Student godoc
// @Summary Student dashboard
// @Tags Dashboard
// @Produce json
// @Param termId query string false "Term ID (defaults to the active term)"
// @Param studentId query string false "Student ID (admins only)"
// @Success 200 {object} response.Envelope
// @Router /dashboard/student [get]
func (h *DashboardHandler) Student(c *gin.Context) {
	studentID, ok := h.subject(c, "studentId")
	if !ok {
		return
	}
	summary, cacheHit, err := h.service.Student(c.Request.Context(), studentID, strings.TrimSpace(c.Query("termId")))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, summary, cacheHit)
}

// subject resolves whose dashboard is requested: admins name it in the query, everyone else gets
// the profile linked to their account.
func (h *DashboardHandler) subject(c *gin.Context, queryKey string) (string, bool) {
	claims := requireClaims(c)
	if claims == nil {
		return "", false
	}
	if claims.Role == models.RoleAdmin {
		id := strings.TrimSpace(c.Query(queryKey))
		if id == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, queryKey+" is required"))
			return "", false
		}
		return id, true
	}
	if claims.ProfileID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "account is not linked to a profile"))
		return "", false
	}
	return claims.ProfileID, true
}

func (h *DashboardHandler) respond(c *gin.Context, data interface{}, cacheHit bool) {
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, data, nil, middleware.ExtractMeta(c))
}
