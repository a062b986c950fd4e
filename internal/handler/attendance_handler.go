package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-dashboard-api/internal/models"
	"github.com/noah-isme/school-dashboard-api/internal/service"
	appErrors "github.com/noah-isme/school-dashboard-api/pkg/errors"
	"github.com/noah-isme/school-dashboard-api/pkg/response"
)

type attendanceService interface {
	Record(ctx context.Context, actor *models.JWTClaims, req service.RecordAttendanceRequest) ([]models.AttendanceRecord, error)
	Register(ctx context.Context, classID, rawDate string) ([]models.AttendanceRegisterRow, error)
	StudentSummary(ctx context.Context, actor *models.JWTClaims, studentID, termID string) (*models.AttendanceSummary, error)
	ClassSummary(ctx context.Context, classID, termID string) ([]models.AttendanceSummary, error)
}

// AttendanceHandler exposes class registers.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler constructs an attendance handler.
func NewAttendanceHandler(svc attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// Record godoc
// @Summary Record a class register
// @Description Upserts one mark per student for the date; admins or the class teacher only
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.RecordAttendanceRequest true "Register payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Record(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req service.RecordAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance payload"))
		return
	}
	records, err := h.service.Record(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, records)
}

// Register godoc
// @Summary Class register for a date
// @Tags Attendance
// @Produce json
// @Param classId path string true "Class ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance/classes/{classId} [get]
func (h *AttendanceHandler) Register(c *gin.Context) {
	rows, err := h.service.Register(c.Request.Context(), c.Param("classId"), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rows)
}

// ClassSummary godoc
// @Summary Per-student attendance summary for a class
// @Tags Attendance
// @Produce json
// @Param classId path string true "Class ID"
// @Param termId query string false "Term (defaults to the active term)"
// @Success 200 {object} response.Envelope
// @Router /attendance/classes/{classId}/summary [get]
func (h *AttendanceHandler) ClassSummary(c *gin.Context) {
	rows, err := h.service.ClassSummary(c.Request.Context(), c.Param("classId"), c.Query("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rows)
}

// StudentSummary godoc
// @Summary Attendance summary for a student
// @Description Students may only read their own summary
// @Tags Attendance
// @Produce json
// @Param studentId path string true "Student ID"
// @Param termId query string false "Term (defaults to the active term)"
// @Success 200 {object} response.Envelope
// @Router /attendance/students/{studentId}/summary [get]
func (h *AttendanceHandler) StudentSummary(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	summary, err := h.service.StudentSummary(c.Request.Context(), claims, c.Param("studentId"), c.Query("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}
