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

type assessmentService interface {
	Create(ctx context.Context, actor *models.JWTClaims, req service.CreateAssessmentRequest) (*models.Assessment, error)
	List(ctx context.Context, filter models.AssessmentFilter) ([]models.Assessment, error)
	RecordGrades(ctx context.Context, actor *models.JWTClaims, assessmentID string, req service.RecordGradesRequest) ([]models.Grade, error)
	Grades(ctx context.Context, assessmentID string) ([]models.GradeRow, error)
	StudentReport(ctx context.Context, actor *models.JWTClaims, studentID, termID string) (*models.StudentReport, error)
}

// AssessmentHandler exposes assessments, grades and student reports.
type AssessmentHandler struct {
	service assessmentService
}

// NewAssessmentHandler constructs an assessment handler.
func NewAssessmentHandler(svc assessmentService) *AssessmentHandler {
	return &AssessmentHandler{service: svc}
}

// Create godoc
// @Summary Create assessment
// @Description Admins or a teacher assigned to the class and subject for the term
// @Tags Assessments
// @Accept json
// @Produce json
// @Param payload body service.CreateAssessmentRequest true "Assessment payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /assessments [post]
func (h *AssessmentHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req service.CreateAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assessment payload"))
		return
	}
	assessment, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assessment)
}

// List godoc
// @Summary List assessments
// @Tags Assessments
// @Produce json
// @Param classId query string false "Class"
// @Param subjectId query string false "Subject"
// @Param termId query string false "Term"
// @Success 200 {object} response.Envelope
// @Router /assessments [get]
func (h *AssessmentHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context(), models.AssessmentFilter{
		ClassID:   c.Query("classId"),
		SubjectID: c.Query("subjectId"),
		TermID:    c.Query("termId"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// RecordGrades godoc
// @Summary Record grades
// @Description Bulk upsert; every score must lie within 0..maxScore
// @Tags Assessments
// @Accept json
// @Produce json
// @Param id path string true "Assessment ID"
// @Param payload body service.RecordGradesRequest true "Grades"
// @Success 200 {object} response.Envelope
// @Router /assessments/{id}/grades [put]
func (h *AssessmentHandler) RecordGrades(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req service.RecordGradesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grades payload"))
		return
	}
	grades, err := h.service.RecordGrades(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, grades)
}

// Grades godoc
// @Summary List grades for an assessment
// @Tags Assessments
// @Produce json
// @Param id path string true "Assessment ID"
// @Success 200 {object} response.Envelope
// @Router /assessments/{id}/grades [get]
func (h *AssessmentHandler) Grades(c *gin.Context) {
	rows, err := h.service.Grades(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rows)
}

// StudentReport godoc
// @Summary Student grade report
// @Description Average percentage per subject and overall for a term
// @Tags Assessments
// @Produce json
// @Param studentId path string true "Student ID"
// @Param termId query string false "Term (defaults to the active term)"
// @Success 200 {object} response.Envelope
// @Router /reports/students/{studentId} [get]
func (h *AssessmentHandler) StudentReport(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	report, err := h.service.StudentReport(c.Request.Context(), claims, c.Param("studentId"), c.Query("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}
