package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-dashboard-api/internal/models"
	"github.com/noah-isme/school-dashboard-api/internal/service"
	"github.com/noah-isme/school-dashboard-api/internal/validation"
	appErrors "github.com/noah-isme/school-dashboard-api/pkg/errors"
	"github.com/noah-isme/school-dashboard-api/pkg/response"
)

type teacherAssignmentService interface {
	ListByTeacher(ctx context.Context, teacherID string, filter models.TeacherAssignmentFilter) ([]models.TeacherAssignmentDetail, error)
	CheckClassTeacher(ctx context.Context, teacherID, academicYearID, termID string) (*validation.ClassTeacherValidation, error)
	Assign(ctx context.Context, teacherID string, req service.CreateTeacherAssignmentRequest, meta service.AuditMeta) (*models.TeacherAssignmentDetail, error)
	UpdateFlags(ctx context.Context, teacherID, assignmentID string, req service.UpdateTeacherAssignmentRequest, meta service.AuditMeta) (*models.TeacherAssignmentDetail, error)
	Unassign(ctx context.Context, teacherID, assignmentID string, meta service.AuditMeta) error
	ListClassTeachers(ctx context.Context, termID string) ([]models.ClassTeacherRow, *models.Term, error)
}

// TeacherHandler wires teacher services to HTTP routes.
type TeacherHandler struct {
	teachers    *service.TeacherService
	assignments teacherAssignmentService
}

// NewTeacherHandler constructs a new TeacherHandler.
func NewTeacherHandler(teachers *service.TeacherService, assignments teacherAssignmentService) *TeacherHandler {
	return &TeacherHandler{teachers: teachers, assignments: assignments}
}

// List godoc
// @Summary List teachers
// @Tags Teachers
// @Produce json
// @Param search query string false "Search by name/email/employee number"
// @Param active query bool false "Filter by active status"
// @Param departmentId query string false "Filter by department"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param sort query string false "Sort field (full_name,email,created_at)"
// @Param order query string false "Sort order (asc/desc)"
// @Success 200 {object} response.Envelope
// @Router /teachers [get]
func (h *TeacherHandler) List(c *gin.Context) {
	filter := models.TeacherFilter{
		Search:       strings.TrimSpace(c.Query("search")),
		DepartmentID: c.Query("departmentId"),
		Active:       queryBool(c, "active"),
		SortBy:       c.Query("sort"),
		SortOrder:    c.Query("order"),
	}
	filter.Page, filter.PageSize = queryPaging(c)

	teachers, pagination, err := h.teachers.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, pagination)
}

// Get godoc
// @Summary Get teacher detail
// @Tags Teachers
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id} [get]
func (h *TeacherHandler) Get(c *gin.Context) {
	teacher, err := h.teachers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, teacher)
}

// Create godoc
// @Summary Create teacher
// @Tags Teachers
// @Accept json
// @Produce json
// @Param payload body service.CreateTeacherRequest true "Teacher payload"
// @Success 201 {object} response.Envelope
// @Router /teachers [post]
func (h *TeacherHandler) Create(c *gin.Context) {
	var req service.CreateTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid teacher payload"))
		return
	}
	teacher, err := h.teachers.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, teacher)
}

// Update godoc
// @Summary Update teacher
// @Tags Teachers
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body service.UpdateTeacherRequest true "Teacher payload"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id} [put]
func (h *TeacherHandler) Update(c *gin.Context) {
	var req service.UpdateTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid teacher payload"))
		return
	}
	teacher, err := h.teachers.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, teacher)
}

// Delete godoc
// @Summary Deactivate teacher
// @Tags Teachers
// @Param id path string true "Teacher ID"
// @Success 204
// @Router /teachers/{id} [delete]
func (h *TeacherHandler) Delete(c *gin.Context) {
	if err := h.teachers.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListAssignments godoc
// @Summary List teacher assignments
// @Tags Teacher Assignments
// @Produce json
// @Param id path string true "Teacher ID"
// @Param academicYearId query string false "Academic year"
// @Param termId query string false "Term"
// @Param includeInactive query bool false "Include unassigned rows"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/assignments [get]
func (h *TeacherHandler) ListAssignments(c *gin.Context) {
	filter := models.TeacherAssignmentFilter{
		AcademicYearID: c.Query("academicYearId"),
		TermID:         c.Query("termId"),
	}
	if inactive := queryBool(c, "includeInactive"); inactive != nil {
		filter.IncludeInactive = *inactive
	}
	assignments, err := h.assignments.ListByTeacher(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, assignments)
}

// CheckClassTeacher godoc
// @Summary Check whether a teacher can take a class-teacher assignment
// @Description Advisory pre-check; the result is returned as data and never as an error
// @Tags Teacher Assignments
// @Produce json
// @Param id path string true "Teacher ID"
// @Param academicYearId query string true "Academic year"
// @Param termId query string true "Term"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/class-teacher/check [get]
func (h *TeacherHandler) CheckClassTeacher(c *gin.Context) {
	academicYearID := strings.TrimSpace(c.Query("academicYearId"))
	termID := strings.TrimSpace(c.Query("termId"))
	if academicYearID == "" || termID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "academicYearId and termId are required"))
		return
	}
	result, err := h.assignments.CheckClassTeacher(c.Request.Context(), c.Param("id"), academicYearID, termID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// CreateAssignment godoc
// @Summary Create teacher assignment
// @Tags Teacher Assignments
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body service.CreateTeacherAssignmentRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /teachers/{id}/assignments [post]
func (h *TeacherHandler) CreateAssignment(c *gin.Context) {
	var req service.CreateTeacherAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	assignment, err := h.assignments.Assign(c.Request.Context(), c.Param("id"), req, auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// UpdateAssignment godoc
// @Summary Update assignment flags
// @Tags Teacher Assignments
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param aid path string true "Assignment ID"
// @Param payload body service.UpdateTeacherAssignmentRequest true "Flags"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /teachers/{id}/assignments/{aid} [patch]
func (h *TeacherHandler) UpdateAssignment(c *gin.Context) {
	var req service.UpdateTeacherAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	assignment, err := h.assignments.UpdateFlags(c.Request.Context(), c.Param("id"), c.Param("aid"), req, auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, assignment)
}

// DeleteAssignment godoc
// @Summary Unassign teacher
// @Description Marks the assignment inactive so the class can be reassigned
// @Tags Teacher Assignments
// @Param id path string true "Teacher ID"
// @Param aid path string true "Assignment ID"
// @Success 204
// @Router /teachers/{id}/assignments/{aid} [delete]
func (h *TeacherHandler) DeleteAssignment(c *gin.Context) {
	if err := h.assignments.Unassign(c.Request.Context(), c.Param("id"), c.Param("aid"), auditMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ClassTeachers godoc
// @Summary List class teachers for a term
// @Tags Teacher Assignments
// @Produce json
// @Param termId query string false "Term (defaults to the active term)"
// @Success 200 {object} response.Envelope
// @Router /class-teachers [get]
func (h *TeacherHandler) ClassTeachers(c *gin.Context) {
	rows, term, err := h.assignments.ListClassTeachers(c.Request.Context(), c.Query("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil, map[string]interface{}{"termId": term.ID, "termName": term.Name})
}
