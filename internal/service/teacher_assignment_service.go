package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-dashboard-api/internal/models"
	"github.com/noah-isme/school-dashboard-api/internal/repository"
	"github.com/noah-isme/school-dashboard-api/internal/validation"
	appErrors "github.com/noah-isme/school-dashboard-api/pkg/errors"
)

type teacherAssignmentRepo interface {
	ListByTeacher(ctx context.Context, teacherID string, filter models.TeacherAssignmentFilter) ([]models.TeacherAssignmentDetail, error)
	FindByID(ctx context.Context, teacherID, assignmentID string) (*models.TeacherAssignmentDetail, error)
	Exists(ctx context.Context, teacherID, classID string, subjectID *string, termID string) (bool, error)
	FindClassTeacher(ctx context.Context, classID, termID string) (*models.TeacherAssignmentDetail, error)
	Create(ctx context.Context, assignment *models.TeacherAssignment) error
	UpdateFlags(ctx context.Context, teacherID, assignmentID string, isClassTeacher, isActive bool) error
	ListClassTeachers(ctx context.Context, termID string) ([]models.ClassTeacherRow, error)
}

type subjectLookup interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

// dashboardCachePattern matches every cached dashboard payload.
const dashboardCachePattern = "dash:*"

// CreateTeacherAssignmentRequest describes assignment payload.
type CreateTeacherAssignmentRequest struct {
	ClassID        string  `json:"classId" validate:"required"`
	SubjectID      *string `json:"subjectId"`
	AcademicYearID string  `json:"academicYearId" validate:"required"`
	TermID         string  `json:"termId" validate:"required"`
	IsClassTeacher bool    `json:"isClassTeacher"`
}

// UpdateTeacherAssignmentRequest toggles the class-teacher and active flags.
type UpdateTeacherAssignmentRequest struct {
	IsClassTeacher *bool `json:"isClassTeacher"`
	IsActive       *bool `json:"isActive"`
}

// TeacherAssignmentService handles roster assignments and the class-teacher rule.
type TeacherAssignmentService struct {
	teachers    teacherLookup
	classes     classLookup
	subjects    subjectLookup
	terms       termReader
	assignments teacherAssignmentRepo
	audit       auditLogWriter
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// TeacherAssignmentServiceParams groups the collaborators of TeacherAssignmentService.
type TeacherAssignmentServiceParams struct {
	Teachers    teacherLookup
	Classes     classLookup
	Subjects    subjectLookup
	Terms       termReader
	Assignments teacherAssignmentRepo
	Audit       auditLogWriter
	Cache       *CacheService
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// NewTeacherAssignmentService creates a service instance.
func NewTeacherAssignmentService(params TeacherAssignmentServiceParams) *TeacherAssignmentService {
	if params.Validator == nil {
		params.Validator = validator.New()
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	return &TeacherAssignmentService{
		teachers:    params.Teachers,
		classes:     params.Classes,
		subjects:    params.Subjects,
		terms:       params.Terms,
		assignments: params.Assignments,
		audit:       params.Audit,
		cache:       params.Cache,
		metrics:     params.Metrics,
		validator:   params.Validator,
		logger:      params.Logger,
	}
}

// ListByTeacher returns assignments for the teacher.
func (s *TeacherAssignmentService) ListByTeacher(ctx context.Context, teacherID string, filter models.TeacherAssignmentFilter) ([]models.TeacherAssignmentDetail, error) {
	if _, err := s.loadTeacher(ctx, teacherID); err != nil {
		return nil, err
	}
	assignments, err := s.assignments.ListByTeacher(ctx, teacherID, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// CheckClassTeacher runs the class-teacher rule for the teacher without writing anything.
func (s *TeacherAssignmentService) CheckClassTeacher(ctx context.Context, teacherID, academicYearID, termID string) (*validation.ClassTeacherValidation, error) {
	if strings.TrimSpace(academicYearID) == "" || strings.TrimSpace(termID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "academicYearId and termId are required")
	}
	if _, err := s.loadTeacher(ctx, teacherID); err != nil {
		return nil, err
	}
	result, err := s.evaluateClassTeacher(ctx, teacherID, academicYearID, termID)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Assign creates a new mapping between teacher, class, optional subject and term.
func (s *TeacherAssignmentService) Assign(ctx context.Context, teacherID string, req CreateTeacherAssignmentRequest, meta AuditMeta) (*models.TeacherAssignmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	subjectID := normalizeOptional(req.SubjectID)
	if subjectID == nil && !req.IsClassTeacher {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subjectId is required unless assigning a class teacher")
	}

	teacher, err := s.loadTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if !teacher.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "teacher inactive")
	}
	if err := s.ensureClassSubjectTerm(ctx, req.ClassID, subjectID, req.AcademicYearID, req.TermID); err != nil {
		return nil, err
	}

	exists, err := s.assignments.Exists(ctx, teacherID, req.ClassID, subjectID, req.TermID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assignment uniqueness")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "teacher already assigned to this class and subject for the term")
	}

	if req.IsClassTeacher {
		if err := s.ensureClassTeacherAllowed(ctx, teacher, req.ClassID, req.AcademicYearID, req.TermID); err != nil {
			return nil, err
		}
	}

	assignment := &models.TeacherAssignment{
		TeacherID:      teacherID,
		ClassID:        req.ClassID,
		SubjectID:      subjectID,
		AcademicYearID: req.AcademicYearID,
		TermID:         req.TermID,
		IsClassTeacher: req.IsClassTeacher,
		IsActive:       true,
	}
	if err := s.assignments.Create(ctx, assignment); err != nil {
		return nil, s.mapWriteError(ctx, err, teacher, req.AcademicYearID, req.TermID, "failed to create assignment")
	}

	recordAudit(ctx, s.audit, s.logger, meta, models.AuditActionAssignmentCreate, "teacher_assignments", assignment.ID, nil, assignment)
	s.cache.Invalidate(ctx, dashboardCachePattern)
	s.logger.Info("teacher assigned",
		zap.String("teacher_id", teacherID),
		zap.String("class_id", req.ClassID),
		zap.String("term_id", req.TermID),
		zap.Bool("class_teacher", req.IsClassTeacher),
	)
	return s.loadAssignment(ctx, teacherID, assignment.ID)
}

// UpdateFlags promotes, demotes, deactivates or reactivates an assignment.
// Any transition into an active class-teacher assignment re-runs the class-teacher rule.
func (s *TeacherAssignmentService) UpdateFlags(ctx context.Context, teacherID, assignmentID string, req UpdateTeacherAssignmentRequest, meta AuditMeta) (*models.TeacherAssignmentDetail, error) {
	if req.IsClassTeacher == nil && req.IsActive == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "nothing to update")
	}
	current, err := s.loadAssignment(ctx, teacherID, assignmentID)
	if err != nil {
		return nil, err
	}

	isClassTeacher, isActive := current.IsClassTeacher, current.IsActive
	if req.IsClassTeacher != nil {
		isClassTeacher = *req.IsClassTeacher
	}
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	if !isClassTeacher && current.SubjectID == nil && isActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "an assignment without a subject must stay a class-teacher assignment")
	}

	wasActiveClassTeacher := current.IsClassTeacher && current.IsActive
	if isClassTeacher && isActive && !wasActiveClassTeacher {
		teacher, err := s.loadTeacher(ctx, teacherID)
		if err != nil {
			return nil, err
		}
		if !teacher.Active {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "teacher inactive")
		}
		if err := s.ensureClassTeacherAllowed(ctx, teacher, current.ClassID, current.AcademicYearID, current.TermID); err != nil {
			return nil, err
		}
		if err := s.assignments.UpdateFlags(ctx, teacherID, assignmentID, isClassTeacher, isActive); err != nil {
			return nil, s.mapWriteError(ctx, err, teacher, current.AcademicYearID, current.TermID, "failed to update assignment")
		}
	} else if err := s.assignments.UpdateFlags(ctx, teacherID, assignmentID, isClassTeacher, isActive); err != nil {
		return nil, s.mapWriteError(ctx, err, nil, current.AcademicYearID, current.TermID, "failed to update assignment")
	}

	recordAudit(ctx, s.audit, s.logger, meta, models.AuditActionAssignmentUpdate, "teacher_assignments", assignmentID,
		map[string]bool{"isClassTeacher": current.IsClassTeacher, "isActive": current.IsActive},
		map[string]bool{"isClassTeacher": isClassTeacher, "isActive": isActive})
	s.cache.Invalidate(ctx, dashboardCachePattern)
	return s.loadAssignment(ctx, teacherID, assignmentID)
}

// Unassign soft-deactivates an assignment so the teacher can be reassigned.
func (s *TeacherAssignmentService) Unassign(ctx context.Context, teacherID, assignmentID string, meta AuditMeta) error {
	current, err := s.loadAssignment(ctx, teacherID, assignmentID)
	if err != nil {
		return err
	}
	if !current.IsActive {
		return nil
	}
	if err := s.assignments.UpdateFlags(ctx, teacherID, assignmentID, current.IsClassTeacher, false); err != nil {
		return s.mapWriteError(ctx, err, nil, current.AcademicYearID, current.TermID, "failed to unassign teacher")
	}
	recordAudit(ctx, s.audit, s.logger, meta, models.AuditActionAssignmentUnassign, "teacher_assignments", assignmentID,
		map[string]bool{"isActive": true}, map[string]bool{"isActive": false})
	s.cache.Invalidate(ctx, dashboardCachePattern)
	s.logger.Info("teacher unassigned", zap.String("teacher_id", teacherID), zap.String("assignment_id", assignmentID))
	return nil
}

// ListClassTeachers returns every class with its class teacher for the term (active term by default).
func (s *TeacherAssignmentService) ListClassTeachers(ctx context.Context, termID string) ([]models.ClassTeacherRow, *models.Term, error) {
	term, err := resolveTerm(ctx, s.terms, termID)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.assignments.ListClassTeachers(ctx, term.ID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class teachers")
	}
	return rows, term, nil
}

// evaluateClassTeacher feeds the teacher's assignment snapshot for the term to the rule checker.
func (s *TeacherAssignmentService) evaluateClassTeacher(ctx context.Context, teacherID, academicYearID, termID string) (validation.ClassTeacherValidation, error) {
	snapshot, err := s.assignments.ListByTeacher(ctx, teacherID, models.TeacherAssignmentFilter{
		AcademicYearID:  academicYearID,
		TermID:          termID,
		IncludeInactive: true,
	})
	if err != nil {
		return validation.ClassTeacherValidation{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment snapshot")
	}
	result := validation.ValidateClassTeacherAssignment(teacherID, academicYearID, termID, snapshot)
	if result.IsValid {
		s.metrics.RecordClassTeacherCheck(ClassTeacherOutcomeValid)
	} else {
		s.metrics.RecordClassTeacherCheck(ClassTeacherOutcomeConflict)
	}
	return result, nil
}

func (s *TeacherAssignmentService) ensureClassTeacherAllowed(ctx context.Context, teacher *models.Teacher, classID, academicYearID, termID string) error {
	result, err := s.evaluateClassTeacher(ctx, teacher.ID, academicYearID, termID)
	if err != nil {
		return err
	}
	if !result.IsValid {
		return classTeacherConflict(teacher, result)
	}

	holder, err := s.assignments.FindClassTeacher(ctx, classID, termID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class teacher")
	case holder.TeacherID != teacher.ID:
		return appErrors.WithDetails(appErrors.ErrConflict,
			holder.ClassName+" already has a class teacher for this term: "+holder.TeacherName, holder)
	}
	return nil
}

// mapWriteError translates repository write failures. A class-teacher index violation means a
// concurrent request won the race after the pre-check passed. teacher may be nil for writes that
// never run the pre-check.
func (s *TeacherAssignmentService) mapWriteError(ctx context.Context, err error, teacher *models.Teacher, academicYearID, termID, message string) error {
	switch {
	case errors.Is(err, repository.ErrClassTeacherTaken) && teacher == nil:
		return appErrors.Clone(appErrors.ErrClassTeacherConflict, "")
	case errors.Is(err, repository.ErrClassTeacherTaken):
		s.metrics.RecordClassTeacherCheck(ClassTeacherOutcomeRace)
		s.logger.Warn("class-teacher write rejected by database", zap.String("teacher_id", teacher.ID), zap.String("term_id", termID))
		snapshot, listErr := s.assignments.ListByTeacher(ctx, teacher.ID, models.TeacherAssignmentFilter{AcademicYearID: academicYearID, TermID: termID})
		if listErr == nil {
			if result := validation.ValidateClassTeacherAssignment(teacher.ID, academicYearID, termID, snapshot); !result.IsValid {
				return classTeacherConflict(teacher, result)
			}
		}
		return appErrors.Clone(appErrors.ErrClassTeacherConflict, "")
	case errors.Is(err, repository.ErrClassStaffed):
		return appErrors.Clone(appErrors.ErrConflict, "class already has a class teacher for this term")
	case errors.Is(err, repository.ErrDuplicate):
		return appErrors.Clone(appErrors.ErrConflict, "teacher already assigned to this class and subject for the term")
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func classTeacherConflict(teacher *models.Teacher, result validation.ClassTeacherValidation) error {
	className := ""
	if result.ConflictingAssignment != nil {
		className = result.ConflictingAssignment.ClassName
	}
	return appErrors.WithDetails(appErrors.ErrClassTeacherConflict, validation.FormatConflictMessage(teacher.FullName, className), result)
}

func (s *TeacherAssignmentService) ensureClassSubjectTerm(ctx context.Context, classID string, subjectID *string, academicYearID, termID string) error {
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if subjectID != nil {
		if _, err := s.subjects.FindByID(ctx, *subjectID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrValidation, "subject not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
		}
	}
	term, err := s.terms.FindTerm(ctx, termID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "term not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	if term.AcademicYearID != academicYearID {
		return appErrors.Clone(appErrors.ErrValidation, "term does not belong to the academic year")
	}
	return nil
}

func (s *TeacherAssignmentService) loadTeacher(ctx context.Context, teacherID string) (*models.Teacher, error) {
	teacher, err := s.teachers.FindByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}

func (s *TeacherAssignmentService) loadAssignment(ctx context.Context, teacherID, assignmentID string) (*models.TeacherAssignmentDetail, error) {
	assignment, err := s.assignments.FindByID(ctx, teacherID, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return assignment, nil
}
