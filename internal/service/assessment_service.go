package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-dashboard-api/internal/models"
	appErrors "github.com/noah-isme/school-dashboard-api/pkg/errors"
)

type assessmentRepository interface {
	Create(ctx context.Context, assessment *models.Assessment) error
	FindByID(ctx context.Context, id string) (*models.Assessment, error)
	List(ctx context.Context, filter models.AssessmentFilter) ([]models.Assessment, error)
	UpsertGrades(ctx context.Context, grades []models.Grade) error
	ListGrades(ctx context.Context, assessmentID string) ([]models.GradeRow, error)
	StudentSubjectAverages(ctx context.Context, studentID, termID string) ([]models.SubjectAverage, error)
}

type assignmentChecker interface {
	HasActiveAssignment(ctx context.Context, teacherID, classID, subjectID, termID string) (bool, error)
}

// CreateAssessmentRequest describes a new assessment.
type CreateAssessmentRequest struct {
	ClassID   string                `json:"classId" validate:"required"`
	SubjectID string                `json:"subjectId" validate:"required"`
	TermID    string                `json:"termId"`
	Title     string                `json:"title" validate:"required,max=150"`
	Type      models.AssessmentType `json:"type" validate:"required,oneof=QUIZ ASSIGNMENT TEST EXAM"`
	MaxScore  float64               `json:"maxScore" validate:"gt=0,lte=1000"`
	HeldOn    string                `json:"heldOn" validate:"required,datetime=2006-01-02"`
}

// GradeEntry is one student's score.
type GradeEntry struct {
	StudentID string  `json:"studentId" validate:"required"`
	Score     float64 `json:"score" validate:"gte=0"`
	Remarks   *string `json:"remarks" validate:"omitempty,max=255"`
}

// RecordGradesRequest is a bulk grade submission for one assessment.
type RecordGradesRequest struct {
	Grades []GradeEntry `json:"grades" validate:"required,min=1,dive"`
}

// AssessmentService manages assessments, grades and term reports.
type AssessmentService struct {
	repo        assessmentRepository
	classes     classLookup
	subjects    subjectLookup
	students    classStudentReader
	terms       termReader
	assignments assignmentChecker
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// AssessmentServiceParams groups the collaborators of AssessmentService.
type AssessmentServiceParams struct {
	Repo        assessmentRepository
	Classes     classLookup
	Subjects    subjectLookup
	Students    classStudentReader
	Terms       termReader
	Assignments assignmentChecker
	Cache       *CacheService
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// NewAssessmentService constructs an AssessmentService.
func NewAssessmentService(params AssessmentServiceParams) *AssessmentService {
	if params.Validator == nil {
		params.Validator = validator.New()
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	return &AssessmentService{
		repo:        params.Repo,
		classes:     params.Classes,
		subjects:    params.Subjects,
		students:    params.Students,
		terms:       params.Terms,
		assignments: params.Assignments,
		cache:       params.Cache,
		validator:   params.Validator,
		logger:      params.Logger,
	}
}

// Create records a new assessment for a class and subject in a term.
func (s *AssessmentService) Create(ctx context.Context, actor *models.JWTClaims, req CreateAssessmentRequest) (*models.Assessment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assessment payload")
	}
	heldOn, err := time.Parse("2006-01-02", req.HeldOn)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assessment date")
	}
	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		return nil, lookupError(err, "class")
	}
	if _, err := s.subjects.FindByID(ctx, req.SubjectID); err != nil {
		return nil, lookupError(err, "subject")
	}
	term, err := resolveTerm(ctx, s.terms, req.TermID)
	if err != nil {
		return nil, err
	}
	if !term.Contains(heldOn) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assessment date is outside the term")
	}
	if err := s.authorizeTeaching(ctx, actor, req.ClassID, req.SubjectID, term.ID); err != nil {
		return nil, err
	}

	assessment := &models.Assessment{
		ClassID:   req.ClassID,
		SubjectID: req.SubjectID,
		TermID:    term.ID,
		Title:     strings.TrimSpace(req.Title),
		Type:      req.Type,
		MaxScore:  req.MaxScore,
		HeldOn:    heldOn,
		CreatedBy: actor.UserID,
	}
	if err := s.repo.Create(ctx, assessment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assessment")
	}
	s.logger.Info("assessment created", zap.String("assessment_id", assessment.ID), zap.String("class_id", assessment.ClassID))
	return assessment, nil
}

// List returns assessments matching the filter.
func (s *AssessmentService) List(ctx context.Context, filter models.AssessmentFilter) ([]models.Assessment, error) {
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assessments")
	}
	return items, nil
}

// RecordGrades upserts scores for an assessment. Scores must lie within 0..maxScore and every
// student must belong to the assessment's class.
func (s *AssessmentService) RecordGrades(ctx context.Context, actor *models.JWTClaims, assessmentID string, req RecordGradesRequest) ([]models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grades payload")
	}
	assessment, err := s.loadAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeTeaching(ctx, actor, assessment.ClassID, assessment.SubjectID, assessment.TermID); err != nil {
		return nil, err
	}
	roster, err := s.students.ListByClass(ctx, assessment.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	members := make(map[string]struct{}, len(roster))
	for _, st := range roster {
		members[st.ID] = struct{}{}
	}

	seen := make(map[string]struct{}, len(req.Grades))
	grades := make([]models.Grade, 0, len(req.Grades))
	for _, entry := range req.Grades {
		if _, ok := members[entry.StudentID]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s is not in the class", entry.StudentID))
		}
		if _, dup := seen[entry.StudentID]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s appears more than once", entry.StudentID))
		}
		if entry.Score > assessment.MaxScore {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("score for student %s exceeds the maximum of %g", entry.StudentID, assessment.MaxScore))
		}
		seen[entry.StudentID] = struct{}{}
		grades = append(grades, models.Grade{
			AssessmentID: assessment.ID,
			StudentID:    entry.StudentID,
			Score:        entry.Score,
			Remarks:      normalizeOptional(entry.Remarks),
		})
	}

	if err := s.repo.UpsertGrades(ctx, grades); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record grades")
	}
	s.cache.Invalidate(ctx, dashboardCachePattern)
	s.logger.Info("grades recorded", zap.String("assessment_id", assessment.ID), zap.Int("grades", len(grades)))
	return grades, nil
}

// Grades lists the recorded grades of an assessment.
func (s *AssessmentService) Grades(ctx context.Context, assessmentID string) ([]models.GradeRow, error) {
	if _, err := s.loadAssessment(ctx, assessmentID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListGrades(ctx, assessmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return rows, nil
}

// StudentReport averages a student's percentages per subject over a term.
func (s *AssessmentService) StudentReport(ctx context.Context, actor *models.JWTClaims, studentID, termID string) (*models.StudentReport, error) {
	if actor != nil && actor.Role == models.RoleStudent && actor.ProfileID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only view their own report")
	}
	term, err := resolveTerm(ctx, s.terms, termID)
	if err != nil {
		return nil, err
	}
	subjects, err := s.repo.StudentSubjectAverages(ctx, studentID, term.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build report")
	}
	report := &models.StudentReport{StudentID: studentID, TermID: term.ID, Subjects: subjects}
	report.ComputeOverall()
	return report, nil
}

func (s *AssessmentService) loadAssessment(ctx context.Context, id string) (*models.Assessment, error) {
	assessment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "assessment")
	}
	return assessment, nil
}

func (s *AssessmentService) authorizeTeaching(ctx context.Context, actor *models.JWTClaims, classID, subjectID, termID string) error {
	if actor == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if actor.IsAdmin() {
		return nil
	}
	if !actor.IsTeachingStaff() || actor.ProfileID == "" {
		return appErrors.Clone(appErrors.ErrForbidden, "only teachers of the class can manage its assessments")
	}
	ok, err := s.assignments.HasActiveAssignment(ctx, actor.ProfileID, classID, subjectID, termID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teaching assignment")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "only teachers of the class can manage its assessments")
	}
	return nil
}

func lookupError(err error, entity string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, entity+" not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load "+entity)
}
