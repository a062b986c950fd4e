package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-dashboard-api/internal/models"
	appErrors "github.com/noah-isme/school-dashboard-api/pkg/errors"
)

type attendanceRepository interface {
	UpsertBatch(ctx context.Context, records []models.AttendanceRecord) error
	ListByClassAndDate(ctx context.Context, classID string, date time.Time) ([]models.AttendanceRegisterRow, error)
	SummaryForStudent(ctx context.Context, studentID, termID string) (*models.AttendanceSummary, error)
	SummaryForClass(ctx context.Context, classID, termID string) ([]models.AttendanceSummary, error)
}

type classStudentReader interface {
	ListByClass(ctx context.Context, classID string) ([]models.Student, error)
}

type classTeacherFinder interface {
	FindClassTeacher(ctx context.Context, classID, termID string) (*models.TeacherAssignmentDetail, error)
}

// AttendanceEntry is one student's mark in a register submission.
type AttendanceEntry struct {
	StudentID string                  `json:"studentId" validate:"required"`
	Status    models.AttendanceStatus `json:"status" validate:"required,oneof=PRESENT ABSENT LATE EXCUSED"`
	Note      *string                 `json:"note" validate:"omitempty,max=255"`
}

// RecordAttendanceRequest is a bulk register submission for one class and day.
type RecordAttendanceRequest struct {
	ClassID string            `json:"classId" validate:"required"`
	Date    string            `json:"date" validate:"required,datetime=2006-01-02"`
	TermID  string            `json:"termId"`
	Entries []AttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}

// AttendanceService records and summarises class registers.
type AttendanceService struct {
	repo          attendanceRepository
	classes       classLookup
	students      classStudentReader
	terms         termReader
	classTeachers classTeacherFinder
	cache         *CacheService
	validator     *validator.Validate
	logger        *zap.Logger
	now           func() time.Time
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(repo attendanceRepository, classes classLookup, students classStudentReader, terms termReader, classTeachers classTeacherFinder, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		repo:          repo,
		classes:       classes,
		students:      students,
		terms:         terms,
		classTeachers: classTeachers,
		cache:         cache,
		validator:     validate,
		logger:        logger,
		now:           time.Now,
	}
}

// Record upserts a class register. Admins may record any class; teachers only the class they
// are the active class teacher of for the term.
func (s *AttendanceService) Record(ctx context.Context, actor *models.JWTClaims, req RecordAttendanceRequest) ([]models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance date")
	}
	if date.After(s.now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attendance cannot be recorded for a future date")
	}
	if err := s.ensureClass(ctx, req.ClassID); err != nil {
		return nil, err
	}
	term, err := resolveTerm(ctx, s.terms, req.TermID)
	if err != nil {
		return nil, err
	}
	if !term.Contains(date) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date is outside the term")
	}
	if err := s.authorizeClassTeacher(ctx, actor, req.ClassID, term.ID); err != nil {
		return nil, err
	}

	roster, err := s.students.ListByClass(ctx, req.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	enrolled := make(map[string]bool, len(roster))
	for _, st := range roster {
		enrolled[st.ID] = st.Active
	}

	seen := make(map[string]bool, len(req.Entries))
	records := make([]models.AttendanceRecord, 0, len(req.Entries))
	for _, entry := range req.Entries {
		if !enrolled[entry.StudentID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s is not an active member of the class", entry.StudentID))
		}
		if seen[entry.StudentID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s appears more than once", entry.StudentID))
		}
		seen[entry.StudentID] = true
		records = append(records, models.AttendanceRecord{
			StudentID:  entry.StudentID,
			ClassID:    req.ClassID,
			TermID:     term.ID,
			Date:       date,
			Status:     entry.Status,
			Note:       normalizeOptional(entry.Note),
			RecordedBy: actor.UserID,
		})
	}

	if err := s.repo.UpsertBatch(ctx, records); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}
	s.cache.Invalidate(ctx, dashboardCachePattern)
	s.logger.Info("attendance recorded",
		zap.String("class_id", req.ClassID),
		zap.String("date", req.Date),
		zap.Int("entries", len(records)),
		zap.String("recorded_by", actor.UserID),
	)
	return records, nil
}

// Register lists the marks of a class for a day.
func (s *AttendanceService) Register(ctx context.Context, classID, rawDate string) ([]models.AttendanceRegisterRow, error) {
	date, err := time.Parse("2006-01-02", rawDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance date")
	}
	if err := s.ensureClass(ctx, classID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByClassAndDate(ctx, classID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance register")
	}
	return rows, nil
}

// StudentSummary counts a student's marks over a term. Students may only read their own.
func (s *AttendanceService) StudentSummary(ctx context.Context, actor *models.JWTClaims, studentID, termID string) (*models.AttendanceSummary, error) {
	if actor != nil && actor.Role == models.RoleStudent && actor.ProfileID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only view their own attendance")
	}
	term, err := resolveTerm(ctx, s.terms, termID)
	if err != nil {
		return nil, err
	}
	summary, err := s.repo.SummaryForStudent(ctx, studentID, term.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise attendance")
	}
	return summary, nil
}

// ClassSummary returns per-student summaries for a class over a term.
func (s *AttendanceService) ClassSummary(ctx context.Context, classID, termID string) ([]models.AttendanceSummary, error) {
	if err := s.ensureClass(ctx, classID); err != nil {
		return nil, err
	}
	term, err := resolveTerm(ctx, s.terms, termID)
	if err != nil {
		return nil, err
	}
	summaries, err := s.repo.SummaryForClass(ctx, classID, term.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise class attendance")
	}
	return summaries, nil
}

func (s *AttendanceService) ensureClass(ctx context.Context, classID string) error {
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return nil
}

func (s *AttendanceService) authorizeClassTeacher(ctx context.Context, actor *models.JWTClaims, classID, termID string) error {
	if actor == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if actor.IsAdmin() {
		return nil
	}
	if !actor.IsTeachingStaff() || actor.ProfileID == "" {
		return appErrors.Clone(appErrors.ErrForbidden, "only the class teacher can record attendance")
	}
	holder, err := s.classTeachers.FindClassTeacher(ctx, classID, termID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrForbidden, "class has no class teacher for this term")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class teacher")
	}
	if holder.TeacherID != actor.ProfileID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the class teacher can record attendance")
	}
	return nil
}
