package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-dashboard-api/internal/models"
	"github.com/noah-isme/school-dashboard-api/internal/repository"
	appErrors "github.com/noah-isme/school-dashboard-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	ListAll(ctx context.Context) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id string) error
	UpsertMany(ctx context.Context, students []models.Student) (int, error)
}

type classLookup interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// StudentSnapshotStore persists the whole student collection outside the database.
type StudentSnapshotStore interface {
	Load(ctx context.Context) ([]models.Student, error)
	Save(ctx context.Context, students []models.Student) error
}

// StudentRequest holds the create/update payload for students.
type StudentRequest struct {
	AdmissionNo   string  `json:"admissionNo" validate:"required,max=30"`
	FullName      string  `json:"fullName" validate:"required,max=150"`
	Gender        string  `json:"gender" validate:"required,oneof=M F"`
	DateOfBirth   *string `json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	ClassID       *string `json:"classId"`
	GuardianName  *string `json:"guardianName" validate:"omitempty,max=150"`
	GuardianPhone *string `json:"guardianPhone" validate:"omitempty,max=50"`
	Active        *bool   `json:"active"`
}

// SnapshotResult reports how many students a snapshot operation touched.
type SnapshotResult struct {
	Count int       `json:"count"`
	At    time.Time `json:"at"`
}

// StudentService handles student use-cases.
type StudentService struct {
	repo      studentRepository
	classes   classLookup
	snapshots StudentSnapshotStore
	audit     auditLogWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, classes classLookup, snapshots StudentSnapshotStore, audit auditLogWriter, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, classes: classes, snapshots: snapshots, audit: audit, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a student by id.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a new active student.
func (s *StudentService) Create(ctx context.Context, req StudentRequest) (*models.Student, error) {
	student := &models.Student{Active: true}
	if err := s.apply(ctx, student, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, student); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "admission number already used")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update modifies a student.
func (s *StudentService) Update(ctx context.Context, id string, req StudentRequest) (*models.Student, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	student := detail.Student
	if err := s.apply(ctx, &student, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, &student); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "admission number already used")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return &student, nil
}

// Deactivate marks a student inactive.
func (s *StudentService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	return nil
}

// SaveSnapshot writes the current student collection to the snapshot store.
func (s *StudentService) SaveSnapshot(ctx context.Context) (*SnapshotResult, error) {
	if s.snapshots == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student snapshots are not configured")
	}
	students, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	if err := s.snapshots.Save(ctx, students); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save student snapshot")
	}
	s.logger.Info("student snapshot saved", zap.Int("count", len(students)))
	return &SnapshotResult{Count: len(students), At: time.Now().UTC()}, nil
}

// RestoreSnapshot loads the saved collection and upserts it into the database.
func (s *StudentService) RestoreSnapshot(ctx context.Context, meta AuditMeta) (*SnapshotResult, error) {
	if s.snapshots == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student snapshots are not configured")
	}
	students, err := s.snapshots.Load(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student snapshot")
	}
	if len(students) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no student snapshot to restore")
	}
	count, err := s.repo.UpsertMany(ctx, students)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "snapshot conflicts with existing admission numbers")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore student snapshot")
	}
	recordAudit(ctx, s.audit, s.logger, meta, models.AuditActionSnapshotRestore, "students", "", nil, map[string]int{"count": count})
	s.logger.Info("student snapshot restored", zap.Int("count", count))
	return &SnapshotResult{Count: count, At: time.Now().UTC()}, nil
}

func (s *StudentService) apply(ctx context.Context, student *models.Student, req StudentRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	classID := normalizeOptional(req.ClassID)
	if classID != nil && s.classes != nil {
		if _, err := s.classes.FindByID(ctx, *classID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrValidation, "class not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
		}
	}
	student.DateOfBirth = nil
	if dob := normalizeOptional(req.DateOfBirth); dob != nil {
		parsed, err := time.Parse("2006-01-02", *dob)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date of birth")
		}
		student.DateOfBirth = &parsed
	}
	student.AdmissionNo = strings.ToUpper(strings.TrimSpace(req.AdmissionNo))
	student.FullName = strings.TrimSpace(req.FullName)
	student.Gender = req.Gender
	student.ClassID = classID
	student.GuardianName = normalizeOptional(req.GuardianName)
	student.GuardianPhone = normalizeOptional(req.GuardianPhone)
	if req.Active != nil {
		student.Active = *req.Active
	}
	return nil
}
