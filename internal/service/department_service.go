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
	appErrors "github.com/noah-isme/school-dashboard-api/pkg/errors"
)

type departmentRepository interface {
	List(ctx context.Context) ([]models.DepartmentDetail, error)
	FindByID(ctx context.Context, id string) (*models.DepartmentDetail, error)
	Create(ctx context.Context, department *models.Department) error
	Update(ctx context.Context, department *models.Department) error
	Delete(ctx context.Context, id string) error
}

type teacherLookup interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

// DepartmentRequest is the create/update payload for departments.
type DepartmentRequest struct {
	Code          string  `json:"code" validate:"required,max=20"`
	Name          string  `json:"name" validate:"required,max=120"`
	HeadTeacherID *string `json:"headTeacherId"`
}

// DepartmentService manages departments and their heads.
type DepartmentService struct {
	repo      departmentRepository
	teachers  teacherLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDepartmentService constructs a DepartmentService.
func NewDepartmentService(repo departmentRepository, teachers teacherLookup, validate *validator.Validate, logger *zap.Logger) *DepartmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DepartmentService{repo: repo, teachers: teachers, validator: validate, logger: logger}
}

// List returns all departments with head names and counts.
func (s *DepartmentService) List(ctx context.Context) ([]models.DepartmentDetail, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	return items, nil
}

// Get returns a department by id.
func (s *DepartmentService) Get(ctx context.Context, id string) (*models.DepartmentDetail, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	return item, nil
}

// Create adds a department.
func (s *DepartmentService) Create(ctx context.Context, req DepartmentRequest) (*models.DepartmentDetail, error) {
	department, err := s.build(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, department); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "department code already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create department")
	}
	return s.Get(ctx, department.ID)
}

// Update replaces a department's fields.
func (s *DepartmentService) Update(ctx context.Context, id string, req DepartmentRequest) (*models.DepartmentDetail, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	department, err := s.build(ctx, req)
	if err != nil {
		return nil, err
	}
	department.ID = id
	if err := s.repo.Update(ctx, department); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Clone(appErrors.ErrConflict, "department code already exists")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update department")
	}
	return s.Get(ctx, id)
}

// Delete removes a department; its teachers and subjects are detached.
func (s *DepartmentService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete department")
	}
	s.logger.Info("department deleted", zap.String("department_id", id))
	return nil
}

func (s *DepartmentService) build(ctx context.Context, req DepartmentRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}
	head := normalizeOptional(req.HeadTeacherID)
	if head != nil {
		teacher, err := s.teachers.FindByID(ctx, *head)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "head teacher not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load head teacher")
		}
		if !teacher.Active {
			return nil, appErrors.Clone(appErrors.ErrValidation, "head teacher is inactive")
		}
	}
	return &models.Department{
		Code:          strings.ToUpper(strings.TrimSpace(req.Code)),
		Name:          strings.TrimSpace(req.Name),
		HeadTeacherID: head,
	}, nil
}
