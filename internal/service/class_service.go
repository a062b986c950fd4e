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

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	FindDetail(ctx context.Context, id, termID string) (*models.ClassDetail, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, id string) error
	HasDependents(ctx context.Context, id string) (bool, error)
}

// ClassRequest captures the create/update payload for classes.
type ClassRequest struct {
	Name       string `json:"name" validate:"required,max=50"`
	GradeLevel int    `json:"gradeLevel" validate:"required,min=1,max=13"`
	Stream     string `json:"stream" validate:"omitempty,max=50"`
}

// ClassService coordinates class operations.
type ClassService struct {
	repo      classRepository
	terms     termReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs ClassService.
func NewClassService(repo classRepository, terms termReader, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, terms: terms, validator: validate, logger: logger}
}

// List returns classes with the class teacher for the filter's term (the active term by default).
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, *models.Pagination, error) {
	termID, err := s.termOrActive(ctx, filter.TermID)
	if err != nil {
		return nil, nil, err
	}
	filter.TermID = termID
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns detailed class information for a term.
func (s *ClassService) Get(ctx context.Context, id, termID string) (*models.ClassDetail, error) {
	termID, err := s.termOrActive(ctx, termID)
	if err != nil {
		return nil, err
	}
	detail, err := s.repo.FindDetail(ctx, id, termID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return detail, nil
}

// Create adds a new class.
func (s *ClassService) Create(ctx context.Context, req ClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	class := &models.Class{
		Name:       strings.TrimSpace(req.Name),
		GradeLevel: req.GradeLevel,
		Stream:     strings.TrimSpace(req.Stream),
	}
	if err := s.repo.Create(ctx, class); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "class name already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	return class, nil
}

// Update modifies a class record.
func (s *ClassService) Update(ctx context.Context, id string, req ClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	class, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	class.Name = strings.TrimSpace(req.Name)
	class.GradeLevel = req.GradeLevel
	class.Stream = strings.TrimSpace(req.Stream)
	if err := s.repo.Update(ctx, class); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "class name already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return class, nil
}

// Delete removes a class that has no students or active assignments.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}
	busy, err := s.repo.HasDependents(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class dependents")
	}
	if busy {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "class still has students or active assignments")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	return nil
}

func (s *ClassService) find(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// termOrActive validates an explicit term, or falls back to the active term.
// With no active term the class teacher columns stay empty.
func (s *ClassService) termOrActive(ctx context.Context, termID string) (string, error) {
	if s.terms == nil {
		return termID, nil
	}
	term, err := resolveTerm(ctx, s.terms, termID)
	if err != nil {
		if termID == "" && appErrors.FromError(err).Code == appErrors.ErrNotFound.Code {
			return "", nil
		}
		return "", err
	}
	return term.ID, nil
}
