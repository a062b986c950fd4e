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

type academicRepository interface {
	ListYears(ctx context.Context) ([]models.AcademicYear, error)
	FindYear(ctx context.Context, id string) (*models.AcademicYear, error)
	CreateYear(ctx context.Context, year *models.AcademicYear) error
	ListTerms(ctx context.Context, academicYearID string) ([]models.Term, error)
	FindTerm(ctx context.Context, id string) (*models.Term, error)
	FindActiveTerm(ctx context.Context) (*models.Term, error)
	CreateTerm(ctx context.Context, term *models.Term) error
	ActivateTerm(ctx context.Context, id string) error
}

// termReader resolves terms for services that scope data by term.
type termReader interface {
	FindTerm(ctx context.Context, id string) (*models.Term, error)
	FindActiveTerm(ctx context.Context) (*models.Term, error)
}

// CreateAcademicYearRequest is the payload for a new academic year.
type CreateAcademicYearRequest struct {
	Name      string `json:"name" validate:"required,max=50"`
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02"`
	IsCurrent bool   `json:"isCurrent"`
}

// CreateTermRequest is the payload for a new term inside a year.
type CreateTermRequest struct {
	AcademicYearID string `json:"academicYearId" validate:"required"`
	Name           string `json:"name" validate:"required,max=50"`
	StartDate      string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate        string `json:"endDate" validate:"required,datetime=2006-01-02"`
}

// AcademicService manages academic years and terms.
type AcademicService struct {
	repo      academicRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAcademicService constructs an AcademicService.
func NewAcademicService(repo academicRepository, validate *validator.Validate, logger *zap.Logger) *AcademicService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AcademicService{repo: repo, validator: validate, logger: logger}
}

// ListYears returns academic years, newest first.
func (s *AcademicService) ListYears(ctx context.Context) ([]models.AcademicYear, error) {
	years, err := s.repo.ListYears(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list academic years")
	}
	return years, nil
}

// CreateYear adds an academic year. Marking it current clears the previous current year.
func (s *AcademicService) CreateYear(ctx context.Context, req CreateAcademicYearRequest) (*models.AcademicYear, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid academic year payload")
	}
	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	year := &models.AcademicYear{
		Name:      strings.TrimSpace(req.Name),
		StartDate: start,
		EndDate:   end,
		IsCurrent: req.IsCurrent,
	}
	if err := s.repo.CreateYear(ctx, year); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "academic year already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create academic year")
	}
	return year, nil
}

// ListTerms returns the terms of an academic year.
func (s *AcademicService) ListTerms(ctx context.Context, academicYearID string) ([]models.Term, error) {
	if _, err := s.findYear(ctx, academicYearID); err != nil {
		return nil, err
	}
	terms, err := s.repo.ListTerms(ctx, academicYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list terms")
	}
	return terms, nil
}

// CreateTerm adds an inactive term that must fall inside its academic year.
func (s *AcademicService) CreateTerm(ctx context.Context, req CreateTermRequest) (*models.Term, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}
	year, err := s.findYear(ctx, req.AcademicYearID)
	if err != nil {
		return nil, err
	}
	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	if start.Before(year.StartDate) || end.After(year.EndDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "term must fall within its academic year")
	}
	term := &models.Term{
		AcademicYearID: year.ID,
		Name:           strings.TrimSpace(req.Name),
		StartDate:      start,
		EndDate:        end,
	}
	if err := s.repo.CreateTerm(ctx, term); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "term already exists for this academic year")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create term")
	}
	return term, nil
}

// ActivateTerm makes the term the single active term and its year current.
func (s *AcademicService) ActivateTerm(ctx context.Context, id string) (*models.Term, error) {
	if err := s.repo.ActivateTerm(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate term")
	}
	s.logger.Info("term activated", zap.String("term_id", id))
	return resolveTerm(ctx, s.repo, id)
}

// ActiveTerm returns the currently active term.
func (s *AcademicService) ActiveTerm(ctx context.Context) (*models.Term, error) {
	return resolveTerm(ctx, s.repo, "")
}

func (s *AcademicService) findYear(ctx context.Context, id string) (*models.AcademicYear, error) {
	year, err := s.repo.FindYear(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}
	return year, nil
}

// resolveTerm loads termID, or the active term when termID is empty.
func resolveTerm(ctx context.Context, terms termReader, termID string) (*models.Term, error) {
	var (
		term *models.Term
		err  error
	)
	if strings.TrimSpace(termID) == "" {
		term, err = terms.FindActiveTerm(ctx)
	} else {
		term, err = terms.FindTerm(ctx, termID)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if termID == "" {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "no active term")
			}
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	return term, nil
}

func parseDateRange(startRaw, endRaw string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid start date")
	}
	end, err := time.Parse("2006-01-02", endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid end date")
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
	}
	return start, end, nil
}
