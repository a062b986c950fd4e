package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-dashboard-api/internal/models"
	"github.com/noah-isme/school-dashboard-api/pkg/database"
)

const (
	yearColumns = `id, name, start_date, end_date, is_current, created_at`
	termColumns = `id, academic_year_id, name, start_date, end_date, is_active, created_at`
)

// AcademicRepository persists academic years and their terms.
type AcademicRepository struct {
	db *sqlx.DB
}

// NewAcademicRepository constructs an AcademicRepository.
func NewAcademicRepository(db *sqlx.DB) *AcademicRepository {
	return &AcademicRepository{db: db}
}

// ListYears returns academic years newest first.
func (r *AcademicRepository) ListYears(ctx context.Context) ([]models.AcademicYear, error) {
	var years []models.AcademicYear
	if err := r.db.SelectContext(ctx, &years, `SELECT `+yearColumns+` FROM academic_years ORDER BY start_date DESC`); err != nil {
		return nil, fmt.Errorf("list academic years: %w", err)
	}
	return years, nil
}

// FindYear fetches an academic year.
func (r *AcademicRepository) FindYear(ctx context.Context, id string) (*models.AcademicYear, error) {
	var year models.AcademicYear
	if err := r.db.GetContext(ctx, &year, `SELECT `+yearColumns+` FROM academic_years WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &year, nil
}

// CreateYear inserts an academic year. When IsCurrent is set the previous current year is cleared.
func (r *AcademicRepository) CreateYear(ctx context.Context, year *models.AcademicYear) error {
	if year.ID == "" {
		year.ID = uuid.NewString()
	}
	year.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create academic year: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if year.IsCurrent {
		if _, err := tx.ExecContext(ctx, `UPDATE academic_years SET is_current = FALSE WHERE is_current`); err != nil {
			return fmt.Errorf("clear current academic year: %w", err)
		}
	}
	const query = `INSERT INTO academic_years (id, name, start_date, end_date, is_current, created_at)
		VALUES (:id, :name, :start_date, :end_date, :is_current, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, year); err != nil {
		if database.IsUniqueViolation(err, "") {
			return ErrDuplicate
		}
		return fmt.Errorf("create academic year: %w", err)
	}
	return tx.Commit()
}

// ListTerms returns terms, optionally for one academic year.
func (r *AcademicRepository) ListTerms(ctx context.Context, academicYearID string) ([]models.Term, error) {
	query := `SELECT ` + termColumns + ` FROM terms`
	var args []interface{}
	if academicYearID != "" {
		query += ` WHERE academic_year_id = $1`
		args = append(args, academicYearID)
	}
	query += ` ORDER BY start_date ASC`
	var terms []models.Term
	if err := r.db.SelectContext(ctx, &terms, query, args...); err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	return terms, nil
}

// FindTerm fetches a term.
func (r *AcademicRepository) FindTerm(ctx context.Context, id string) (*models.Term, error) {
	var term models.Term
	if err := r.db.GetContext(ctx, &term, `SELECT `+termColumns+` FROM terms WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &term, nil
}

// FindActiveTerm returns the single active term.
func (r *AcademicRepository) FindActiveTerm(ctx context.Context) (*models.Term, error) {
	var term models.Term
	if err := r.db.GetContext(ctx, &term, `SELECT `+termColumns+` FROM terms WHERE is_active LIMIT 1`); err != nil {
		return nil, err
	}
	return &term, nil
}

// CreateTerm inserts a term.
func (r *AcademicRepository) CreateTerm(ctx context.Context, term *models.Term) error {
	if term.ID == "" {
		term.ID = uuid.NewString()
	}
	term.CreatedAt = time.Now().UTC()
	term.IsActive = false
	const query = `INSERT INTO terms (id, academic_year_id, name, start_date, end_date, is_active, created_at)
		VALUES (:id, :academic_year_id, :name, :start_date, :end_date, :is_active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		if database.IsUniqueViolation(err, "") {
			return ErrDuplicate
		}
		return fmt.Errorf("create term: %w", err)
	}
	return nil
}

// ActivateTerm makes the term the only active one and its year current.
func (r *AcademicRepository) ActivateTerm(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activate term: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var yearID string
	if err := tx.GetContext(ctx, &yearID, `SELECT academic_year_id FROM terms WHERE id = $1 FOR UPDATE`, id); err != nil {
		return err
	}
	stmts := []struct {
		query string
		args  []interface{}
	}{
		{`UPDATE terms SET is_active = (id = $1)`, []interface{}{id}},
		{`UPDATE academic_years SET is_current = (id = $1)`, []interface{}{yearID}},
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt.query, stmt.args...); err != nil {
			return fmt.Errorf("activate term: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit activate term: %w", err)
	}
	return nil
}

