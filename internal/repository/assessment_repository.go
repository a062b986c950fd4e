package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-dashboard-api/internal/models"
)

const assessmentColumns = `id, class_id, subject_id, term_id, title, type, max_score, held_on, created_by, created_at, updated_at`

// AssessmentRepository persists assessments and their grades.
type AssessmentRepository struct {
	db *sqlx.DB
}

// NewAssessmentRepository constructs an AssessmentRepository.
func NewAssessmentRepository(db *sqlx.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// Create inserts an assessment.
func (r *AssessmentRepository) Create(ctx context.Context, assessment *models.Assessment) error {
	if assessment.ID == "" {
		assessment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	assessment.CreatedAt = now
	assessment.UpdatedAt = now
	const query = `INSERT INTO assessments (id, class_id, subject_id, term_id, title, type, max_score, held_on, created_by, created_at, updated_at)
		VALUES (:id, :class_id, :subject_id, :term_id, :title, :type, :max_score, :held_on, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assessment); err != nil {
		return fmt.Errorf("create assessment: %w", err)
	}
	return nil
}

// FindByID fetches an assessment.
func (r *AssessmentRepository) FindByID(ctx context.Context, id string) (*models.Assessment, error) {
	var assessment models.Assessment
	if err := r.db.GetContext(ctx, &assessment, `SELECT `+assessmentColumns+` FROM assessments WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &assessment, nil
}

// List returns assessments matching the filter, latest first.
func (r *AssessmentRepository) List(ctx context.Context, filter models.AssessmentFilter) ([]models.Assessment, error) {
	var conditions []string
	var args []interface{}
	for _, f := range []struct{ column, value string }{
		{"class_id", filter.ClassID},
		{"subject_id", filter.SubjectID},
		{"term_id", filter.TermID},
	} {
		if f.value == "" {
			continue
		}
		args = append(args, f.value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", f.column, len(args)))
	}
	query := where(`SELECT `+assessmentColumns+` FROM assessments WHERE 1=1`, conditions) + " ORDER BY held_on DESC, title ASC"
	var assessments []models.Assessment
	if err := r.db.SelectContext(ctx, &assessments, query, args...); err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return assessments, nil
}

// UpsertGrades writes grades for an assessment atomically.
func (r *AssessmentRepository) UpsertGrades(ctx context.Context, grades []models.Grade) error {
	if len(grades) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin grade batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO grades (id, assessment_id, student_id, score, remarks, created_at, updated_at)
		VALUES (:id, :assessment_id, :student_id, :score, :remarks, :created_at, :updated_at)
		ON CONFLICT (assessment_id, student_id) DO UPDATE SET score = EXCLUDED.score, remarks = EXCLUDED.remarks, updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	for i := range grades {
		g := &grades[i]
		if g.ID == "" {
			g.ID = uuid.NewString()
		}
		g.CreatedAt = now
		g.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, g); err != nil {
			return fmt.Errorf("upsert grade for %s: %w", g.StudentID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grade batch: %w", err)
	}
	return nil
}

// ListGrades returns grades for an assessment with student names.
func (r *AssessmentRepository) ListGrades(ctx context.Context, assessmentID string) ([]models.GradeRow, error) {
	const query = `
SELECT g.id, g.assessment_id, g.student_id, g.score, g.remarks, g.created_at, g.updated_at, s.full_name AS student_name
FROM grades g
JOIN students s ON s.id = g.student_id
WHERE g.assessment_id = $1
ORDER BY s.full_name ASC`
	var rows []models.GradeRow
	if err := r.db.SelectContext(ctx, &rows, query, assessmentID); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return rows, nil
}

// StudentSubjectAverages returns the student's average percentage per subject in a term.
func (r *AssessmentRepository) StudentSubjectAverages(ctx context.Context, studentID, termID string) ([]models.SubjectAverage, error) {
	const query = `
SELECT a.subject_id, sub.name AS subject_name, COUNT(*) AS assessments,
       ROUND(AVG(g.score / NULLIF(a.max_score, 0) * 100)::numeric, 2) AS average
FROM grades g
JOIN assessments a ON a.id = g.assessment_id
JOIN subjects sub ON sub.id = a.subject_id
WHERE g.student_id = $1 AND a.term_id = $2
GROUP BY a.subject_id, sub.name
ORDER BY sub.name ASC`
	var rows []models.SubjectAverage
	if err := r.db.SelectContext(ctx, &rows, query, studentID, termID); err != nil {
		return nil, fmt.Errorf("student subject averages: %w", err)
	}
	return rows, nil
}

// DepartmentSubjectAverages returns average percentage per subject of a department in a term.
func (r *AssessmentRepository) DepartmentSubjectAverages(ctx context.Context, departmentID, termID string) ([]models.SubjectAverage, error) {
	const query = `
SELECT sub.id AS subject_id, sub.name AS subject_name, COUNT(DISTINCT a.id) AS assessments,
       COALESCE(ROUND(AVG(g.score / NULLIF(a.max_score, 0) * 100)::numeric, 2), 0) AS average
FROM subjects sub
LEFT JOIN assessments a ON a.subject_id = sub.id AND a.term_id = $2
LEFT JOIN grades g ON g.assessment_id = a.id
WHERE sub.department_id = $1
GROUP BY sub.id, sub.name
ORDER BY sub.name ASC`
	var rows []models.SubjectAverage
	if err := r.db.SelectContext(ctx, &rows, query, departmentID, termID); err != nil {
		return nil, fmt.Errorf("department subject averages: %w", err)
	}
	return rows, nil
}
