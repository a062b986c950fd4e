package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-dashboard-api/internal/models"
	"github.com/noah-isme/school-dashboard-api/pkg/database"
)

// ClassRepository handles persistence for classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// classDetailSelect joins the term's active class teacher; $1 is the term id (may be empty).
const classDetailSelect = `
SELECT c.id, c.name, c.grade_level, c.stream, c.created_at, c.updated_at,
       ta.teacher_id AS class_teacher_id, t.full_name AS class_teacher_name,
       (SELECT COUNT(*) FROM students s WHERE s.class_id = c.id AND s.active) AS student_count
FROM classes c
LEFT JOIN LATERAL (
    SELECT a.teacher_id FROM teacher_assignments a
    WHERE a.class_id = c.id AND a.term_id = $1 AND a.is_class_teacher AND a.is_active
    ORDER BY a.created_at ASC LIMIT 1
) ta ON TRUE
LEFT JOIN teachers t ON t.id = ta.teacher_id`

// List returns classes with the class teacher for the filter's term.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	args := []interface{}{filter.TermID}
	var conditions []string
	if filter.GradeLevel > 0 {
		args = append(args, filter.GradeLevel)
		conditions = append(conditions, fmt.Sprintf("c.grade_level = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(c.name) LIKE $%d", len(args)))
	}
	filterClause := where(" WHERE 1=1", conditions)
	limit, offset := paginate(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY c.grade_level ASC, c.name ASC LIMIT %d OFFSET %d", classDetailSelect, filterClause, limit, offset)
	var classes []models.ClassDetail
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM (" + classDetailSelect + filterClause + ") AS counted"
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// FindByID fetches a class.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, name, grade_level, stream, created_at, updated_at FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// FindDetail fetches a class with its class teacher for the term.
func (r *ClassRepository) FindDetail(ctx context.Context, id, termID string) (*models.ClassDetail, error) {
	var class models.ClassDetail
	if err := r.db.GetContext(ctx, &class, classDetailSelect+" WHERE c.id = $2", termID, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// Create inserts a class; a duplicate name yields ErrDuplicate.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	class.CreatedAt = now
	class.UpdatedAt = now
	const query = `INSERT INTO classes (id, name, grade_level, stream, created_at, updated_at)
		VALUES (:id, :name, :grade_level, :stream, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		if database.IsUniqueViolation(err, "") {
			return ErrDuplicate
		}
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update modifies a class.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET name = :name, grade_level = :grade_level, stream = :stream, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, class)
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return ErrDuplicate
		}
		return fmt.Errorf("update class: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a class that has no students or assignments.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// HasDependents reports whether students or active assignments reference the class.
func (r *ClassRepository) HasDependents(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM students WHERE class_id = $1) OR EXISTS (SELECT 1 FROM teacher_assignments WHERE class_id = $1 AND is_active)`
	var found bool
	if err := r.db.GetContext(ctx, &found, query, id); err != nil {
		return false, fmt.Errorf("check class dependents: %w", err)
	}
	return found, nil
}
