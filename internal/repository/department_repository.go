package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-dashboard-api/internal/models"
	"github.com/noah-isme/school-dashboard-api/pkg/database"
)

// DepartmentRepository manages departments.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository constructs a DepartmentRepository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

const departmentDetailQuery = `
SELECT d.id, d.code, d.name, d.head_teacher_id, d.created_at, d.updated_at,
       h.full_name AS head_teacher_name,
       (SELECT COUNT(*) FROM teachers t WHERE t.department_id = d.id AND t.active) AS teacher_count,
       (SELECT COUNT(*) FROM subjects s WHERE s.department_id = d.id) AS subject_count
FROM departments d
LEFT JOIN teachers h ON h.id = d.head_teacher_id`

// List returns every department with head name and counts.
func (r *DepartmentRepository) List(ctx context.Context) ([]models.DepartmentDetail, error) {
	var departments []models.DepartmentDetail
	if err := r.db.SelectContext(ctx, &departments, departmentDetailQuery+" ORDER BY d.name ASC"); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return departments, nil
}

// FindByID fetches a department by ID.
func (r *DepartmentRepository) FindByID(ctx context.Context, id string) (*models.DepartmentDetail, error) {
	var department models.DepartmentDetail
	if err := r.db.GetContext(ctx, &department, departmentDetailQuery+" WHERE d.id = $1", id); err != nil {
		return nil, err
	}
	return &department, nil
}

// FindByHead returns the department led by the teacher.
func (r *DepartmentRepository) FindByHead(ctx context.Context, teacherID string) (*models.DepartmentDetail, error) {
	var department models.DepartmentDetail
	if err := r.db.GetContext(ctx, &department, departmentDetailQuery+" WHERE d.head_teacher_id = $1 LIMIT 1", teacherID); err != nil {
		return nil, err
	}
	return &department, nil
}

// Create inserts a department; a duplicate code yields ErrDuplicate.
func (r *DepartmentRepository) Create(ctx context.Context, department *models.Department) error {
	if department.ID == "" {
		department.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	department.CreatedAt = now
	department.UpdatedAt = now
	const query = `INSERT INTO departments (id, code, name, head_teacher_id, created_at, updated_at)
		VALUES (:id, :code, :name, :head_teacher_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, department); err != nil {
		if database.IsUniqueViolation(err, "") {
			return ErrDuplicate
		}
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

// Update modifies a department.
func (r *DepartmentRepository) Update(ctx context.Context, department *models.Department) error {
	department.UpdatedAt = time.Now().UTC()
	const query = `UPDATE departments SET code = :code, name = :name, head_teacher_id = :head_teacher_id, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, department)
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return ErrDuplicate
		}
		return fmt.Errorf("update department: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a department after detaching its teachers and subjects.
func (r *DepartmentRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete department: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range []string{
		`UPDATE teachers SET department_id = NULL WHERE department_id = $1`,
		`UPDATE subjects SET department_id = NULL WHERE department_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("detach department: %w", err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM departments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete department: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}
