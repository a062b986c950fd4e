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

const studentColumns = `s.id, s.admission_no, s.full_name, s.gender, s.date_of_birth, s.class_id, s.guardian_name, s.guardian_phone, s.active, s.created_at, s.updated_at`

// StudentRepository handles persistence for students.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students with their class names.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	var conditions []string
	var args []interface{}
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		conditions = append(conditions, fmt.Sprintf("s.class_id = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("s.active = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.full_name) LIKE $%d OR LOWER(s.admission_no) LIKE $%d)", len(args), len(args)))
	}
	base := where("FROM students s LEFT JOIN classes c ON c.id = s.class_id WHERE 1=1", conditions)

	order := orderBy(filter.SortBy, filter.SortOrder, map[string]string{
		"fullName":    "s.full_name",
		"admissionNo": "s.admission_no",
		"createdAt":   "s.created_at",
	}, "s.created_at")
	limit, offset := paginate(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s, c.name AS class_name %s ORDER BY %s LIMIT %d OFFSET %d", studentColumns, base, order, limit, offset)
	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// ListAll returns every student, used for roster snapshots.
func (r *StudentRepository) ListAll(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, `SELECT `+studentColumns+` FROM students s ORDER BY s.admission_no ASC`); err != nil {
		return nil, fmt.Errorf("list all students: %w", err)
	}
	return students, nil
}

// ListByClass returns active students of a class ordered by name.
func (r *StudentRepository) ListByClass(ctx context.Context, classID string) ([]models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students s WHERE s.class_id = $1 AND s.active ORDER BY s.full_name ASC`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, classID); err != nil {
		return nil, fmt.Errorf("list class students: %w", err)
	}
	return students, nil
}

// FindByID returns a student with class name.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := `SELECT ` + studentColumns + `, c.name AS class_name FROM students s LEFT JOIN classes c ON c.id = s.class_id WHERE s.id = $1`
	var student models.StudentDetail
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// Create inserts a student; a duplicate admission number yields ErrDuplicate.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, admission_no, full_name, gender, date_of_birth, class_id, guardian_name, guardian_phone, active, created_at, updated_at)
		VALUES (:id, :admission_no, :full_name, :gender, :date_of_birth, :class_id, :guardian_name, :guardian_phone, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		if database.IsUniqueViolation(err, "") {
			return ErrDuplicate
		}
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies a student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET admission_no = :admission_no, full_name = :full_name, gender = :gender, date_of_birth = :date_of_birth,
		class_id = :class_id, guardian_name = :guardian_name, guardian_phone = :guardian_phone, active = :active, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return ErrDuplicate
		}
		return fmt.Errorf("update student: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Deactivate marks a student inactive.
func (r *StudentRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE students SET active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpsertMany writes students by id in one transaction, returning how many rows were written.
func (r *StudentRepository) UpsertMany(ctx context.Context, students []models.Student) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert students: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO students (id, admission_no, full_name, gender, date_of_birth, class_id, guardian_name, guardian_phone, active, created_at, updated_at)
		VALUES (:id, :admission_no, :full_name, :gender, :date_of_birth, :class_id, :guardian_name, :guardian_phone, :active, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET admission_no = EXCLUDED.admission_no, full_name = EXCLUDED.full_name, gender = EXCLUDED.gender,
			date_of_birth = EXCLUDED.date_of_birth, class_id = EXCLUDED.class_id, guardian_name = EXCLUDED.guardian_name,
			guardian_phone = EXCLUDED.guardian_phone, active = EXCLUDED.active, updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	for i := range students {
		s := students[i]
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		s.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, &s); err != nil {
			if database.IsUniqueViolation(err, "") {
				return 0, fmt.Errorf("upsert student %s: %w", s.AdmissionNo, ErrDuplicate)
			}
			return 0, fmt.Errorf("upsert student %s: %w", s.AdmissionNo, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert students: %w", err)
	}
	return len(students), nil
}
