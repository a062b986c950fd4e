package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-dashboard-api/internal/models"
	"github.com/noah-isme/school-dashboard-api/pkg/database"
)

const (
	// ClassTeacherConstraint is the partial unique index guarding one class-teacher role per teacher and term.
	ClassTeacherConstraint = "uq_class_teacher_per_term"
	classStaffedConstraint = "uq_class_teacher_per_class"
	assignmentConstraint   = "uq_teacher_assignment"
)

const assignmentDetailSelect = `
SELECT ta.id, ta.teacher_id, ta.class_id, ta.subject_id, ta.academic_year_id, ta.term_id,
       ta.is_class_teacher, ta.is_active, ta.created_at, ta.updated_at,
       c.name AS class_name, s.name AS subject_name, t.name AS term_name, tr.full_name AS teacher_name
FROM teacher_assignments ta
JOIN classes c ON c.id = ta.class_id
LEFT JOIN subjects s ON s.id = ta.subject_id
JOIN terms t ON t.id = ta.term_id
JOIN teachers tr ON tr.id = ta.teacher_id`

// TeacherAssignmentRepository persists teacher-class assignments.
type TeacherAssignmentRepository struct {
	db *sqlx.DB
}

// NewTeacherAssignmentRepository constructs the repository.
func NewTeacherAssignmentRepository(db *sqlx.DB) *TeacherAssignmentRepository {
	return &TeacherAssignmentRepository{db: db}
}

// ListByTeacher returns the teacher's assignments, newest term first.
func (r *TeacherAssignmentRepository) ListByTeacher(ctx context.Context, teacherID string, filter models.TeacherAssignmentFilter) ([]models.TeacherAssignmentDetail, error) {
	args := []interface{}{teacherID}
	conditions := []string{}
	if filter.AcademicYearID != "" {
		args = append(args, filter.AcademicYearID)
		conditions = append(conditions, fmt.Sprintf("ta.academic_year_id = $%d", len(args)))
	}
	if filter.TermID != "" {
		args = append(args, filter.TermID)
		conditions = append(conditions, fmt.Sprintf("ta.term_id = $%d", len(args)))
	}
	if !filter.IncludeInactive {
		conditions = append(conditions, "ta.is_active")
	}
	query := where(assignmentDetailSelect+" WHERE ta.teacher_id = $1", conditions) + " ORDER BY t.start_date DESC, c.name ASC"

	var assignments []models.TeacherAssignmentDetail
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, fmt.Errorf("list teacher assignments: %w", err)
	}
	return assignments, nil
}

// FindByID returns an assignment owned by the teacher.
func (r *TeacherAssignmentRepository) FindByID(ctx context.Context, teacherID, assignmentID string) (*models.TeacherAssignmentDetail, error) {
	var assignment models.TeacherAssignmentDetail
	query := assignmentDetailSelect + " WHERE ta.id = $1 AND ta.teacher_id = $2"
	if err := r.db.GetContext(ctx, &assignment, query, assignmentID, teacherID); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// Exists checks whether an active assignment for the teacher/class/subject/term tuple exists.
func (r *TeacherAssignmentRepository) Exists(ctx context.Context, teacherID, classID string, subjectID *string, termID string) (bool, error) {
	const query = `SELECT 1 FROM teacher_assignments
WHERE teacher_id = $1 AND class_id = $2 AND COALESCE(subject_id, '') = COALESCE($3, '') AND term_id = $4 AND is_active LIMIT 1`
	var found int
	if err := r.db.GetContext(ctx, &found, query, teacherID, classID, subjectID, termID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check teacher assignment: %w", err)
	}
	return true, nil
}

// HasActiveAssignment reports whether the teacher actively teaches the class, optionally for a subject, in the term.
func (r *TeacherAssignmentRepository) HasActiveAssignment(ctx context.Context, teacherID, classID, subjectID, termID string) (bool, error) {
	query := `SELECT 1 FROM teacher_assignments WHERE teacher_id = $1 AND class_id = $2 AND term_id = $3 AND is_active`
	args := []interface{}{teacherID, classID, termID}
	if subjectID != "" {
		query += ` AND (subject_id = $4 OR is_class_teacher)`
		args = append(args, subjectID)
	}
	var found int
	if err := r.db.GetContext(ctx, &found, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check active assignment: %w", err)
	}
	return true, nil
}

// FindClassTeacher returns the active class-teacher assignment for a class in a term.
func (r *TeacherAssignmentRepository) FindClassTeacher(ctx context.Context, classID, termID string) (*models.TeacherAssignmentDetail, error) {
	var assignment models.TeacherAssignmentDetail
	query := assignmentDetailSelect + " WHERE ta.class_id = $1 AND ta.term_id = $2 AND ta.is_class_teacher AND ta.is_active ORDER BY ta.created_at ASC LIMIT 1"
	if err := r.db.GetContext(ctx, &assignment, query, classID, termID); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// Create inserts a new assignment. Index violations surface as ErrClassTeacherTaken or ErrDuplicate.
func (r *TeacherAssignmentRepository) Create(ctx context.Context, assignment *models.TeacherAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now
	const query = `INSERT INTO teacher_assignments (id, teacher_id, class_id, subject_id, academic_year_id, term_id, is_class_teacher, is_active, created_at, updated_at)
		VALUES (:id, :teacher_id, :class_id, :subject_id, :academic_year_id, :term_id, :is_class_teacher, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return mapAssignmentError(err, "create teacher assignment")
	}
	return nil
}

// UpdateFlags sets the class-teacher and active flags of an assignment owned by the teacher.
func (r *TeacherAssignmentRepository) UpdateFlags(ctx context.Context, teacherID, assignmentID string, isClassTeacher, isActive bool) error {
	const query = `UPDATE teacher_assignments SET is_class_teacher = $3, is_active = $4, updated_at = $5 WHERE id = $1 AND teacher_id = $2`
	res, err := r.db.ExecContext(ctx, query, assignmentID, teacherID, isClassTeacher, isActive, time.Now().UTC())
	if err != nil {
		return mapAssignmentError(err, "update teacher assignment")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check updated assignment rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListClassTeachers returns every class with its class teacher for the term, if any.
func (r *TeacherAssignmentRepository) ListClassTeachers(ctx context.Context, termID string) ([]models.ClassTeacherRow, error) {
	const query = `
SELECT c.id AS class_id, c.name AS class_name, c.grade_level,
       ta.teacher_id, tr.full_name AS teacher_name, ta.id AS assignment_id
FROM classes c
LEFT JOIN teacher_assignments ta ON ta.class_id = c.id AND ta.term_id = $1 AND ta.is_class_teacher AND ta.is_active
LEFT JOIN teachers tr ON tr.id = ta.teacher_id
ORDER BY c.grade_level ASC, c.name ASC, tr.full_name ASC`
	var rows []models.ClassTeacherRow
	if err := r.db.SelectContext(ctx, &rows, query, termID); err != nil {
		return nil, fmt.Errorf("list class teachers: %w", err)
	}
	return rows, nil
}

// CountByTeacherAndTerm returns the number of active assignments for a teacher in a term.
func (r *TeacherAssignmentRepository) CountByTeacherAndTerm(ctx context.Context, teacherID, termID string) (int, error) {
	const query = `SELECT COUNT(*) FROM teacher_assignments WHERE teacher_id = $1 AND term_id = $2 AND is_active`
	var count int
	if err := r.db.GetContext(ctx, &count, query, teacherID, termID); err != nil {
		return 0, fmt.Errorf("count teacher assignments: %w", err)
	}
	return count, nil
}

func mapAssignmentError(err error, op string) error {
	switch {
	case database.IsUniqueViolation(err, ClassTeacherConstraint):
		return ErrClassTeacherTaken
	case database.IsUniqueViolation(err, classStaffedConstraint):
		return ErrClassStaffed
	case database.IsUniqueViolation(err, assignmentConstraint):
		return ErrDuplicate
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
