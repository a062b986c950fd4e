package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-dashboard-api/internal/models"
)

// EntityCounts is the headline roster size for the admin dashboard.
type EntityCounts struct {
	Students    int `db:"students" json:"students"`
	Teachers    int `db:"teachers" json:"teachers"`
	Classes     int `db:"classes" json:"classes"`
	Subjects    int `db:"subjects" json:"subjects"`
	Departments int `db:"departments" json:"departments"`
}

// DashboardRepository runs the aggregate queries behind role dashboards.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs a DashboardRepository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// Counts returns the number of active entities.
func (r *DashboardRepository) Counts(ctx context.Context) (*EntityCounts, error) {
	const query = `
SELECT (SELECT COUNT(*) FROM students WHERE active) AS students,
       (SELECT COUNT(*) FROM teachers WHERE active) AS teachers,
       (SELECT COUNT(*) FROM classes) AS classes,
       (SELECT COUNT(*) FROM subjects) AS subjects,
       (SELECT COUNT(*) FROM departments) AS departments`
	var counts EntityCounts
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("dashboard counts: %w", err)
	}
	return &counts, nil
}

// TermAttendance returns school-wide attended and total marks for a term.
func (r *DashboardRepository) TermAttendance(ctx context.Context, termID string) (*models.AttendanceSummary, error) {
	const query = `
SELECT $1::text AS term_id,
       COUNT(*) FILTER (WHERE status = 'PRESENT') AS present,
       COUNT(*) FILTER (WHERE status = 'ABSENT') AS absent,
       COUNT(*) FILTER (WHERE status = 'LATE') AS late,
       COUNT(*) FILTER (WHERE status = 'EXCUSED') AS excused,
       COUNT(*) AS total
FROM attendance_records WHERE term_id = $1`
	var summary models.AttendanceSummary
	if err := r.db.GetContext(ctx, &summary, query, termID); err != nil {
		return nil, fmt.Errorf("term attendance: %w", err)
	}
	summary.ComputeRate()
	return &summary, nil
}

// ClassesWithoutClassTeacher lists classes that have no active class teacher in the term.
func (r *DashboardRepository) ClassesWithoutClassTeacher(ctx context.Context, termID string) ([]models.Class, error) {
	const query = `
SELECT c.id, c.name, c.grade_level, c.stream, c.created_at, c.updated_at
FROM classes c
WHERE NOT EXISTS (
    SELECT 1 FROM teacher_assignments ta
    WHERE ta.class_id = c.id AND ta.term_id = $1 AND ta.is_class_teacher AND ta.is_active
)
ORDER BY c.grade_level ASC, c.name ASC`
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, termID); err != nil {
		return nil, fmt.Errorf("classes without class teacher: %w", err)
	}
	return classes, nil
}
