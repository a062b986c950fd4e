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
)

// AttendanceRepository persists class registers.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// UpsertBatch writes one mark per student for the date atomically.
func (r *AttendanceRepository) UpsertBatch(ctx context.Context, records []models.AttendanceRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attendance batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO attendance_records (id, student_id, class_id, term_id, date, status, note, recorded_by, created_at, updated_at)
		VALUES (:id, :student_id, :class_id, :term_id, :date, :status, :note, :recorded_by, :created_at, :updated_at)
		ON CONFLICT (student_id, date) DO UPDATE SET class_id = EXCLUDED.class_id, term_id = EXCLUDED.term_id,
			status = EXCLUDED.status, note = EXCLUDED.note, recorded_by = EXCLUDED.recorded_by, updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		rec.CreatedAt = now
		rec.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, rec); err != nil {
			return fmt.Errorf("upsert attendance for %s: %w", rec.StudentID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attendance batch: %w", err)
	}
	return nil
}

// ListByClassAndDate returns the class register for a day.
func (r *AttendanceRepository) ListByClassAndDate(ctx context.Context, classID string, date time.Time) ([]models.AttendanceRegisterRow, error) {
	const query = `
SELECT ar.id, ar.student_id, ar.class_id, ar.term_id, ar.date, ar.status, ar.note, ar.recorded_by, ar.created_at, ar.updated_at,
       s.full_name AS student_name
FROM attendance_records ar
JOIN students s ON s.id = ar.student_id
WHERE ar.class_id = $1 AND ar.date = $2
ORDER BY s.full_name ASC`
	var rows []models.AttendanceRegisterRow
	if err := r.db.SelectContext(ctx, &rows, query, classID, date); err != nil {
		return nil, fmt.Errorf("list attendance register: %w", err)
	}
	return rows, nil
}

// SummaryForStudent aggregates a student's marks over a term.
func (r *AttendanceRepository) SummaryForStudent(ctx context.Context, studentID, termID string) (*models.AttendanceSummary, error) {
	const query = `
SELECT $1::text AS student_id, $2::text AS term_id,
       COUNT(*) FILTER (WHERE status = 'PRESENT') AS present,
       COUNT(*) FILTER (WHERE status = 'ABSENT') AS absent,
       COUNT(*) FILTER (WHERE status = 'LATE') AS late,
       COUNT(*) FILTER (WHERE status = 'EXCUSED') AS excused,
       COUNT(*) AS total
FROM attendance_records
WHERE student_id = $1 AND term_id = $2`
	var summary models.AttendanceSummary
	if err := r.db.GetContext(ctx, &summary, query, studentID, termID); err != nil {
		return nil, fmt.Errorf("summarise attendance: %w", err)
	}
	summary.ComputeRate()
	return &summary, nil
}

// SummaryForClass aggregates marks per student of a class over a term.
func (r *AttendanceRepository) SummaryForClass(ctx context.Context, classID, termID string) ([]models.AttendanceSummary, error) {
	const query = `
SELECT s.id AS student_id, $2::text AS term_id,
       COUNT(ar.id) FILTER (WHERE ar.status = 'PRESENT') AS present,
       COUNT(ar.id) FILTER (WHERE ar.status = 'ABSENT') AS absent,
       COUNT(ar.id) FILTER (WHERE ar.status = 'LATE') AS late,
       COUNT(ar.id) FILTER (WHERE ar.status = 'EXCUSED') AS excused,
       COUNT(ar.id) AS total
FROM students s
LEFT JOIN attendance_records ar ON ar.student_id = s.id AND ar.term_id = $2
WHERE s.class_id = $1 AND s.active
GROUP BY s.id, s.full_name
ORDER BY s.full_name ASC`
	var summaries []models.AttendanceSummary
	if err := r.db.SelectContext(ctx, &summaries, query, classID, termID); err != nil {
		return nil, fmt.Errorf("summarise class attendance: %w", err)
	}
	for i := range summaries {
		summaries[i].ComputeRate()
	}
	return summaries, nil
}

// RateForClassOnDate returns the attended share (present or late) of a class register, in percent.
// ok is false when nothing was recorded.
func (r *AttendanceRepository) RateForClassOnDate(ctx context.Context, classID string, date time.Time) (float64, bool, error) {
	const query = `
SELECT COUNT(*) FILTER (WHERE status IN ('PRESENT', 'LATE')) AS present, COUNT(*) AS total
FROM attendance_records WHERE class_id = $1 AND date = $2`
	var row struct {
		Present int `db:"present"`
		Total   int `db:"total"`
	}
	if err := r.db.GetContext(ctx, &row, query, classID, date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("class attendance rate: %w", err)
	}
	if row.Total == 0 {
		return 0, false, nil
	}
	summary := models.AttendanceSummary{Present: row.Present, Total: row.Total}
	summary.ComputeRate()
	return summary.Rate, true, nil
}
