package models

import "time"

// AcademicYear is a school year containing terms.
type AcademicYear struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"startDate"`
	EndDate   time.Time `db:"end_date" json:"endDate"`
	IsCurrent bool      `db:"is_current" json:"isCurrent"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Term is a subdivision of an academic year; assignment uniqueness is scoped to it.
type Term struct {
	ID             string    `db:"id" json:"id"`
	AcademicYearID string    `db:"academic_year_id" json:"academicYearId"`
	Name           string    `db:"name" json:"name"`
	StartDate      time.Time `db:"start_date" json:"startDate"`
	EndDate        time.Time `db:"end_date" json:"endDate"`
	IsActive       bool      `db:"is_active" json:"isActive"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// Contains reports whether day falls inside the term (inclusive, date precision).
func (t Term) Contains(day time.Time) bool {
	d := truncateDay(day)
	return !d.Before(truncateDay(t.StartDate)) && !d.After(truncateDay(t.EndDate))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
