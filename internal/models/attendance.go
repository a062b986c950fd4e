package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
	AttendanceLate    AttendanceStatus = "LATE"
	AttendanceExcused AttendanceStatus = "EXCUSED"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused:
		return true
	default:
		return false
	}
}

// AttendanceRecord is one student's mark for a day.
type AttendanceRecord struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"studentId"`
	ClassID    string           `db:"class_id" json:"classId"`
	TermID     string           `db:"term_id" json:"termId"`
	Date       time.Time        `db:"date" json:"date"`
	Status     AttendanceStatus `db:"status" json:"status"`
	Note       *string          `db:"note" json:"note,omitempty"`
	RecordedBy string           `db:"recorded_by" json:"recordedBy"`
	CreatedAt  time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updatedAt"`
}

// AttendanceRegisterRow extends a record with the student's name for register views.
type AttendanceRegisterRow struct {
	AttendanceRecord
	StudentName string `db:"student_name" json:"studentName"`
}

// AttendanceSummary counts a student's marks over a term.
type AttendanceSummary struct {
	StudentID string  `db:"student_id" json:"studentId"`
	TermID    string  `db:"term_id" json:"termId"`
	Present   int     `db:"present" json:"present"`
	Absent    int     `db:"absent" json:"absent"`
	Late      int     `db:"late" json:"late"`
	Excused   int     `db:"excused" json:"excused"`
	Total     int     `db:"total" json:"total"`
	Rate      float64 `json:"rate"`
}

// ComputeRate fills Rate as the share of days attended (present or late), in percent.
func (s *AttendanceSummary) ComputeRate() {
	if s.Total == 0 {
		s.Rate = 0
		return
	}
	s.Rate = roundTo(float64(s.Present+s.Late)/float64(s.Total)*100, 2)
}
