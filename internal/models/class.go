package models

import "time"

// Class represents a class (form/stream) that students belong to.
type Class struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	GradeLevel int       `db:"grade_level" json:"gradeLevel"`
	Stream     string    `db:"stream" json:"stream"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// ClassDetail extends Class with the term's class teacher and enrolment size.
type ClassDetail struct {
	Class
	ClassTeacherID   *string `db:"class_teacher_id" json:"classTeacherId,omitempty"`
	ClassTeacherName *string `db:"class_teacher_name" json:"classTeacherName,omitempty"`
	StudentCount     int     `db:"student_count" json:"studentCount"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	GradeLevel int
	Search     string
	TermID     string
	Page       int
	PageSize   int
}
