package models

import "time"

// Department groups teachers and subjects under a head of department.
type Department struct {
	ID            string    `db:"id" json:"id"`
	Code          string    `db:"code" json:"code"`
	Name          string    `db:"name" json:"name"`
	HeadTeacherID *string   `db:"head_teacher_id" json:"headTeacherId,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// DepartmentDetail adds the head's display name and roster counts.
type DepartmentDetail struct {
	Department
	HeadTeacherName *string `db:"head_teacher_name" json:"headTeacherName,omitempty"`
	TeacherCount    int     `db:"teacher_count" json:"teacherCount"`
	SubjectCount    int     `db:"subject_count" json:"subjectCount"`
}
