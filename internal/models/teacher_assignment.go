package models

import "time"

// TeacherAssignment links a teacher to a class, optionally for a subject, within an academic year and term.
// IsClassTeacher marks the teacher as the class's class teacher; IsActive is the soft-delete flag.
type TeacherAssignment struct {
	ID             string    `db:"id" json:"id"`
	TeacherID      string    `db:"teacher_id" json:"teacherId"`
	ClassID        string    `db:"class_id" json:"classId"`
	SubjectID      *string   `db:"subject_id" json:"subjectId,omitempty"`
	AcademicYearID string    `db:"academic_year_id" json:"academicYearId"`
	TermID         string    `db:"term_id" json:"termId"`
	IsClassTeacher bool      `db:"is_class_teacher" json:"isClassTeacher"`
	IsActive       bool      `db:"is_active" json:"isActive"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// TeacherAssignmentDetail enriches assignments with descriptive fields.
type TeacherAssignmentDetail struct {
	TeacherAssignment
	ClassName   string  `db:"class_name" json:"className"`
	SubjectName *string `db:"subject_name" json:"subjectName,omitempty"`
	TermName    string  `db:"term_name" json:"termName"`
	TeacherName string  `db:"teacher_name" json:"teacherName"`
}

// TeacherAssignmentFilter narrows a teacher's assignment listing.
type TeacherAssignmentFilter struct {
	AcademicYearID  string
	TermID          string
	IncludeInactive bool
}

// ClassTeacherRow is one line of the class-teacher roster for a term.
type ClassTeacherRow struct {
	ClassID      string  `db:"class_id" json:"classId"`
	ClassName    string  `db:"class_name" json:"className"`
	GradeLevel   int     `db:"grade_level" json:"gradeLevel"`
	TeacherID    *string `db:"teacher_id" json:"teacherId,omitempty"`
	TeacherName  *string `db:"teacher_name" json:"teacherName,omitempty"`
	AssignmentID *string `db:"assignment_id" json:"assignmentId,omitempty"`
}
