package models

import "time"

// Student represents a learner registered in the school.
type Student struct {
	ID            string     `db:"id" json:"id"`
	AdmissionNo   string     `db:"admission_no" json:"admissionNo"`
	FullName      string     `db:"full_name" json:"fullName"`
	Gender        string     `db:"gender" json:"gender"`
	DateOfBirth   *time.Time `db:"date_of_birth" json:"dateOfBirth,omitempty"`
	ClassID       *string    `db:"class_id" json:"classId,omitempty"`
	GuardianName  *string    `db:"guardian_name" json:"guardianName,omitempty"`
	GuardianPhone *string    `db:"guardian_phone" json:"guardianPhone,omitempty"`
	Active        bool       `db:"active" json:"active"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}

// StudentDetail adds the class display name.
type StudentDetail struct {
	Student
	ClassName *string `db:"class_name" json:"className,omitempty"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	ClassID   string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
