package models

import "time"

// Teacher represents an instructor record.
type Teacher struct {
	ID           string    `db:"id" json:"id"`
	EmployeeNo   *string   `db:"employee_no" json:"employeeNo,omitempty"`
	Email        string    `db:"email" json:"email"`
	FullName     string    `db:"full_name" json:"fullName"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	DepartmentID *string   `db:"department_id" json:"departmentId,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// TeacherFilter captures filtering options for listing teachers.
type TeacherFilter struct {
	Search       string
	DepartmentID string
	Active       *bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
