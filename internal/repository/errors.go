package repository

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors surfaced by write paths guarded by database constraints.
var (
	// ErrClassTeacherTaken is returned when uq_class_teacher_per_term rejects a write.
	ErrClassTeacherTaken = errors.New("teacher already holds an active class-teacher assignment for the term")
	// ErrClassStaffed is returned when uq_class_teacher_per_class rejects a write.
	ErrClassStaffed = errors.New("class already has an active class teacher for the term")
	// ErrDuplicate is returned when any other unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
	// ErrInUse is returned when a delete is blocked by rows that still reference the record.
	ErrInUse = errors.New("record is still referenced")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// paginate normalises page inputs and returns the effective page size and offset.
func paginate(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	return size, (page - 1) * size
}

// orderBy resolves a whitelisted sort column and direction.
func orderBy(sortBy, sortOrder string, allowed map[string]string, fallback string) string {
	column, ok := allowed[sortBy]
	if !ok {
		column = fallback
	}
	dir := strings.ToUpper(sortOrder)
	if dir != "ASC" && dir != "DESC" {
		dir = "DESC"
	}
	return fmt.Sprintf("%s %s", column, dir)
}

// where joins conditions onto a base clause.
func where(base string, conditions []string) string {
	if len(conditions) == 0 {
		return base
	}
	return base + " AND " + strings.Join(conditions, " AND ")
}
