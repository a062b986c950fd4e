// Package validation holds pure domain rules evaluated before writes are committed.
package validation

import (
	"fmt"

	"github.com/noah-isme/school-dashboard-api/internal/models"
)

// ClassTeacherValidation is the verdict for a proposed class-teacher designation.
type ClassTeacherValidation struct {
	IsValid               bool                            `json:"isValid"`
	Message               string                          `json:"message"`
	ConflictingAssignment *models.TeacherAssignmentDetail `json:"conflictingAssignment,omitempty"`
}

// FindActiveClassTeacherAssignment returns the first active class-teacher assignment held by the
// teacher for the academic year and term, or nil. Only the first match is returned; a snapshot that
// already holds two such records is not reported as such.
func FindActiveClassTeacherAssignment(teacherID, academicYearID, termID string, assignments []models.TeacherAssignmentDetail) *models.TeacherAssignmentDetail {
	for i := range assignments {
		a := &assignments[i]
		if a.TeacherID == teacherID &&
			a.AcademicYearID == academicYearID &&
			a.TermID == termID &&
			a.IsClassTeacher &&
			a.IsActive {
			match := *a
			return &match
		}
	}
	return nil
}

// ValidateClassTeacherAssignment decides whether the teacher may be designated class teacher for
// the academic year and term given the supplied snapshot. It never mutates the snapshot.
func ValidateClassTeacherAssignment(teacherID, academicYearID, termID string, assignments []models.TeacherAssignmentDetail) ClassTeacherValidation {
	existing := FindActiveClassTeacherAssignment(teacherID, academicYearID, termID, assignments)
	if existing == nil {
		return ClassTeacherValidation{
			IsValid: true,
			Message: "Teacher can be assigned as class teacher",
		}
	}
	return ClassTeacherValidation{
		IsValid:               false,
		Message:               fmt.Sprintf("Teacher is already the class teacher for %s in this term", existing.ClassName),
		ConflictingAssignment: existing,
	}
}

// FormatConflictMessage explains a conflict using display names resolved by the caller.
func FormatConflictMessage(teacherName, existingClassName string) string {
	return fmt.Sprintf(
		"%s is already the class teacher for %s. A teacher can only be class teacher for one class per term. Unassign them from %s first.",
		teacherName, existingClassName, existingClassName,
	)
}
