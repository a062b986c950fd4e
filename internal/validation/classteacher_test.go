package validation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-dashboard-api/internal/models"
)

func assignment(id, teacherID, classID, className, yearID, termID string, classTeacher, active bool) models.TeacherAssignmentDetail {
	return models.TeacherAssignmentDetail{
		TeacherAssignment: models.TeacherAssignment{
			ID:             id,
			TeacherID:      teacherID,
			ClassID:        classID,
			AcademicYearID: yearID,
			TermID:         termID,
			IsClassTeacher: classTeacher,
			IsActive:       active,
		},
		ClassName: className,
	}
}

func TestValidateClassTeacherAssignmentScenario(t *testing.T) {
	snapshot := []models.TeacherAssignmentDetail{
		assignment("a1", "t1", "c1", "9A", "2025", "term1", true, true),
	}

	result := ValidateClassTeacherAssignment("t1", "2025", "term1", snapshot)
	assert.False(t, result.IsValid)
	assert.Contains(t, result.Message, "9A")
	require.NotNil(t, result.ConflictingAssignment)
	assert.Equal(t, snapshot[0], *result.ConflictingAssignment)

	result = ValidateClassTeacherAssignment("t1", "2025", "term2", snapshot)
	assert.True(t, result.IsValid)
	assert.Nil(t, result.ConflictingAssignment)
	assert.NotEmpty(t, result.Message)

	result = ValidateClassTeacherAssignment("t2", "2025", "term1", snapshot)
	assert.True(t, result.IsValid)
}

func TestValidateClassTeacherAssignmentScope(t *testing.T) {
	tests := []struct {
		name     string
		snapshot []models.TeacherAssignmentDetail
		valid    bool
	}{
		{name: "empty snapshot", valid: true},
		{
			name: "other academic year",
			snapshot: []models.TeacherAssignmentDetail{
				assignment("a1", "t1", "c1", "9A", "2024", "term1", true, true),
			},
			valid: true,
		},
		{
			name: "inactive class teacher assignment",
			snapshot: []models.TeacherAssignmentDetail{
				assignment("a1", "t1", "c1", "9A", "2025", "term1", true, false),
			},
			valid: true,
		},
		{
			name: "subject assignments only",
			snapshot: []models.TeacherAssignmentDetail{
				assignment("a1", "t1", "c1", "9A", "2025", "term1", false, true),
				assignment("a2", "t1", "c2", "9B", "2025", "term1", false, true),
				assignment("a3", "t1", "c3", "10A", "2025", "term1", false, true),
			},
			valid: true,
		},
		{
			name: "class teacher among subject assignments",
			snapshot: []models.TeacherAssignmentDetail{
				assignment("a1", "t1", "c1", "9A", "2025", "term1", false, true),
				assignment("a2", "t1", "c2", "9B", "2025", "term1", true, true),
			},
			valid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := ValidateClassTeacherAssignment("t1", "2025", "term1", tc.snapshot)
			assert.Equal(t, tc.valid, result.IsValid)
			if tc.valid {
				assert.Nil(t, result.ConflictingAssignment)
			} else {
				assert.NotNil(t, result.ConflictingAssignment)
			}
		})
	}
}

func TestDeactivatingConflictFlipsResult(t *testing.T) {
	snapshot := []models.TeacherAssignmentDetail{
		assignment("a1", "t1", "c1", "9A", "2025", "term1", true, true),
	}
	assert.False(t, ValidateClassTeacherAssignment("t1", "2025", "term1", snapshot).IsValid)

	snapshot[0].IsActive = false
	first := ValidateClassTeacherAssignment("t1", "2025", "term1", snapshot)
	second := ValidateClassTeacherAssignment("t1", "2025", "term1", snapshot)
	assert.True(t, first.IsValid)
	assert.Equal(t, first, second)
}

func TestFindActiveClassTeacherAssignmentReturnsFirstMatch(t *testing.T) {
	snapshot := []models.TeacherAssignmentDetail{
		assignment("a0", "t1", "c0", "8C", "2025", "term1", false, true),
		assignment("a1", "t1", "c1", "9A", "2025", "term1", true, true),
		assignment("a2", "t1", "c2", "9B", "2025", "term1", true, true),
	}

	found := FindActiveClassTeacherAssignment("t1", "2025", "term1", snapshot)
	require.NotNil(t, found)
	assert.Equal(t, "a1", found.ID)

	found.ClassName = "mutated"
	assert.Equal(t, "9A", snapshot[1].ClassName)

	assert.Nil(t, FindActiveClassTeacherAssignment("t1", "2025", "term3", snapshot))
}

func TestFormatConflictMessage(t *testing.T) {
	msg := FormatConflictMessage("Grace Achieng", "9A")
	assert.Equal(t, "Grace Achieng is already the class teacher for 9A. A teacher can only be class teacher for one class per term. Unassign them from 9A first.", msg)
}

func TestValidateConcurrentCalls(t *testing.T) {
	snapshot := []models.TeacherAssignmentDetail{
		assignment("a1", "t1", "c1", "9A", "2025", "term1", true, true),
	}
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.False(t, ValidateClassTeacherAssignment("t1", "2025", "term1", snapshot).IsValid)
		}()
	}
	wg.Wait()
}
