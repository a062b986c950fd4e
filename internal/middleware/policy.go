package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-dashboard-api/internal/models"
	appErrors "github.com/noah-isme/school-dashboard-api/pkg/errors"
	"github.com/noah-isme/school-dashboard-api/pkg/response"
)

// Capability names an action a route group needs.
type Capability string

const (
	CapManageSchool       Capability = "manage:school"
	CapManageAssignments  Capability = "manage:assignments"
	CapViewAdminDashboard Capability = "view:dashboard:admin"
	CapViewTeacherBoard   Capability = "view:dashboard:teacher"
	CapViewHODDashboard   Capability = "view:dashboard:hod"
	CapViewStudentBoard   Capability = "view:dashboard:student"
	CapRecordAttendance   Capability = "record:attendance"
	CapRecordGrades       Capability = "record:grades"
	CapViewDirectory      Capability = "view:directory"
	CapViewRecords        Capability = "view:records"
	CapExportReports      Capability = "export:reports"
)

// Policy maps each capability to the roles holding it.
type Policy map[Capability][]models.UserRole

// DefaultPolicy is the school's role matrix.
func DefaultPolicy() Policy {
	return Policy{
		CapManageSchool:       {models.RoleAdmin},
		CapManageAssignments:  {models.RoleAdmin},
		CapViewAdminDashboard: {models.RoleAdmin},
		CapViewTeacherBoard:   {models.RoleAdmin, models.RoleTeacher, models.RoleHeadOfDepartment},
		CapViewHODDashboard:   {models.RoleAdmin, models.RoleHeadOfDepartment},
		CapViewStudentBoard:   {models.RoleAdmin, models.RoleStudent},
		CapRecordAttendance:   {models.RoleAdmin, models.RoleTeacher, models.RoleHeadOfDepartment},
		CapRecordGrades:       {models.RoleAdmin, models.RoleTeacher, models.RoleHeadOfDepartment},
		CapViewDirectory:      {models.RoleAdmin, models.RoleTeacher, models.RoleHeadOfDepartment},
		CapViewRecords:        {models.RoleAdmin, models.RoleTeacher, models.RoleHeadOfDepartment, models.RoleStudent},
		CapExportReports:      {models.RoleAdmin, models.RoleTeacher, models.RoleHeadOfDepartment},
	}
}

// Allows reports whether the role holds the capability. Unknown capabilities are denied.
func (p Policy) Allows(role models.UserRole, capability Capability) bool {
	for _, r := range p[capability] {
		if r == role {
			return true
		}
	}
	return false
}

// RequireCapability rejects requests whose role lacks the capability.
func RequireCapability(policy Policy, capability Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := CurrentUser(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !policy.Allows(claims.Role, capability) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "missing capability "+string(capability)))
			c.Abort()
			return
		}
		c.Next()
	}
}
