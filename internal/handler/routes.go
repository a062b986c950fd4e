package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-dashboard-api/internal/middleware"
)

// Handlers bundles every HTTP handler mounted under the API prefix.
type Handlers struct {
	Auth        *AuthHandler
	Users       *UserHandler
	Departments *DepartmentHandler
	Teachers    *TeacherHandler
	Subjects    *SubjectHandler
	Classes     *ClassHandler
	Terms       *TermHandler
	Students    *StudentHandler
	Attendance  *AttendanceHandler
	Assessments *AssessmentHandler
	Dashboards  *DashboardHandler
	Exports     *ExportHandler
}

// RegisterRoutes mounts the API. Every route except login, refresh and signed downloads needs a
// bearer token, and each group is gated by a policy capability.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, tokens middleware.TokenValidator, policy middleware.Policy) {
	can := func(capability middleware.Capability) gin.HandlerFunc {
		return middleware.RequireCapability(policy, capability)
	}

	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)
	api.GET("/exports/download/:token", h.Exports.Download)

	secured := api.Group("", middleware.JWT(tokens))
	secured.POST("/auth/logout", h.Auth.Logout)
	secured.POST("/auth/change-password", h.Auth.ChangePassword)
	secured.GET("/auth/me", h.Auth.Me)

	users := secured.Group("/users", can(middleware.CapManageSchool))
	users.GET("", h.Users.List)
	users.GET("/:id", h.Users.Get)
	users.POST("", h.Users.Create)
	users.DELETE("/:id", h.Users.Delete)

	departments := secured.Group("/departments")
	departments.GET("", can(middleware.CapViewDirectory), h.Departments.List)
	departments.GET("/:id", can(middleware.CapViewDirectory), h.Departments.Get)
	departments.POST("", can(middleware.CapManageSchool), h.Departments.Create)
	departments.PUT("/:id", can(middleware.CapManageSchool), h.Departments.Update)
	departments.DELETE("/:id", can(middleware.CapManageSchool), h.Departments.Delete)

	teachers := secured.Group("/teachers")
	teachers.GET("", can(middleware.CapViewDirectory), h.Teachers.List)
	teachers.GET("/:id", can(middleware.CapViewDirectory), h.Teachers.Get)
	teachers.POST("", can(middleware.CapManageSchool), h.Teachers.Create)
	teachers.PUT("/:id", can(middleware.CapManageSchool), h.Teachers.Update)
	teachers.DELETE("/:id", can(middleware.CapManageSchool), h.Teachers.Delete)
	teachers.GET("/:id/assignments", can(middleware.CapViewDirectory), h.Teachers.ListAssignments)
	teachers.GET("/:id/class-teacher/check", can(middleware.CapManageAssignments), h.Teachers.CheckClassTeacher)
	teachers.POST("/:id/assignments", can(middleware.CapManageAssignments), h.Teachers.CreateAssignment)
	teachers.PATCH("/:id/assignments/:aid", can(middleware.CapManageAssignments), h.Teachers.UpdateAssignment)
	teachers.DELETE("/:id/assignments/:aid", can(middleware.CapManageAssignments), h.Teachers.DeleteAssignment)
	secured.GET("/class-teachers", can(middleware.CapViewDirectory), h.Teachers.ClassTeachers)

	subjects := secured.Group("/subjects")
	subjects.GET("", can(middleware.CapViewDirectory), h.Subjects.List)
	subjects.GET("/:id", can(middleware.CapViewDirectory), h.Subjects.Get)
	subjects.POST("", can(middleware.CapManageSchool), h.Subjects.Create)
	subjects.PUT("/:id", can(middleware.CapManageSchool), h.Subjects.Update)
	subjects.DELETE("/:id", can(middleware.CapManageSchool), h.Subjects.Delete)

	classes := secured.Group("/classes")
	classes.GET("", can(middleware.CapViewDirectory), h.Classes.List)
	classes.GET("/:id", can(middleware.CapViewDirectory), h.Classes.Get)
	classes.POST("", can(middleware.CapManageSchool), h.Classes.Create)
	classes.PUT("/:id", can(middleware.CapManageSchool), h.Classes.Update)
	classes.DELETE("/:id", can(middleware.CapManageSchool), h.Classes.Delete)

	secured.GET("/academic-years", can(middleware.CapViewRecords), h.Terms.ListYears)
	secured.POST("/academic-years", can(middleware.CapManageSchool), h.Terms.CreateYear)
	terms := secured.Group("/terms")
	terms.GET("", can(middleware.CapViewRecords), h.Terms.List)
	terms.GET("/active", can(middleware.CapViewRecords), h.Terms.GetActive)
	terms.POST("", can(middleware.CapManageSchool), h.Terms.Create)
	terms.POST("/:id/activate", can(middleware.CapManageSchool), h.Terms.Activate)

	students := secured.Group("/students")
	students.GET("", can(middleware.CapViewDirectory), h.Students.List)
	students.GET("/:id", can(middleware.CapViewDirectory), h.Students.Get)
	students.POST("", can(middleware.CapManageSchool), h.Students.Create)
	students.PUT("/:id", can(middleware.CapManageSchool), h.Students.Update)
	students.DELETE("/:id", can(middleware.CapManageSchool), h.Students.Delete)
	students.POST("/snapshots", can(middleware.CapManageSchool), h.Students.SaveSnapshot)
	students.POST("/snapshots/restore", can(middleware.CapManageSchool), h.Students.RestoreSnapshot)

	attendance := secured.Group("/attendance")
	attendance.POST("", can(middleware.CapRecordAttendance), h.Attendance.Record)
	attendance.GET("/classes/:classId", can(middleware.CapViewDirectory), h.Attendance.Register)
	attendance.GET("/classes/:classId/summary", can(middleware.CapViewDirectory), h.Attendance.ClassSummary)
	attendance.GET("/students/:studentId/summary", can(middleware.CapViewRecords), h.Attendance.StudentSummary)

	assessments := secured.Group("/assessments")
	assessments.POST("", can(middleware.CapRecordGrades), h.Assessments.Create)
	assessments.GET("", can(middleware.CapViewDirectory), h.Assessments.List)
	assessments.PUT("/:id/grades", can(middleware.CapRecordGrades), h.Assessments.RecordGrades)
	assessments.GET("/:id/grades", can(middleware.CapViewDirectory), h.Assessments.Grades)
	secured.GET("/reports/students/:studentId", can(middleware.CapViewRecords), h.Assessments.StudentReport)

	dashboards := secured.Group("/dashboard", middleware.WithResponseMeta())
	dashboards.GET("/admin", can(middleware.CapViewAdminDashboard), h.Dashboards.Admin)
	dashboards.GET("/teacher", can(middleware.CapViewTeacherBoard), h.Dashboards.Teacher)
	dashboards.GET("/hod", can(middleware.CapViewHODDashboard), h.Dashboards.HeadOfDepartment)
	dashboards.GET("/student", can(middleware.CapViewStudentBoard), h.Dashboards.Student)

	exports := secured.Group("/exports", can(middleware.CapExportReports))
	exports.POST("", h.Exports.Request)
	exports.GET("/:id", h.Exports.Status)
}
