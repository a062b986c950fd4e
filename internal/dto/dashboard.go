package dto

import "github.com/noah-isme/school-dashboard-api/internal/models"

// DashboardTerm identifies the term a dashboard was built for.
type DashboardTerm struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AdminDashboardResponse captures the aggregated admin dashboard payload.
type AdminDashboardResponse struct {
	Term                        DashboardTerm            `json:"term"`
	Counts                      AdminCounts              `json:"counts"`
	Attendance                  models.AttendanceSummary `json:"attendance"`
	ClassesWithoutClassTeacher  []ClassRef               `json:"classesWithoutClassTeacher"`
	ClassTeacherCoveragePercent float64                  `json:"classTeacherCoveragePercent"`
}

// AdminCounts is the headline roster size.
type AdminCounts struct {
	Students    int `json:"students"`
	Teachers    int `json:"teachers"`
	Classes     int `json:"classes"`
	Subjects    int `json:"subjects"`
	Departments int `json:"departments"`
}

// ClassRef is a compact class reference.
type ClassRef struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	GradeLevel int    `json:"gradeLevel"`
}

// TeacherDashboardResponse is the teacher's view of the term.
type TeacherDashboardResponse struct {
	Term                  DashboardTerm                    `json:"term"`
	TeacherID             string                           `json:"teacherId"`
	Assignments           []models.TeacherAssignmentDetail `json:"assignments"`
	ActiveAssignmentCount int                              `json:"activeAssignmentCount"`
	ClassCount            int                              `json:"classCount"`
	SubjectCount          int                              `json:"subjectCount"`
	ClassTeacher          *ClassTeacherSection             `json:"classTeacher,omitempty"`
}

// ClassTeacherSection describes the class the teacher is class teacher of.
type ClassTeacherSection struct {
	ClassID             string   `json:"classId"`
	ClassName           string   `json:"className"`
	Date                string   `json:"date"`
	AttendanceRecorded  bool     `json:"attendanceRecorded"`
	AttendanceRateToday *float64 `json:"attendanceRateToday,omitempty"`
}

// HODDashboardResponse is the head of department's view of the term.
type HODDashboardResponse struct {
	Term       DashboardTerm           `json:"term"`
	Department models.DepartmentDetail `json:"department"`
	Teachers   []models.Teacher        `json:"teachers"`
	Subjects   []models.SubjectAverage `json:"subjects"`
}

// StudentDashboardResponse is the student's view of the term.
type StudentDashboardResponse struct {
	Term         DashboardTerm            `json:"term"`
	Student      models.StudentDetail     `json:"student"`
	ClassTeacher *string                  `json:"classTeacher,omitempty"`
	Attendance   models.AttendanceSummary `json:"attendance"`
	Report       models.StudentReport     `json:"report"`
}
