package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/school-dashboard-api/internal/dto"
	"github.com/noah-isme/school-dashboard-api/internal/models"
	"github.com/noah-isme/school-dashboard-api/internal/repository"
	appErrors "github.com/noah-isme/school-dashboard-api/pkg/errors"
)

type dashboardRepository interface {
	Counts(ctx context.Context) (*repository.EntityCounts, error)
	TermAttendance(ctx context.Context, termID string) (*models.AttendanceSummary, error)
	ClassesWithoutClassTeacher(ctx context.Context, termID string) ([]models.Class, error)
}

type teacherAssignmentsReader interface {
	ListByTeacher(ctx context.Context, teacherID string, filter models.TeacherAssignmentFilter) ([]models.TeacherAssignmentDetail, error)
	FindClassTeacher(ctx context.Context, classID, termID string) (*models.TeacherAssignmentDetail, error)
	CountByTeacherAndTerm(ctx context.Context, teacherID, termID string) (int, error)
}

type dashboardAttendanceReader interface {
	SummaryForStudent(ctx context.Context, studentID, termID string) (*models.AttendanceSummary, error)
	RateForClassOnDate(ctx context.Context, classID string, date time.Time) (float64, bool, error)
}

type dashboardGradeReader interface {
	StudentSubjectAverages(ctx context.Context, studentID, termID string) ([]models.SubjectAverage, error)
	DepartmentSubjectAverages(ctx context.Context, departmentID, termID string) ([]models.SubjectAverage, error)
}

type departmentHeadLookup interface {
	FindByHead(ctx context.Context, teacherID string) (*models.DepartmentDetail, error)
}

type departmentTeacherLister interface {
	ListByDepartment(ctx context.Context, departmentID string) ([]models.Teacher, error)
}

type studentDetailReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardService composes the role-specific dashboards and caches them per role, subject and term.
type DashboardService struct {
	repo        dashboardRepository
	terms       termReader
	assignments teacherAssignmentsReader
	attendance  dashboardAttendanceReader
	grades      dashboardGradeReader
	departments departmentHeadLookup
	teachers    departmentTeacherLister
	students    studentDetailReader
	cache       *CacheService
	logger      *zap.Logger
	now         func() time.Time
	cfg         DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Repo        dashboardRepository
	Terms       termReader
	Assignments teacherAssignmentsReader
	Attendance  dashboardAttendanceReader
	Grades      dashboardGradeReader
	Departments departmentHeadLookup
	Teachers    departmentTeacherLister
	Students    studentDetailReader
	Cache       *CacheService
	Logger      *zap.Logger
	Config      DashboardServiceConfig
}

// NewDashboardService builds a DashboardService.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		repo:        params.Repo,
		terms:       params.Terms,
		assignments: params.Assignments,
		attendance:  params.Attendance,
		grades:      params.Grades,
		departments: params.Departments,
		teachers:    params.Teachers,
		students:    params.Students,
		cache:       params.Cache,
		logger:      logger,
		now:         time.Now,
		cfg:         cfg,
	}
}

// Admin returns the admin dashboard and indicates cache utilisation.
func (s *DashboardService) Admin(ctx context.Context, termID string) (*dto.AdminDashboardResponse, bool, error) {
	term, err := resolveTerm(ctx, s.terms, termID)
	if err != nil {
		return nil, false, err
	}
	cacheKey := fmt.Sprintf("dash:admin:%s", term.ID)
	var cached dto.AdminDashboardResponse
	if s.cache.Get(ctx, cacheKey, &cached) {
		return &cached, true, nil
	}

	summary, err := s.composeAdmin(ctx, term)
	if err != nil {
		return nil, false, err
	}
	s.cache.Set(ctx, cacheKey, summary, s.cfg.CacheTTL)
	return summary, false, nil
}

// Teacher returns the teacher dashboard for the term; date picks the day of the class-teacher attendance tile.
func (s *DashboardService) Teacher(ctx context.Context, teacherID, termID string, date time.Time) (*dto.TeacherDashboardResponse, bool, error) {
	if teacherID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "teacherId is required")
	}
	term, err := resolveTerm(ctx, s.terms, termID)
	if err != nil {
		return nil, false, err
	}
	if date.IsZero() {
		date = s.now()
	}
	day := date.UTC().Format("2006-01-02")
	cacheKey := fmt.Sprintf("dash:teacher:%s:%s:%s", teacherID, term.ID, day)
	var cached dto.TeacherDashboardResponse
	if s.cache.Get(ctx, cacheKey, &cached) {
		return &cached, true, nil
	}

	summary, err := s.composeTeacher(ctx, teacherID, term, date.UTC())
	if err != nil {
		return nil, false, err
	}
	s.cache.Set(ctx, cacheKey, summary, s.cfg.CacheTTL)
	return summary, false, nil
}

// HeadOfDepartment returns the dashboard of the department the teacher leads.
func (s *DashboardService) HeadOfDepartment(ctx context.Context, teacherID, termID string) (*dto.HODDashboardResponse, bool, error) {
	if teacherID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "teacherId is required")
	}
	term, err := resolveTerm(ctx, s.terms, termID)
	if err != nil {
		return nil, false, err
	}
	cacheKey := fmt.Sprintf("dash:hod:%s:%s", teacherID, term.ID)
	var cached dto.HODDashboardResponse
	if s.cache.Get(ctx, cacheKey, &cached) {
		return &cached, true, nil
	}

	department, err := s.departments.FindByHead(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "no department is led by this teacher")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	teachers, err := s.teachers.ListByDepartment(ctx, department.ID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department teachers")
	}
	subjects, err := s.grades.DepartmentSubjectAverages(ctx, department.ID, term.ID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject averages")
	}
	summary := &dto.HODDashboardResponse{
		Term:       termRef(term),
		Department: *department,
		Teachers:   nonNilTeachers(teachers),
		Subjects:   nonNilAverages(subjects),
	}
	s.cache.Set(ctx, cacheKey, summary, s.cfg.CacheTTL)
	return summary, false, nil
}

// Student returns the student's dashboard for the term.
func (s *DashboardService) Student(ctx context.Context, studentID, termID string) (*dto.StudentDashboardResponse, bool, error) {
	if studentID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "studentId is required")
	}
	term, err := resolveTerm(ctx, s.terms, termID)
	if err != nil {
		return nil, false, err
	}
	cacheKey := fmt.Sprintf("dash:student:%s:%s", studentID, term.ID)
	var cached dto.StudentDashboardResponse
	if s.cache.Get(ctx, cacheKey, &cached) {
		return &cached, true, nil
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, false, lookupError(err, "student")
	}
	attendance, err := s.attendance.SummaryForStudent(ctx, studentID, term.ID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	averages, err := s.grades.StudentSubjectAverages(ctx, studentID, term.ID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}
	report := models.StudentReport{StudentID: studentID, TermID: term.ID, Subjects: nonNilAverages(averages)}
	report.ComputeOverall()

	summary := &dto.StudentDashboardResponse{
		Term:       termRef(term),
		Student:    *student,
		Attendance: *attendance,
		Report:     report,
	}
	if student.ClassID != nil {
		holder, err := s.assignments.FindClassTeacher(ctx, *student.ClassID, term.ID)
		switch {
		case err == nil:
			summary.ClassTeacher = &holder.TeacherName
		case !errors.Is(err, sql.ErrNoRows):
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class teacher")
		}
	}
	s.cache.Set(ctx, cacheKey, summary, s.cfg.CacheTTL)
	return summary, false, nil
}

func (s *DashboardService) composeAdmin(ctx context.Context, term *models.Term) (*dto.AdminDashboardResponse, error) {
	counts, err := s.repo.Counts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load counts")
	}
	attendance, err := s.repo.TermAttendance(ctx, term.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	uncovered, err := s.repo.ClassesWithoutClassTeacher(ctx, term.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class-teacher coverage")
	}

	refs := make([]dto.ClassRef, 0, len(uncovered))
	for _, c := range uncovered {
		refs = append(refs, dto.ClassRef{ID: c.ID, Name: c.Name, GradeLevel: c.GradeLevel})
	}
	coverage := 0.0
	if counts.Classes > 0 {
		coverage = math.Round(float64(counts.Classes-len(uncovered))/float64(counts.Classes)*10000) / 100
	}
	return &dto.AdminDashboardResponse{
		Term: termRef(term),
		Counts: dto.AdminCounts{
			Students:    counts.Students,
			Teachers:    counts.Teachers,
			Classes:     counts.Classes,
			Subjects:    counts.Subjects,
			Departments: counts.Departments,
		},
		Attendance:                  *attendance,
		ClassesWithoutClassTeacher:  refs,
		ClassTeacherCoveragePercent: coverage,
	}, nil
}

func (s *DashboardService) composeTeacher(ctx context.Context, teacherID string, term *models.Term, date time.Time) (*dto.TeacherDashboardResponse, error) {
	assignments, err := s.assignments.ListByTeacher(ctx, teacherID, models.TeacherAssignmentFilter{TermID: term.ID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	if assignments == nil {
		assignments = []models.TeacherAssignmentDetail{}
	}
	active, err := s.assignments.CountByTeacherAndTerm(ctx, teacherID, term.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count assignments")
	}

	classes := make(map[string]struct{})
	subjects := make(map[string]struct{})
	summary := &dto.TeacherDashboardResponse{Term: termRef(term), TeacherID: teacherID, Assignments: assignments, ActiveAssignmentCount: active}
	for _, a := range assignments {
		if !a.IsActive {
			continue
		}
		classes[a.ClassID] = struct{}{}
		if a.SubjectID != nil {
			subjects[*a.SubjectID] = struct{}{}
		}
		if a.IsClassTeacher && summary.ClassTeacher == nil {
			section := &dto.ClassTeacherSection{ClassID: a.ClassID, ClassName: a.ClassName, Date: date.Format("2006-01-02")}
			rate, recorded, err := s.attendance.RateForClassOnDate(ctx, a.ClassID, date)
			if err != nil {
				s.logger.Warn("class attendance rate unavailable", zap.String("class_id", a.ClassID), zap.Error(err))
			} else if recorded {
				section.AttendanceRecorded = true
				section.AttendanceRateToday = &rate
			}
			summary.ClassTeacher = section
		}
	}
	summary.ClassCount = len(classes)
	summary.SubjectCount = len(subjects)
	return summary, nil
}

func termRef(term *models.Term) dto.DashboardTerm {
	return dto.DashboardTerm{ID: term.ID, Name: term.Name}
}

func nonNilTeachers(items []models.Teacher) []models.Teacher {
	if items == nil {
		return []models.Teacher{}
	}
	return items
}

func nonNilAverages(items []models.SubjectAverage) []models.SubjectAverage {
	if items == nil {
		return []models.SubjectAverage{}
	}
	return items
}
