package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-dashboard-api/internal/models"
	appErrors "github.com/noah-isme/school-dashboard-api/pkg/errors"
)

type mockAttendanceRepo struct {
	upserted  []models.AttendanceRecord
	summaries map[string]*models.AttendanceSummary
}

func (m *mockAttendanceRepo) UpsertBatch(ctx context.Context, records []models.AttendanceRecord) error {
	m.upserted = append(m.upserted, records...)
	return nil
}

func (m *mockAttendanceRepo) ListByClassAndDate(ctx context.Context, classID string, date time.Time) ([]models.AttendanceRegisterRow, error) {
	var rows []models.AttendanceRegisterRow
	for _, r := range m.upserted {
		if r.ClassID == classID && r.Date.Equal(date) {
			rows = append(rows, models.AttendanceRegisterRow{AttendanceRecord: r})
		}
	}
	return rows, nil
}

func (m *mockAttendanceRepo) SummaryForStudent(ctx context.Context, studentID, termID string) (*models.AttendanceSummary, error) {
	if s, ok := m.summaries[studentID+"/"+termID]; ok {
		return s, nil
	}
	return &models.AttendanceSummary{StudentID: studentID, TermID: termID}, nil
}

func (m *mockAttendanceRepo) SummaryForClass(ctx context.Context, classID, termID string) ([]models.AttendanceSummary, error) {
	var out []models.AttendanceSummary
	for _, s := range m.summaries {
		if s.TermID == termID {
			out = append(out, *s)
		}
	}
	return out, nil
}

type stubRoster map[string][]models.Student

func (s stubRoster) ListByClass(ctx context.Context, classID string) ([]models.Student, error) {
	return s[classID], nil
}

type stubClassTeachers map[string]string

func (s stubClassTeachers) FindClassTeacher(ctx context.Context, classID, termID string) (*models.TeacherAssignmentDetail, error) {
	teacherID, ok := s[classID+"/"+termID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.TeacherAssignmentDetail{TeacherAssignment: models.TeacherAssignment{TeacherID: teacherID, ClassID: classID, TermID: termID, IsClassTeacher: true, IsActive: true}}, nil
}

func newTestAttendanceService() (*AttendanceService, *mockAttendanceRepo, *memoryCacheRepo) {
	repo := &mockAttendanceRepo{summaries: map[string]*models.AttendanceSummary{}}
	roster := stubRoster{"c1": {
		{ID: "s1", FullName: "Amani Njeri", Active: true},
		{ID: "s2", FullName: "Baraka Kip", Active: true},
		{ID: "s3", FullName: "Left School", Active: false},
	}}
	cacheRepo := newMemoryCacheRepo()
	svc := NewAttendanceService(
		repo,
		&stubClassLookup{items: map[string]*models.Class{"c1": {ID: "c1", Name: "9A"}, "c2": {ID: "c2", Name: "9B"}}},
		roster,
		newMockAcademicRepo(),
		stubClassTeachers{"c1/t1": "teacher-1"},
		NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true),
		nil,
		zap.NewNop(),
	)
	svc.now = func() time.Time { return mustDay("2025-03-01") }
	return svc, repo, cacheRepo
}

func registerReq(date string, entries ...AttendanceEntry) RecordAttendanceRequest {
	return RecordAttendanceRequest{ClassID: "c1", Date: date, Entries: entries}
}

func TestAttendanceRecordByClassTeacher(t *testing.T) {
	svc, repo, cacheRepo := newTestAttendanceService()
	require.NoError(t, cacheRepo.Set(context.Background(), "dash:admin:t1", "x", time.Minute))

	actor := &models.JWTClaims{UserID: "u-teacher", Role: models.RoleTeacher, ProfileID: "teacher-1"}
	records, err := svc.Record(context.Background(), actor, registerReq("2025-02-10",
		AttendanceEntry{StudentID: "s1", Status: models.AttendancePresent},
		AttendanceEntry{StudentID: "s2", Status: models.AttendanceLate, Note: strPtr(" bus ")},
	))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "t1", records[0].TermID)
	assert.Equal(t, "u-teacher", records[0].RecordedBy)
	assert.Equal(t, "bus", *records[1].Note)
	assert.Len(t, repo.upserted, 2)
	assert.False(t, cacheRepo.has("dash:admin:t1"))

	rows, err := svc.Register(context.Background(), "c1", "2025-02-10")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestAttendanceRecordPermissions(t *testing.T) {
	svc, repo, _ := newTestAttendanceService()
	req := registerReq("2025-02-10", AttendanceEntry{StudentID: "s1", Status: models.AttendanceAbsent})

	cases := []struct {
		name  string
		actor *models.JWTClaims
		code  string
	}{
		{"anonymous", nil, appErrors.ErrUnauthorized.Code},
		{"other teacher", &models.JWTClaims{UserID: "u2", Role: models.RoleTeacher, ProfileID: "teacher-2"}, appErrors.ErrForbidden.Code},
		{"teacher without profile", &models.JWTClaims{UserID: "u3", Role: models.RoleTeacher}, appErrors.ErrForbidden.Code},
		{"student", &models.JWTClaims{UserID: "u4", Role: models.RoleStudent, ProfileID: "s1"}, appErrors.ErrForbidden.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Record(context.Background(), tc.actor, req)
			require.Error(t, err)
			assert.Equal(t, tc.code, appErrors.FromError(err).Code)
		})
	}
	assert.Empty(t, repo.upserted)

	admin := &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}
	_, err := svc.Record(context.Background(), admin, req)
	require.NoError(t, err)

	// c2 has no class teacher for the term
	req.ClassID = "c2"
	_, err = svc.Record(context.Background(), &models.JWTClaims{UserID: "u-teacher", Role: models.RoleTeacher, ProfileID: "teacher-1"}, req)
	require.Error(t, err)
	assert.Equal(t, "class has no class teacher for this term", appErrors.FromError(err).Message)
}

func TestAttendanceRecordValidation(t *testing.T) {
	svc, _, _ := newTestAttendanceService()
	admin := &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}

	cases := []struct {
		name    string
		req     RecordAttendanceRequest
		code    string
		message string
	}{
		{"empty entries", registerReq("2025-02-10"), appErrors.ErrValidation.Code, ""},
		{"bad status", registerReq("2025-02-10", AttendanceEntry{StudentID: "s1", Status: "SICK"}), appErrors.ErrValidation.Code, ""},
		{"future date", registerReq("2025-03-20", AttendanceEntry{StudentID: "s1", Status: models.AttendancePresent}), appErrors.ErrValidation.Code, "attendance cannot be recorded for a future date"},
		{"outside term", registerReq("2024-12-02", AttendanceEntry{StudentID: "s1", Status: models.AttendancePresent}), appErrors.ErrValidation.Code, "date is outside the term"},
		{"inactive student", registerReq("2025-02-10", AttendanceEntry{StudentID: "s3", Status: models.AttendancePresent}), appErrors.ErrValidation.Code, "student s3 is not an active member of the class"},
		{"duplicate student", registerReq("2025-02-10",
			AttendanceEntry{StudentID: "s1", Status: models.AttendancePresent},
			AttendanceEntry{StudentID: "s1", Status: models.AttendanceAbsent},
		), appErrors.ErrValidation.Code, "student s1 appears more than once"},
		{"unknown class", RecordAttendanceRequest{ClassID: "zz", Date: "2025-02-10", Entries: []AttendanceEntry{{StudentID: "s1", Status: models.AttendancePresent}}}, appErrors.ErrNotFound.Code, "class not found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Record(context.Background(), admin, tc.req)
			require.Error(t, err)
			appErr := appErrors.FromError(err)
			assert.Equal(t, tc.code, appErr.Code)
			if tc.message != "" {
				assert.Equal(t, tc.message, appErr.Message)
			}
		})
	}
}

func TestAttendanceStudentSummary(t *testing.T) {
	svc, repo, _ := newTestAttendanceService()
	repo.summaries["s1/t1"] = &models.AttendanceSummary{StudentID: "s1", TermID: "t1", Present: 9, Absent: 1, Total: 10, Rate: 90}

	student := &models.JWTClaims{UserID: "u-s1", Role: models.RoleStudent, ProfileID: "s1"}
	summary, err := svc.StudentSummary(context.Background(), student, "s1", "")
	require.NoError(t, err)
	assert.Equal(t, 90.0, summary.Rate)

	_, err = svc.StudentSummary(context.Background(), student, "s2", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.StudentSummary(context.Background(), &models.JWTClaims{Role: models.RoleAdmin}, "s2", "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	rows, err := svc.ClassSummary(context.Background(), "c1", "t1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
