package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-dashboard-api/internal/models"
	appErrors "github.com/noah-isme/school-dashboard-api/pkg/errors"
	"github.com/noah-isme/school-dashboard-api/pkg/jobs"
	"github.com/noah-isme/school-dashboard-api/pkg/storage"
)

type memoryExportJobs struct {
	items map[string]*models.ExportJob
	seq   int
}

func (m *memoryExportJobs) Create(ctx context.Context, job *models.ExportJob) error {
	m.seq++
	job.ID = fmt.Sprintf("job%d", m.seq)
	cp := *job
	m.items[job.ID] = &cp
	return nil
}

func (m *memoryExportJobs) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	if j, ok := m.items[id]; ok {
		cp := *j
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memoryExportJobs) MarkProcessing(ctx context.Context, id string, progress int) error {
	m.items[id].Status = models.ExportStatusProcessing
	m.items[id].Progress = progress
	return nil
}

func (m *memoryExportJobs) MarkFinished(ctx context.Context, id, resultPath string, finishedAt time.Time) error {
	j := m.items[id]
	j.Status = models.ExportStatusFinished
	j.Progress = 100
	j.ResultPath = &resultPath
	j.FinishedAt = &finishedAt
	return nil
}

func (m *memoryExportJobs) MarkFailed(ctx context.Context, id, reason string, finishedAt time.Time) error {
	j := m.items[id]
	j.Status = models.ExportStatusFailed
	j.Error = &reason
	return nil
}

type recordingDispatcher struct {
	enqueued []jobs.Job
	err      error
}

func (r *recordingDispatcher) Enqueue(job jobs.Job) error {
	if r.err != nil {
		return r.err
	}
	r.enqueued = append(r.enqueued, job)
	return nil
}

type stubRosterReader []models.ClassTeacherRow

func (s stubRosterReader) ListClassTeachers(ctx context.Context, termID string) ([]models.ClassTeacherRow, error) {
	return s, nil
}

type exportFixture struct {
	svc        *ExportService
	jobs       *memoryExportJobs
	queue      *recordingDispatcher
	attendance *mockAttendanceRepo
	metrics    *MetricsService
}

func newExportFixture(t *testing.T) *exportFixture {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	teacherName := "Grace Achieng"
	teacherID := "t1"
	attendance := &mockAttendanceRepo{summaries: map[string]*models.AttendanceSummary{
		"s1/t1": {StudentID: "s1", TermID: "t1", Present: 19, Absent: 1, Total: 20, Rate: 95},
	}}
	metrics := NewMetricsService()
	jobStore := &memoryExportJobs{items: map[string]*models.ExportJob{}}
	svc := NewExportService(ExportServiceParams{
		Jobs:     jobStore,
		Terms:    newMockAcademicRepo(),
		Classes:  &stubClassLookup{items: map[string]*models.Class{"c1": {ID: "c1", Name: "9A"}}},
		Students: stubRoster{"c1": {{ID: "s1", FullName: "Amani Njeri", Active: true}}},
		ClassTeacher: stubRosterReader{
			{ClassID: "c1", ClassName: "9A", GradeLevel: 9, TeacherID: &teacherID, TeacherName: &teacherName},
			{ClassID: "c2", ClassName: "9B", GradeLevel: 9},
		},
		Attendance: attendance,
		Storage:    store,
		Signer:     storage.NewSignedURLSigner("test-secret", time.Hour),
		Metrics:    metrics,
		Logger:     zap.NewNop(),
		Config:     ExportConfig{APIPrefix: "/api/v1"},
	})
	queue := &recordingDispatcher{}
	svc.SetQueue(queue)
	return &exportFixture{svc: svc, jobs: jobStore, queue: queue, attendance: attendance, metrics: metrics}
}

func TestExportRosterEndToEnd(t *testing.T) {
	f := newExportFixture(t)
	actor := &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}

	job, err := f.svc.Request(context.Background(), actor, CreateExportRequest{Type: models.ExportTypeClassTeacherRoster, Format: "csv"})
	require.NoError(t, err)
	assert.Equal(t, "t1", job.Params.TermID)
	require.Len(t, f.queue.enqueued, 1)

	status, err := f.svc.Status(context.Background(), actor, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, status.Status)
	assert.Nil(t, status.DownloadURL)

	require.NoError(t, f.svc.Handle(context.Background(), f.queue.enqueued[0]))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.exportJobs.WithLabelValues("class_teacher_roster", "FINISHED")))

	status, err = f.svc.Status(context.Background(), actor, job.ID)
	require.NoError(t, err)
	require.NotNil(t, status.DownloadURL)
	assert.True(t, strings.HasPrefix(*status.DownloadURL, "/api/v1/exports/download/"))

	token := strings.TrimPrefix(*status.DownloadURL, "/api/v1/exports/download/")
	download, err := f.svc.Download(context.Background(), token)
	require.NoError(t, err)
	defer download.Body.Close()
	body, err := io.ReadAll(download.Body)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", download.ContentType)
	assert.Equal(t, job.ID+".csv", download.Filename)
	assert.Contains(t, string(body), "9A,9,Grace Achieng")
	assert.Contains(t, string(body), "9B,9,-")

	_, err = f.svc.Download(context.Background(), token+"x")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExportAttendancePDF(t *testing.T) {
	f := newExportFixture(t)
	actor := &models.JWTClaims{UserID: "u-teacher", Role: models.RoleTeacher}

	_, err := f.svc.Request(context.Background(), actor, CreateExportRequest{Type: models.ExportTypeAttendanceSummary, Format: "pdf"})
	require.Error(t, err)
	assert.Equal(t, "classId is required for attendance exports", appErrors.FromError(err).Message)

	job, err := f.svc.Request(context.Background(), actor, CreateExportRequest{Type: models.ExportTypeAttendanceSummary, Format: "pdf", ClassID: strPtr("c1")})
	require.NoError(t, err)
	require.NoError(t, f.svc.Handle(context.Background(), f.queue.enqueued[0]))

	status, err := f.svc.Status(context.Background(), actor, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFinished, status.Status)
	assert.Equal(t, "attendance_summary/"+job.ID+".pdf", *status.ResultPath)

	_, err = f.svc.Status(context.Background(), &models.JWTClaims{UserID: "someone-else", Role: models.RoleTeacher}, job.ID)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExportRequestValidationAndFailures(t *testing.T) {
	f := newExportFixture(t)
	actor := &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}

	_, err := f.svc.Request(context.Background(), actor, CreateExportRequest{Type: "grades", Format: "csv"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Request(context.Background(), actor, CreateExportRequest{Type: models.ExportTypeClassTeacherRoster, Format: "xlsx"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	f.queue.err = jobs.ErrQueueClosed
	_, err = f.svc.Request(context.Background(), actor, CreateExportRequest{Type: models.ExportTypeClassTeacherRoster, Format: "csv"})
	require.Error(t, err)
	for _, j := range f.jobs.items {
		assert.Equal(t, models.ExportStatusFailed, j.Status)
	}

	f.svc.Fail(jobs.Job{ID: "job1", Type: "class_teacher_roster"}, errors.New("render exploded"))
	assert.Equal(t, "render exploded", *f.jobs.items["job1"].Error)

	_, err = f.svc.Status(context.Background(), actor, "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
