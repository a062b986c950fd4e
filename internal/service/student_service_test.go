package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-dashboard-api/internal/models"
	"github.com/noah-isme/school-dashboard-api/internal/repository"
	appErrors "github.com/noah-isme/school-dashboard-api/pkg/errors"
)

type mockStudentRepo struct {
	students    map[string]models.Student
	deactivated []string
	upserted    []models.Student
	listTotal   int
	err         error
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	details := make([]models.StudentDetail, 0, len(m.students))
	for _, s := range m.students {
		details = append(details, models.StudentDetail{Student: s})
	}
	return details, m.listTotal, nil
}

func (m *mockStudentRepo) ListAll(ctx context.Context) ([]models.Student, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]models.Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s, ok := m.students[id]; ok {
		detail := models.StudentDetail{Student: s}
		return &detail, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if m.students == nil {
		m.students = make(map[string]models.Student)
	}
	for _, existing := range m.students {
		if existing.AdmissionNo == student.AdmissionNo {
			return repository.ErrDuplicate
		}
	}
	if student.ID == "" {
		student.ID = "generated"
	}
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) Deactivate(ctx context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	if s, ok := m.students[id]; ok {
		s.Active = false
		m.students[id] = s
	}
	return nil
}

func (m *mockStudentRepo) UpsertMany(ctx context.Context, students []models.Student) (int, error) {
	m.upserted = append(m.upserted, students...)
	return len(students), nil
}

type stubClassLookup struct {
	items map[string]*models.Class
}

func (s *stubClassLookup) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := s.items[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type memorySnapshotStore struct {
	saved   []models.Student
	loadErr error
}

func (m *memorySnapshotStore) Load(ctx context.Context) ([]models.Student, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return append([]models.Student(nil), m.saved...), nil
}

func (m *memorySnapshotStore) Save(ctx context.Context, students []models.Student) error {
	m.saved = append([]models.Student(nil), students...)
	return nil
}

type recordingAudit struct {
	logs []*models.AuditLog
}

func (r *recordingAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

func newTestStudentService(repo *mockStudentRepo, store StudentSnapshotStore, audit auditLogWriter) *StudentService {
	classes := &stubClassLookup{items: map[string]*models.Class{"9a": {ID: "9a", Name: "9A"}}}
	return NewStudentService(repo, classes, store, audit, validator.New(), zap.NewNop())
}

func TestStudentServiceCreate(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := newTestStudentService(repo, nil, nil)

	student, err := svc.Create(context.Background(), StudentRequest{
		AdmissionNo: " adm-001 ",
		FullName:    "John Doe",
		Gender:      "M",
		DateOfBirth: strPtr("2010-05-01"),
		ClassID:     strPtr("9a"),
	})
	require.NoError(t, err)
	assert.Equal(t, "ADM-001", student.AdmissionNo)
	assert.True(t, student.Active)
	require.NotNil(t, student.DateOfBirth)
	assert.Equal(t, 2010, student.DateOfBirth.Year())
	assert.Len(t, repo.students, 1)
}

func TestStudentServiceCreateRejectsInvalid(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{"s1": {ID: "s1", AdmissionNo: "ADM-001"}}}
	svc := newTestStudentService(repo, nil, nil)

	_, err := svc.Create(context.Background(), StudentRequest{AdmissionNo: "ADM-001", FullName: "A", Gender: "M"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), StudentRequest{AdmissionNo: "ADM-002", FullName: "A", Gender: "M", ClassID: strPtr("missing")})
	require.Error(t, err)
	assert.Equal(t, "class not found", appErrors.FromError(err).Message)

	_, err = svc.Create(context.Background(), StudentRequest{AdmissionNo: "ADM-003", FullName: "A", Gender: "X"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceUpdate(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{"id1": {ID: "id1", AdmissionNo: "111", FullName: "Old", Gender: "M", Active: true}}}
	svc := newTestStudentService(repo, nil, nil)

	updated, err := svc.Update(context.Background(), "id1", StudentRequest{AdmissionNo: "222", FullName: "New", Gender: "F"})
	require.NoError(t, err)
	assert.Equal(t, "222", updated.AdmissionNo)
	assert.Equal(t, "New", updated.FullName)
	assert.True(t, updated.Active)
}

func TestStudentServiceDeactivate(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{"id1": {ID: "id1", AdmissionNo: "111", FullName: "Old", Gender: "M", Active: true}}}
	svc := newTestStudentService(repo, nil, nil)

	require.NoError(t, svc.Deactivate(context.Background(), "id1"))
	assert.Contains(t, repo.deactivated, "id1")

	err := svc.Deactivate(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceSnapshotRoundTrip(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{
		"s1": {ID: "s1", AdmissionNo: "ADM-001", FullName: "Amina", Active: true},
		"s2": {ID: "s2", AdmissionNo: "ADM-002", FullName: "Brian", Active: true},
	}}
	store := &memorySnapshotStore{}
	audit := &recordingAudit{}
	svc := newTestStudentService(repo, store, audit)

	saved, err := svc.SaveSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Count)
	assert.Len(t, store.saved, 2)

	restored, err := svc.RestoreSnapshot(context.Background(), AuditMeta{ActorID: "admin"})
	require.NoError(t, err)
	assert.Equal(t, 2, restored.Count)
	assert.Len(t, repo.upserted, 2)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionSnapshotRestore, audit.logs[0].Action)
}

func TestStudentServiceRestoreSnapshotErrors(t *testing.T) {
	svc := newTestStudentService(&mockStudentRepo{}, &memorySnapshotStore{}, nil)
	_, err := svc.RestoreSnapshot(context.Background(), AuditMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	svc = newTestStudentService(&mockStudentRepo{}, &memorySnapshotStore{loadErr: errors.New("corrupt")}, nil)
	_, err = svc.RestoreSnapshot(context.Background(), AuditMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)

	svc = newTestStudentService(&mockStudentRepo{}, nil, nil)
	_, err = svc.SaveSnapshot(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}
