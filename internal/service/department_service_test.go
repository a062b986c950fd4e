package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-dashboard-api/internal/models"
	"github.com/noah-isme/school-dashboard-api/internal/repository"
	appErrors "github.com/noah-isme/school-dashboard-api/pkg/errors"
)

type mockDepartmentRepo struct {
	items   map[string]*models.DepartmentDetail
	deleted []string
}

func (m *mockDepartmentRepo) List(ctx context.Context) ([]models.DepartmentDetail, error) {
	out := make([]models.DepartmentDetail, 0, len(m.items))
	for _, d := range m.items {
		out = append(out, *d)
	}
	return out, nil
}

func (m *mockDepartmentRepo) FindByID(ctx context.Context, id string) (*models.DepartmentDetail, error) {
	if d, ok := m.items[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDepartmentRepo) Create(ctx context.Context, department *models.Department) error {
	for _, d := range m.items {
		if d.Code == department.Code {
			return repository.ErrDuplicate
		}
	}
	if department.ID == "" {
		department.ID = "dep-new"
	}
	m.items[department.ID] = &models.DepartmentDetail{Department: *department}
	return nil
}

func (m *mockDepartmentRepo) Update(ctx context.Context, department *models.Department) error {
	if _, ok := m.items[department.ID]; !ok {
		return sql.ErrNoRows
	}
	m.items[department.ID] = &models.DepartmentDetail{Department: *department}
	return nil
}

func (m *mockDepartmentRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.items, id)
	return nil
}

type stubTeacherLookup struct {
	items map[string]*models.Teacher
}

func (s *stubTeacherLookup) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if t, ok := s.items[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func newTestDepartmentService() (*DepartmentService, *mockDepartmentRepo) {
	repo := &mockDepartmentRepo{items: map[string]*models.DepartmentDetail{
		"sci": {Department: models.Department{ID: "sci", Code: "SCI", Name: "Sciences"}},
	}}
	teachers := &stubTeacherLookup{items: map[string]*models.Teacher{
		"t1": {ID: "t1", FullName: "Grace Achieng", Active: true},
		"t2": {ID: "t2", FullName: "Retired Teacher", Active: false},
	}}
	return NewDepartmentService(repo, teachers, nil, nil), repo
}

func TestDepartmentServiceCreate(t *testing.T) {
	svc, repo := newTestDepartmentService()

	created, err := svc.Create(context.Background(), DepartmentRequest{Code: " hum ", Name: "Humanities", HeadTeacherID: strPtr("t1")})
	require.NoError(t, err)
	assert.Equal(t, "HUM", created.Code)
	assert.Equal(t, "t1", *created.HeadTeacherID)
	assert.Len(t, repo.items, 2)

	_, err = svc.Create(context.Background(), DepartmentRequest{Code: "SCI", Name: "Again"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestDepartmentServiceRejectsInvalidHead(t *testing.T) {
	svc, _ := newTestDepartmentService()

	_, err := svc.Create(context.Background(), DepartmentRequest{Code: "HUM", Name: "Humanities", HeadTeacherID: strPtr("t2")})
	require.Error(t, err)
	assert.Equal(t, "head teacher is inactive", appErrors.FromError(err).Message)

	_, err = svc.Update(context.Background(), "sci", DepartmentRequest{Code: "SCI", Name: "Sciences", HeadTeacherID: strPtr("ghost")})
	require.Error(t, err)
	assert.Equal(t, "head teacher not found", appErrors.FromError(err).Message)
}

func TestDepartmentServiceUpdateAndDelete(t *testing.T) {
	svc, repo := newTestDepartmentService()

	updated, err := svc.Update(context.Background(), "sci", DepartmentRequest{Code: "SCI", Name: "Natural Sciences", HeadTeacherID: strPtr("t1")})
	require.NoError(t, err)
	assert.Equal(t, "Natural Sciences", updated.Name)

	require.NoError(t, svc.Delete(context.Background(), "sci"))
	assert.Equal(t, []string{"sci"}, repo.deleted)

	err = svc.Delete(context.Background(), "sci")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

type mockSubjectRepo struct {
	items map[string]*models.Subject
	inUse map[string]bool
}

func (m *mockSubjectRepo) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	out := make([]models.Subject, 0, len(m.items))
	for _, s := range m.items {
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *mockSubjectRepo) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if s, ok := m.items[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubjectRepo) Create(ctx context.Context, subject *models.Subject) error {
	for _, s := range m.items {
		if s.Code == subject.Code {
			return repository.ErrDuplicate
		}
	}
	subject.ID = "sub-new"
	m.items[subject.ID] = subject
	return nil
}

func (m *mockSubjectRepo) Update(ctx context.Context, subject *models.Subject) error {
	m.items[subject.ID] = subject
	return nil
}

func (m *mockSubjectRepo) Delete(ctx context.Context, id string) error {
	if m.inUse[id] {
		return repository.ErrInUse
	}
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

func TestSubjectServiceLifecycle(t *testing.T) {
	repo := &mockSubjectRepo{
		items: map[string]*models.Subject{"math": {ID: "math", Code: "MATH", Name: "Mathematics"}},
		inUse: map[string]bool{"math": true},
	}
	departments := &stubDepartmentLookup{items: map[string]*models.DepartmentDetail{"sci": {Department: models.Department{ID: "sci"}}}}
	svc := NewSubjectService(repo, departments, nil, nil)

	created, err := svc.Create(context.Background(), SubjectRequest{Code: "phy", Name: "Physics", DepartmentID: strPtr("sci")})
	require.NoError(t, err)
	assert.Equal(t, "PHY", created.Code)

	_, err = svc.Create(context.Background(), SubjectRequest{Code: "math", Name: "Maths"})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), SubjectRequest{Code: "chem", Name: "Chemistry", DepartmentID: strPtr("none")})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	updated, err := svc.Update(context.Background(), "sub-new", SubjectRequest{Code: "PHY", Name: "Physics & Astronomy"})
	require.NoError(t, err)
	assert.Nil(t, updated.DepartmentID)

	err = svc.Delete(context.Background(), "math")
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	require.NoError(t, svc.Delete(context.Background(), "sub-new"))
	err = svc.Delete(context.Background(), "sub-new")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
