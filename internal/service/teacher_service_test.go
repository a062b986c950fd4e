package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-dashboard-api/internal/models"
	appErrors "github.com/noah-isme/school-dashboard-api/pkg/errors"
)

type mockTeacherRepo struct {
	items         map[string]*models.Teacher
	emailIndex    map[string]string
	employeeIndex map[string]string
	listResult    []models.Teacher
	listTotal     int
	listErr       error
	deactivated   []string
}

func (m *mockTeacherRepo) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.listResult, m.listTotal, nil
}

func (m *mockTeacherRepo) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if teacher, ok := m.items[id]; ok {
		cp := *teacher
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTeacherRepo) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	if owner, ok := m.emailIndex[email]; ok {
		if excludeID == "" || owner != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTeacherRepo) ExistsByEmployeeNo(ctx context.Context, employeeNo, excludeID string) (bool, error) {
	if owner, ok := m.employeeIndex[employeeNo]; ok {
		if excludeID == "" || owner != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTeacherRepo) Create(ctx context.Context, teacher *models.Teacher) error {
	if m.items == nil {
		m.items = make(map[string]*models.Teacher)
	}
	if teacher.ID == "" {
		teacher.ID = "generated"
	}
	now := time.Now()
	teacher.CreatedAt = now
	teacher.UpdatedAt = now
	cp := *teacher
	m.items[teacher.ID] = &cp
	return nil
}

func (m *mockTeacherRepo) Update(ctx context.Context, teacher *models.Teacher) error {
	if m.items == nil {
		m.items = make(map[string]*models.Teacher)
	}
	cp := *teacher
	m.items[teacher.ID] = &cp
	return nil
}

func (m *mockTeacherRepo) Deactivate(ctx context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	if t, ok := m.items[id]; ok {
		t.Active = false
	}
	return nil
}

type stubDepartmentLookup struct {
	items map[string]*models.DepartmentDetail
}

func (s *stubDepartmentLookup) FindByID(ctx context.Context, id string) (*models.DepartmentDetail, error) {
	if d, ok := s.items[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

func strPtr(v string) *string { return &v }

func TestTeacherServiceCreate(t *testing.T) {
	repo := &mockTeacherRepo{}
	departments := &stubDepartmentLookup{items: map[string]*models.DepartmentDetail{"sci": {Department: models.Department{ID: "sci"}}}}
	service := NewTeacherService(repo, departments, validator.New(), zap.NewNop())

	teacher, err := service.Create(context.Background(), CreateTeacherRequest{
		Email:        " Teach@Example.com ",
		FullName:     "Teacher One",
		EmployeeNo:   strPtr(" EMP-01 "),
		Phone:        strPtr(""),
		DepartmentID: strPtr("sci"),
	})
	require.NoError(t, err)
	assert.Equal(t, "teach@example.com", teacher.Email)
	assert.Equal(t, "EMP-01", *teacher.EmployeeNo)
	assert.Nil(t, teacher.Phone)
	assert.True(t, teacher.Active)
	assert.Len(t, repo.items, 1)
}

func TestTeacherServiceCreateUnknownDepartment(t *testing.T) {
	service := NewTeacherService(&mockTeacherRepo{}, &stubDepartmentLookup{}, validator.New(), zap.NewNop())

	_, err := service.Create(context.Background(), CreateTeacherRequest{
		Email:        "teach@example.com",
		FullName:     "Teacher One",
		DepartmentID: strPtr("missing"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTeacherServiceCreateDuplicates(t *testing.T) {
	repo := &mockTeacherRepo{
		emailIndex:    map[string]string{"teach@example.com": "another"},
		employeeIndex: map[string]string{"EMP-01": "another"},
	}
	service := NewTeacherService(repo, nil, validator.New(), zap.NewNop())

	_, err := service.Create(context.Background(), CreateTeacherRequest{Email: "teach@example.com", FullName: "Teacher One"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = service.Create(context.Background(), CreateTeacherRequest{Email: "fresh@example.com", FullName: "Teacher One", EmployeeNo: strPtr("EMP-01")})
	require.Error(t, err)
	assert.Equal(t, "employee number already used", appErrors.FromError(err).Message)
}

func TestTeacherServiceCreateValidation(t *testing.T) {
	service := NewTeacherService(&mockTeacherRepo{}, nil, nil, nil)
	_, err := service.Create(context.Background(), CreateTeacherRequest{Email: "not-an-email"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTeacherServiceUpdate(t *testing.T) {
	repo := &mockTeacherRepo{
		items: map[string]*models.Teacher{
			"t1": {ID: "t1", Email: "teach@example.com", FullName: "Teacher One", Active: true},
		},
		emailIndex: map[string]string{"teach@example.com": "t1"},
	}
	service := NewTeacherService(repo, nil, validator.New(), zap.NewNop())

	active := false
	updated, err := service.Update(context.Background(), "t1", UpdateTeacherRequest{
		Email:    "teach@example.com",
		FullName: "Teacher Updated",
		Active:   &active,
	})
	require.NoError(t, err)
	assert.Equal(t, "Teacher Updated", updated.FullName)
	assert.False(t, updated.Active)
}

func TestTeacherServiceGetNotFound(t *testing.T) {
	service := NewTeacherService(&mockTeacherRepo{}, nil, validator.New(), zap.NewNop())
	_, err := service.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Status, appErrors.FromError(err).Status)
}

func TestTeacherServiceList(t *testing.T) {
	repo := &mockTeacherRepo{listResult: []models.Teacher{{ID: "t1"}}, listTotal: 41}
	service := NewTeacherService(repo, nil, validator.New(), zap.NewNop())

	items, pagination, err := service.List(context.Background(), models.TeacherFilter{Page: 2, PageSize: 20})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 2, pagination.Page)
	assert.Equal(t, 41, pagination.TotalCount)
}

func TestTeacherServiceDeactivate(t *testing.T) {
	repo := &mockTeacherRepo{
		items: map[string]*models.Teacher{
			"t1": {ID: "t1", Email: "teach@example.com", FullName: "Teacher One", Active: true},
		},
	}
	service := NewTeacherService(repo, nil, validator.New(), zap.NewNop())

	err := service.Deactivate(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, repo.deactivated)
}
