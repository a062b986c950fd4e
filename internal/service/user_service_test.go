package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/school-dashboard-api/internal/models"
	appErrors "github.com/noah-isme/school-dashboard-api/pkg/errors"
)

type mockUserRepo struct {
	users     map[string]*models.User
	listUsers []models.User
	listCount int
	listErr   error
	auditLogs []*models.AuditLog
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.listUsers, m.listCount, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Deactivate(ctx context.Context, id string) error {
	if user, ok := m.users[id]; ok {
		user.Active = false
		return nil
	}
	return sql.ErrNoRows
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func newTestUserService(repo *mockUserRepo) *UserService {
	svc := NewUserService(repo, validator.New(), zap.NewNop())
	svc.bcryptCost = bcrypt.MinCost
	return svc
}

func TestUserServiceList(t *testing.T) {
	repo := &mockUserRepo{listUsers: []models.User{{ID: "1", Email: "a@example.com"}}, listCount: 1}
	svc := newTestUserService(repo)
	users, pagination, err := svc.List(context.Background(), models.UserFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.TotalCount)

	bogus := models.UserRole("JANITOR")
	_, _, err = svc.List(context.Background(), models.UserFilter{Role: &bogus})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreate(t *testing.T) {
	repo := &mockUserRepo{users: make(map[string]*models.User)}
	svc := newTestUserService(repo)
	user, err := svc.Create(context.Background(), CreateUserRequest{
		Email:    "USER@EXAMPLE.COM",
		FullName: "User",
		Password: "secret123",
		Role:     models.RoleHeadOfDepartment,
	}, AuditMeta{ActorID: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", user.Email)
	assert.True(t, user.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret123")))
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserCreate, repo.auditLogs[0].Action)
	assert.Equal(t, "admin", *repo.auditLogs[0].UserID)
}

func TestUserServiceCreateRejectsDuplicateAndBadRole(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"1": {ID: "1", Email: "taken@example.com"}}}
	svc := newTestUserService(repo)

	_, err := svc.Create(context.Background(), CreateUserRequest{Email: "taken@example.com", FullName: "U", Password: "secret123", Role: models.RoleTeacher}, AuditMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), CreateUserRequest{Email: "new@example.com", FullName: "U", Password: "secret123", Role: "SUPERADMIN"}, AuditMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceDeactivate(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"1": {ID: "1", Email: "a@example.com", FullName: "Old", Role: models.RoleTeacher, Active: true}}}
	svc := newTestUserService(repo)

	err := svc.Deactivate(context.Background(), "1", AuditMeta{ActorID: "admin"})
	require.NoError(t, err)
	assert.False(t, repo.users["1"].Active)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserDeactivate, repo.auditLogs[0].Action)

	err = svc.Deactivate(context.Background(), "missing", AuditMeta{ActorID: "admin"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUserServiceDeactivateSelf(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"admin": {ID: "admin", Active: true}}}
	svc := newTestUserService(repo)
	err := svc.Deactivate(context.Background(), "admin", AuditMeta{ActorID: "admin"})
	require.Error(t, err)
	assert.True(t, repo.users["admin"].Active)
}
