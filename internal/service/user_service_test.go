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

	"github.com/estudio-sgt/sgt-api/internal/models"
	appErrors "github.com/estudio-sgt/sgt-api/pkg/errors"
)

type mockUserRepo struct {
	users          map[string]*models.User
	listUsers      []models.User
	listCount      int
	listErr        error
	findByIDErr    error
	findByEmailErr error
	revoked        []string
	auditLogs      []*models.AuditLog
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	if m.listUsers != nil {
		return m.listUsers, m.listCount, nil
	}
	var users []models.User
	for _, u := range m.users {
		users = append(users, *u)
	}
	return users, len(users), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
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

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) SetStatus(ctx context.Context, id string, status models.UserStatus) error {
	user, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.Status = status
	return nil
}

func (m *mockUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revoked = append(m.revoked, userID)
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func TestUserServiceList(t *testing.T) {
	repo := &mockUserRepo{listUsers: []models.User{{ID: "1", Email: "a@example.com"}}, listCount: 1}
	svc := NewUserService(repo, validator.New(), zap.NewNop())
	users, pagination, err := svc.List(context.Background(), models.UserFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, 10, pagination.PageSize)

	bogus := models.UserStatus("borrado")
	_, _, err = svc.List(context.Background(), models.UserFilter{Status: &bogus})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	repo.listErr = errors.New("boom")
	_, _, err = svc.List(context.Background(), models.UserFilter{})
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreate(t *testing.T) {
	repo := &mockUserRepo{users: make(map[string]*models.User)}
	svc := NewUserService(repo, validator.New(), zap.NewNop())
	user, err := svc.Create(context.Background(), CreateUserRequest{Email: "GESTOR@ESTUDIO.COM.AR", FullName: "Gestor", Password: "secret123", Role: models.RoleGestor}, "actor", models.RequestMeta{IP: "127.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "gestor@estudio.com.ar", user.Email)
	assert.Equal(t, models.UserStatusActive, user.Status)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserCreate, repo.auditLogs[0].Action)

	_, err = svc.Create(context.Background(), CreateUserRequest{Email: "gestor@estudio.com.ar", FullName: "Dup", Password: "secret123", Role: models.RoleGestor}, "actor", models.RequestMeta{})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), CreateUserRequest{Email: "x@example.com", FullName: "X", Password: "secret123", Role: "AUDITOR"}, "actor", models.RequestMeta{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceUpdate(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"1": {ID: "1", Email: "a@example.com", FullName: "Old", Role: models.RoleConsulta, Status: models.UserStatusActive}}}
	svc := NewUserService(repo, validator.New(), zap.NewNop())
	user, err := svc.Update(context.Background(), "1", UpdateUserRequest{FullName: "New", Role: models.RoleGestor}, "actor", models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "New", user.FullName)
	assert.Equal(t, models.RoleGestor, user.Role)
	assert.Equal(t, "a@example.com", user.Email)
	assert.NotEmpty(t, repo.auditLogs)

	_, err = svc.Update(context.Background(), "missing", UpdateUserRequest{FullName: "New", Role: models.RoleGestor}, "actor", models.RequestMeta{})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUserServiceSetStatus(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"1": {ID: "1", Email: "a@example.com", Role: models.RoleGestor, Status: models.UserStatusActive}}}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	user, err := svc.SetStatus(context.Background(), "1", SetUserStatusRequest{Status: models.UserStatusSuspended, Reason: "auditoría"}, "admin", models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusSuspended, user.Status)
	assert.Equal(t, models.UserStatusSuspended, repo.users["1"].Status)
	assert.Equal(t, []string{"1"}, repo.revoked)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserStatus, repo.auditLogs[0].Action)

	_, err = svc.SetStatus(context.Background(), "1", SetUserStatusRequest{Status: models.UserStatusActive}, "admin", models.RequestMeta{})
	require.NoError(t, err)
	assert.Len(t, repo.revoked, 1)

	_, err = svc.SetStatus(context.Background(), "1", SetUserStatusRequest{Status: "borrado"}, "admin", models.RequestMeta{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceSetStatusOwnAccount(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"1": {ID: "1", Status: models.UserStatusActive}}}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	_, err := svc.SetStatus(context.Background(), "1", SetUserStatusRequest{Status: models.UserStatusSuspended}, "1", models.RequestMeta{})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.UserStatusActive, repo.users["1"].Status)
}

func TestUserServiceDelete(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"1": {ID: "1", Email: "a@example.com", Status: models.UserStatusActive}}}
	svc := NewUserService(repo, validator.New(), zap.NewNop())
	require.NoError(t, svc.Delete(context.Background(), "1", "actor", models.RequestMeta{}))
	assert.Equal(t, models.UserStatusInactive, repo.users["1"].Status)

	err := svc.Delete(context.Background(), "2", "actor", models.RequestMeta{})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
