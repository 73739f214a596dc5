package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/estudio-sgt/sgt-api/internal/models"
	"github.com/estudio-sgt/sgt-api/internal/repository"
	appErrors "github.com/estudio-sgt/sgt-api/pkg/errors"
	"github.com/estudio-sgt/sgt-api/pkg/validation"
)

type mockClientRepo struct {
	clients    map[string]*models.Client
	lastFilter models.ClientFilter
	writeErr   error
}

func (m *mockClientRepo) List(ctx context.Context, filter models.ClientFilter) ([]models.Client, int, error) {
	m.lastFilter = filter
	var out []models.Client
	for _, c := range m.clients {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *mockClientRepo) FindByID(ctx context.Context, id string) (*models.Client, error) {
	if c, ok := m.clients[id]; ok {
		copy := *c
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClientRepo) ExistsByCUIT(ctx context.Context, cuit string, excludeID string) (bool, error) {
	for id, c := range m.clients {
		if c.CUIT == cuit && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockClientRepo) Create(ctx context.Context, client *models.Client) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	if m.clients == nil {
		m.clients = map[string]*models.Client{}
	}
	if client.ID == "" {
		client.ID = "c-new"
	}
	copy := *client
	m.clients[client.ID] = &copy
	return nil
}

func (m *mockClientRepo) Update(ctx context.Context, client *models.Client) error {
	copy := *client
	m.clients[client.ID] = &copy
	return nil
}

type mockAuditWriter struct {
	logs []*models.AuditLog
}

func (m *mockAuditWriter) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func TestClientServiceCreateNormalizesCUIT(t *testing.T) {
	repo := &mockClientRepo{}
	audit := &mockAuditWriter{}
	svc := NewClientService(repo, audit, validation.New(), zap.NewNop())

	client, err := svc.Create(context.Background(), ClientRequest{BusinessName: " Laboratorio Sur SA ", CUIT: "30-71234567-1", Email: "Info@Sur.com"}, "actor", models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "30712345671", client.CUIT)
	assert.Equal(t, "Laboratorio Sur SA", client.BusinessName)
	assert.Equal(t, "info@sur.com", client.Email)
	assert.True(t, client.Active)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionClientCreate, audit.logs[0].Action)
}

func TestClientServiceCreateRejectsBadCUIT(t *testing.T) {
	svc := NewClientService(&mockClientRepo{}, nil, nil, nil)
	_, err := svc.Create(context.Background(), ClientRequest{BusinessName: "X", CUIT: "30-71234567-2"}, "actor", models.RequestMeta{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestClientServiceDuplicateCUIT(t *testing.T) {
	repo := &mockClientRepo{clients: map[string]*models.Client{
		"c1": {ID: "c1", BusinessName: "A", CUIT: "30712345671", Active: true},
		"c2": {ID: "c2", BusinessName: "B", CUIT: "20123456786", Active: true},
	}}
	svc := NewClientService(repo, nil, nil, nil)

	_, err := svc.Create(context.Background(), ClientRequest{BusinessName: "Otro", CUIT: "30712345671"}, "actor", models.RequestMeta{})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.Update(context.Background(), "c2", ClientRequest{BusinessName: "B", CUIT: "30-71234567-1"}, "actor", models.RequestMeta{})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	updated, err := svc.Update(context.Background(), "c1", ClientRequest{BusinessName: "A renamed", CUIT: "30712345671"}, "actor", models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "A renamed", updated.BusinessName)
}

func TestClientServiceCreateLosesCUITRace(t *testing.T) {
	repo := &mockClientRepo{writeErr: fmt.Errorf("create client: %w", repository.ErrDuplicate)}
	svc := NewClientService(repo, nil, nil, nil)

	_, err := svc.Create(context.Background(), ClientRequest{BusinessName: "Otro", CUIT: "30712345671"}, "actor", models.RequestMeta{})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	repo.writeErr = errors.New("connection reset")
	_, err = svc.Create(context.Background(), ClientRequest{BusinessName: "Otro", CUIT: "30712345671"}, "actor", models.RequestMeta{})
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestClientServiceDeactivate(t *testing.T) {
	repo := &mockClientRepo{clients: map[string]*models.Client{"c1": {ID: "c1", CUIT: "30712345671", Active: true}}}
	audit := &mockAuditWriter{}
	svc := NewClientService(repo, audit, nil, nil)

	require.NoError(t, svc.Deactivate(context.Background(), "c1", "actor", models.RequestMeta{}))
	assert.False(t, repo.clients["c1"].Active)
	assert.Len(t, audit.logs, 1)

	require.NoError(t, svc.Deactivate(context.Background(), "c1", "actor", models.RequestMeta{}))
	assert.Len(t, audit.logs, 1)

	err := svc.Deactivate(context.Background(), "missing", "actor", models.RequestMeta{})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestClientServiceListNormalizesCUITSearch(t *testing.T) {
	repo := &mockClientRepo{}
	svc := NewClientService(repo, nil, nil, nil)

	_, pagination, err := svc.List(context.Background(), models.ClientFilter{Search: "30-71234567-1"})
	require.NoError(t, err)
	assert.Equal(t, "30712345671", repo.lastFilter.Search)
	assert.Equal(t, 1, pagination.Page)

	_, _, err = svc.List(context.Background(), models.ClientFilter{Search: "Lab Sur"})
	require.NoError(t, err)
	assert.Equal(t, "Lab Sur", repo.lastFilter.Search)
}
