package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estudio-sgt/sgt-api/internal/models"
	appErrors "github.com/estudio-sgt/sgt-api/pkg/errors"
)

type mockTramiteTypeRepo struct {
	items map[string]*models.TramiteType
}

func (m *mockTramiteTypeRepo) List(ctx context.Context, filter models.TramiteTypeFilter) ([]models.TramiteType, int, error) {
	var out []models.TramiteType
	for _, it := range m.items {
		out = append(out, *it)
	}
	return out, len(out), nil
}

func (m *mockTramiteTypeRepo) FindByID(ctx context.Context, id string) (*models.TramiteType, error) {
	if it, ok := m.items[id]; ok {
		copy := *it
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTramiteTypeRepo) ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error) {
	for id, it := range m.items {
		if it.Code == code && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTramiteTypeRepo) Create(ctx context.Context, item *models.TramiteType) error {
	if m.items == nil {
		m.items = map[string]*models.TramiteType{}
	}
	item.ID = "t-" + item.Code
	copy := *item
	m.items[item.ID] = &copy
	return nil
}

func (m *mockTramiteTypeRepo) Update(ctx context.Context, item *models.TramiteType) error {
	copy := *item
	m.items[item.ID] = &copy
	return nil
}

func TestTramiteTypeServiceCreate(t *testing.T) {
	repo := &mockTramiteTypeRepo{}
	svc := NewTramiteTypeService(repo, nil, nil)

	item, err := svc.Create(context.Background(), TramiteTypeRequest{
		Code:              "rne",
		Name:              "Registro Nacional de Establecimiento",
		Agency:            models.AgencyINAL,
		SLADays:           60,
		Steps:             []string{"Presentación", " Evaluación ", "", "   "},
		RequiredDocuments: []string{"Estatuto", "Habilitación municipal"},
	})
	require.NoError(t, err)
	assert.Equal(t, "RNE", item.Code)
	assert.Equal(t, models.StringList{"Presentación", "Evaluación"}, item.Steps)
	assert.True(t, item.Active)

	_, err = svc.Create(context.Background(), TramiteTypeRequest{Code: "RNE", Name: "dup", Agency: models.AgencyINAL, SLADays: 10})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestTramiteTypeServiceValidation(t *testing.T) {
	svc := NewTramiteTypeService(&mockTramiteTypeRepo{}, nil, nil)

	_, err := svc.Create(context.Background(), TramiteTypeRequest{Code: "X1", Name: "X", Agency: "AFIP", SLADays: 10})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), TramiteTypeRequest{Code: "X1", Name: "X", Agency: models.AgencyANMAT})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTramiteTypeServiceUpdate(t *testing.T) {
	repo := &mockTramiteTypeRepo{items: map[string]*models.TramiteType{
		"t1": {ID: "t1", Code: "RNPA", Agency: models.AgencyINAL, SLADays: 30, Active: true},
	}}
	svc := NewTramiteTypeService(repo, nil, nil)
	inactive := false

	item, err := svc.Update(context.Background(), "t1", TramiteTypeRequest{Code: "RNPA", Name: "Registro de producto", Agency: models.AgencyINAL, SLADays: 45, Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, 45, item.SLADays)
	assert.False(t, item.Active)

	_, err = svc.Update(context.Background(), "missing", TramiteTypeRequest{Code: "A", Name: "A", Agency: models.AgencyINV, SLADays: 1})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
