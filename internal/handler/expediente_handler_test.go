package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estudio-sgt/sgt-api/internal/dto"
	"github.com/estudio-sgt/sgt-api/internal/models"
	appErrors "github.com/estudio-sgt/sgt-api/pkg/errors"
)

type fakeExpedienteSrv struct {
	lastFilter models.ExpedienteFilter
	lastCreate dto.CreateExpedienteRequest
	lastActor  string
	lastAction dto.ChangeStateRequest
	view       *dto.ExpedienteView
	err        error
}

func (f *fakeExpedienteSrv) List(ctx context.Context, filter models.ExpedienteFilter) ([]dto.ExpedienteView, *models.Pagination, error) {
	f.lastFilter = filter
	return []dto.ExpedienteView{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, f.err
}

func (f *fakeExpedienteSrv) Get(ctx context.Context, id string) (*dto.ExpedienteView, error) {
	return f.view, f.err
}

func (f *fakeExpedienteSrv) Create(ctx context.Context, req dto.CreateExpedienteRequest, actorID string, meta models.RequestMeta) (*dto.ExpedienteView, error) {
	f.lastCreate = req
	f.lastActor = actorID
	return f.view, f.err
}

func (f *fakeExpedienteSrv) Update(ctx context.Context, id string, req dto.UpdateExpedienteRequest, actorID string, meta models.RequestMeta) (*dto.ExpedienteView, error) {
	return f.view, f.err
}

func (f *fakeExpedienteSrv) AdvanceStep(ctx context.Context, id string, actorID string, meta models.RequestMeta) (*dto.ExpedienteView, error) {
	return f.view, f.err
}

func (f *fakeExpedienteSrv) ChangeState(ctx context.Context, id string, req dto.ChangeStateRequest, actorID string, meta models.RequestMeta) (*dto.ExpedienteView, error) {
	f.lastAction = req
	return f.view, f.err
}

func TestExpedienteHandlerListParsesFilters(t *testing.T) {
	srv := &fakeExpedienteSrv{}
	h := NewExpedienteHandler(srv)

	c, w := newGinContext(http.MethodGet, "/expedientes?state=vencido&priority=urgente&agency=ANMAT&urgency=warning&client_id=c1&page=2&page_size=50&search=RNPA", nil)
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, srv.lastFilter.State)
	assert.Equal(t, models.ExpedienteStateOverdue, *srv.lastFilter.State)
	require.NotNil(t, srv.lastFilter.Priority)
	assert.Equal(t, models.PriorityUrgent, *srv.lastFilter.Priority)
	require.NotNil(t, srv.lastFilter.Agency)
	assert.Equal(t, models.AgencyANMAT, *srv.lastFilter.Agency)
	assert.Equal(t, "warning", srv.lastFilter.Urgency)
	assert.Equal(t, "c1", srv.lastFilter.ClientID)
	assert.Equal(t, "RNPA", srv.lastFilter.Search)
	assert.Equal(t, 2, srv.lastFilter.Page)
	assert.Equal(t, 50, srv.lastFilter.PageSize)
	assert.NotNil(t, decode(t, w).Pagination)
}

func TestExpedienteHandlerCreate(t *testing.T) {
	srv := &fakeExpedienteSrv{view: &dto.ExpedienteView{}}
	h := NewExpedienteHandler(srv)

	body := mustJSON(t, dto.CreateExpedienteRequest{ClientID: "c1", TramiteTypeID: "t1"})
	c, w := newGinContext(http.MethodPost, "/expedientes", body)
	h.Create(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newGinContext(http.MethodPost, "/expedientes", body)
	asUser(c, "gestor-1", models.RoleGestor)
	h.Create(c)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "gestor-1", srv.lastActor)
	assert.Equal(t, "c1", srv.lastCreate.ClientID)
}

func TestExpedienteHandlerCreateRejectsMalformedJSON(t *testing.T) {
	h := NewExpedienteHandler(&fakeExpedienteSrv{})
	c, w := newGinContext(http.MethodPost, "/expedientes", []byte("{"))
	asUser(c, "gestor-1", models.RoleGestor)
	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExpedienteHandlerStateConflict(t *testing.T) {
	srv := &fakeExpedienteSrv{err: appErrors.Clone(appErrors.ErrDocumentsIncomplete, "2 required documents pending")}
	h := NewExpedienteHandler(srv)

	c, w := newGinContext(http.MethodPost, "/expedientes/e1/state", mustJSON(t, dto.ChangeStateRequest{Action: dto.StateActionComplete}))
	asUser(c, "gestor-1", models.RoleGestor)
	h.ChangeState(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DOCUMENTS_INCOMPLETE", decode(t, w).Error["code"])
	assert.Equal(t, dto.StateActionComplete, srv.lastAction.Action)
}
