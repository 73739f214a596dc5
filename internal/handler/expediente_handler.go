package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/estudio-sgt/sgt-api/internal/dto"
	"github.com/estudio-sgt/sgt-api/internal/models"
	"github.com/estudio-sgt/sgt-api/pkg/response"
)

type expedienteService interface {
	List(ctx context.Context, filter models.ExpedienteFilter) ([]dto.ExpedienteView, *models.Pagination, error)
	Get(ctx context.Context, id string) (*dto.ExpedienteView, error)
	Create(ctx context.Context, req dto.CreateExpedienteRequest, actorID string, meta models.RequestMeta) (*dto.ExpedienteView, error)
	Update(ctx context.Context, id string, req dto.UpdateExpedienteRequest, actorID string, meta models.RequestMeta) (*dto.ExpedienteView, error)
	AdvanceStep(ctx context.Context, id string, actorID string, meta models.RequestMeta) (*dto.ExpedienteView, error)
	ChangeState(ctx context.Context, id string, req dto.ChangeStateRequest, actorID string, meta models.RequestMeta) (*dto.ExpedienteView, error)
}

// ExpedienteHandler exposes case endpoints.
type ExpedienteHandler struct {
	service expedienteService
}

// NewExpedienteHandler constructs the handler.
func NewExpedienteHandler(svc expedienteService) *ExpedienteHandler {
	return &ExpedienteHandler{service: svc}
}

// List godoc
// @Summary List expedientes
// @Description Each item carries deadline status, progress, document summary and badge tones.
// @Tags Expedientes
// @Produce json
// @Security BearerAuth
// @Param state query string false "iniciado, en_proceso, en_observacion, completado, vencido"
// @Param priority query string false "normal, alta, urgente"
// @Param urgency query string false "on_track, warning, overdue"
// @Param client_id query string false "Client ID"
// @Param tramite_type_id query string false "Procedure type ID"
// @Param agency query string false "Agency"
// @Param assigned_to query string false "Assignee user ID"
// @Param search query string false "Code or client name"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param sort_by query string false "deadline, created_at, code, priority, state"
// @Param sort_order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /expedientes [get]
func (h *ExpedienteHandler) List(c *gin.Context) {
	filter := models.ExpedienteFilter{
		Search:        c.Query("search"),
		ClientID:      c.Query("client_id"),
		TramiteTypeID: c.Query("tramite_type_id"),
		Urgency:       c.Query("urgency"),
		AssignedTo:    c.Query("assigned_to"),
		SortBy:        c.Query("sort_by"),
		SortOrder:     c.Query("sort_order"),
	}
	if state := c.Query("state"); state != "" {
		s := models.ExpedienteState(state)
		filter.State = &s
	}
	if priority := c.Query("priority"); priority != "" {
		p := models.Priority(priority)
		filter.Priority = &p
	}
	if agency := c.Query("agency"); agency != "" {
		a := models.Agency(agency)
		filter.Agency = &a
	}
	filter.Page, filter.PageSize = pageParams(c)

	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get expediente
// @Tags Expedientes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Expediente ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /expedientes/{id} [get]
func (h *ExpedienteHandler) Get(c *gin.Context) {
	view, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// Create godoc
// @Summary Open expediente
// @Description Deadline defaults to start date plus the type SLA; the checklist is seeded from the type.
// @Tags Expedientes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateExpedienteRequest true "Expediente payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /expedientes [post]
func (h *ExpedienteHandler) Create(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.CreateExpedienteRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.service.Create(c.Request.Context(), req, claims.UserID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// Update godoc
// @Summary Update expediente
// @Tags Expedientes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Expediente ID"
// @Param payload body dto.UpdateExpedienteRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /expedientes/{id} [patch]
func (h *ExpedienteHandler) Update(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.UpdateExpedienteRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claims.UserID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// Advance godoc
// @Summary Advance to the next step
// @Description Reaching the last step completes the case and requires every required document approved.
// @Tags Expedientes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Expediente ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /expedientes/{id}/advance [post]
func (h *ExpedienteHandler) Advance(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	view, err := h.service.AdvanceStep(c.Request.Context(), c.Param("id"), claims.UserID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// ChangeState godoc
// @Summary Apply a state action
// @Description Actions: observe, resume, complete, reopen.
// @Tags Expedientes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Expediente ID"
// @Param payload body dto.ChangeStateRequest true "Action"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /expedientes/{id}/state [post]
func (h *ExpedienteHandler) ChangeState(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.ChangeStateRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.service.ChangeState(c.Request.Context(), c.Param("id"), req, claims.UserID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}
