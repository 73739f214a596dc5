package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/estudio-sgt/sgt-api/internal/models"
	"github.com/estudio-sgt/sgt-api/internal/service"
	"github.com/estudio-sgt/sgt-api/pkg/response"
)

type tramiteTypeService interface {
	List(ctx context.Context, filter models.TramiteTypeFilter) ([]models.TramiteType, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.TramiteType, error)
	Create(ctx context.Context, req service.TramiteTypeRequest) (*models.TramiteType, error)
	Update(ctx context.Context, id string, req service.TramiteTypeRequest) (*models.TramiteType, error)
}

// TramiteTypeHandler exposes the procedure catalog.
type TramiteTypeHandler struct {
	service tramiteTypeService
}

// NewTramiteTypeHandler constructs the handler.
func NewTramiteTypeHandler(svc tramiteTypeService) *TramiteTypeHandler {
	return &TramiteTypeHandler{service: svc}
}

// List godoc
// @Summary List procedure types
// @Tags Tramite Types
// @Produce json
// @Security BearerAuth
// @Param agency query string false "Agency (ANMAT, SENASA, ENACOM, INAL, INV, SEDRONAR, OTRO)"
// @Param active query bool false "Active filter"
// @Param search query string false "Code or name"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /tramite-types [get]
func (h *TramiteTypeHandler) List(c *gin.Context) {
	filter := models.TramiteTypeFilter{
		Search: c.Query("search"),
		Active: boolQuery(c, "active"),
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
// @Summary Get procedure type
// @Tags Tramite Types
// @Produce json
// @Security BearerAuth
// @Param id path string true "Type ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tramite-types/{id} [get]
func (h *TramiteTypeHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Create godoc
// @Summary Create procedure type
// @Tags Tramite Types
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.TramiteTypeRequest true "Type payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tramite-types [post]
func (h *TramiteTypeHandler) Create(c *gin.Context) {
	var req service.TramiteTypeRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update procedure type
// @Tags Tramite Types
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Type ID"
// @Param payload body service.TramiteTypeRequest true "Type payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /tramite-types/{id} [put]
func (h *TramiteTypeHandler) Update(c *gin.Context) {
	var req service.TramiteTypeRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}
