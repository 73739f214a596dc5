package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/estudio-sgt/sgt-api/internal/models"
	"github.com/estudio-sgt/sgt-api/internal/service"
	"github.com/estudio-sgt/sgt-api/pkg/response"
)

type clientService interface {
	List(ctx context.Context, filter models.ClientFilter) ([]models.Client, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Client, error)
	Create(ctx context.Context, req service.ClientRequest, actorID string, meta models.RequestMeta) (*models.Client, error)
	Update(ctx context.Context, id string, req service.ClientRequest, actorID string, meta models.RequestMeta) (*models.Client, error)
	Deactivate(ctx context.Context, id string, actorID string, meta models.RequestMeta) error
}

// ClientHandler exposes the client registry.
type ClientHandler struct {
	service clientService
}

// NewClientHandler constructs the handler.
func NewClientHandler(svc clientService) *ClientHandler {
	return &ClientHandler{service: svc}
}

// List godoc
// @Summary List clients
// @Tags Clients
// @Produce json
// @Security BearerAuth
// @Param search query string false "Business name or CUIT"
// @Param active query bool false "Active filter"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /clients [get]
func (h *ClientHandler) List(c *gin.Context) {
	filter := models.ClientFilter{
		Search:    c.Query("search"),
		Active:    boolQuery(c, "active"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
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
// @Summary Get client
// @Tags Clients
// @Produce json
// @Security BearerAuth
// @Param id path string true "Client ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /clients/{id} [get]
func (h *ClientHandler) Get(c *gin.Context) {
	client, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, client)
}

// Create godoc
// @Summary Create client
// @Description CUIT must carry a valid check digit and be unique.
// @Tags Clients
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.ClientRequest true "Client payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /clients [post]
func (h *ClientHandler) Create(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req service.ClientRequest
	if !bindJSON(c, &req) {
		return
	}
	client, err := h.service.Create(c.Request.Context(), req, claims.UserID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, client)
}

// Update godoc
// @Summary Update client
// @Tags Clients
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Client ID"
// @Param payload body service.ClientRequest true "Client payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /clients/{id} [put]
func (h *ClientHandler) Update(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req service.ClientRequest
	if !bindJSON(c, &req) {
		return
	}
	client, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claims.UserID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, client)
}

// Deactivate godoc
// @Summary Deactivate client
// @Tags Clients
// @Security BearerAuth
// @Param id path string true "Client ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /clients/{id} [delete]
func (h *ClientHandler) Deactivate(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id"), claims.UserID, requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
