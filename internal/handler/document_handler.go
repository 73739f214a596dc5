package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/estudio-sgt/sgt-api/internal/dto"
	"github.com/estudio-sgt/sgt-api/internal/models"
	"github.com/estudio-sgt/sgt-api/internal/rules"
	"github.com/estudio-sgt/sgt-api/internal/service"
	appErrors "github.com/estudio-sgt/sgt-api/pkg/errors"
	"github.com/estudio-sgt/sgt-api/pkg/response"
)

const uploadFormField = "file"

type documentService interface {
	List(ctx context.Context, expedienteID string) (*dto.DocumentListResponse, error)
	Summary(ctx context.Context, expedienteID string) (*rules.DocumentSummary, error)
	Create(ctx context.Context, expedienteID string, req dto.CreateDocumentRequest, actorID string, meta models.RequestMeta) (*dto.DocumentView, error)
	Upload(ctx context.Context, documentID string, in service.UploadInput, actorID string, meta models.RequestMeta) (*dto.DocumentView, error)
	Review(ctx context.Context, documentID string, req dto.ReviewDocumentRequest, actorID string, meta models.RequestMeta) (*dto.DocumentView, error)
	Delete(ctx context.Context, documentID string, actorID string, role models.UserRole, meta models.RequestMeta) error
	DownloadURL(ctx context.Context, documentID, urlPrefix string) (*dto.DownloadURLResponse, error)
	Download(ctx context.Context, token string) (*service.DocumentDownload, error)
}

// DocumentHandler exposes checklist endpoints.
type DocumentHandler struct {
	service   documentService
	apiPrefix string
}

// NewDocumentHandler constructs the handler. apiPrefix is used to build
// signed download URLs.
func NewDocumentHandler(svc documentService, apiPrefix string) *DocumentHandler {
	return &DocumentHandler{service: svc, apiPrefix: strings.TrimRight(apiPrefix, "/")}
}

// List godoc
// @Summary List expediente documents
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Expediente ID"
// @Success 200 {object} response.Envelope
// @Router /expedientes/{id}/documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	res, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Summary godoc
// @Summary Checklist completion summary
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Expediente ID"
// @Success 200 {object} response.Envelope
// @Router /expedientes/{id}/documents/summary [get]
func (h *DocumentHandler) Summary(c *gin.Context) {
	res, err := h.service.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Create godoc
// @Summary Add checklist entry
// @Tags Documents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Expediente ID"
// @Param payload body dto.CreateDocumentRequest true "Document metadata"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /expedientes/{id}/documents [post]
func (h *DocumentHandler) Create(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.CreateDocumentRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.service.Create(c.Request.Context(), c.Param("id"), req, claims.UserID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// Upload godoc
// @Summary Upload document file
// @Description Multipart upload; content type is sniffed and checked against the allowed list.
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Param file formData file true "File"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /documents/{id}/file [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	header, err := c.FormFile(uploadFormField)
	if err != nil {
		response.Error(c, appErrors.Validation(err, "multipart field \"file\" is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Validation(err, "cannot read uploaded file"))
		return
	}
	defer file.Close()

	view, err := h.service.Upload(c.Request.Context(), c.Param("id"), service.UploadInput{
		Filename: header.Filename,
		Size:     header.Size,
		Content:  file,
	}, claims.UserID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// Review godoc
// @Summary Move document through review
// @Description pendiente to en_revision, en_revision to aprobado or rechazado, rechazado to pendiente, aprobado to en_revision.
// @Tags Documents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Param payload body dto.ReviewDocumentRequest true "Target state"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{id}/review [patch]
func (h *DocumentHandler) Review(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.ReviewDocumentRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.service.Review(c.Request.Context(), c.Param("id"), req, claims.UserID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// Delete godoc
// @Summary Delete checklist entry
// @Description Required entries can only be removed by SUPERADMIN.
// @Tags Documents
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role, requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DownloadURL godoc
// @Summary Issue signed download URL
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id}/download-url [get]
func (h *DocumentHandler) DownloadURL(c *gin.Context) {
	res, err := h.service.DownloadURL(c.Request.Context(), c.Param("id"), h.apiPrefix+"/documents/download")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Download godoc
// @Summary Download document by signed token
// @Tags Documents
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /documents/download/{token} [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	res, err := h.service.Download(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	serveFile(c, res.File, res.Filename, res.MimeType)
}

// serveFile streams file as an attachment and closes it.
func serveFile(c *gin.Context, file *os.File, filename, contentType string) {
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to stat file"))
		return
	}
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", filename),
	})
}
