package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estudio-sgt/sgt-api/internal/dto"
	"github.com/estudio-sgt/sgt-api/internal/models"
	"github.com/estudio-sgt/sgt-api/internal/rules"
	"github.com/estudio-sgt/sgt-api/internal/service"
	appErrors "github.com/estudio-sgt/sgt-api/pkg/errors"
)

type fakeDocumentSrv struct {
	uploaded   []byte
	uploadName string
	uploadErr  error
	urlPrefix  string
	deleteRole models.UserRole
	download   *service.DocumentDownload
}

func (f *fakeDocumentSrv) List(ctx context.Context, expedienteID string) (*dto.DocumentListResponse, error) {
	return &dto.DocumentListResponse{}, nil
}

func (f *fakeDocumentSrv) Summary(ctx context.Context, expedienteID string) (*rules.DocumentSummary, error) {
	return &rules.DocumentSummary{Total: 2, Required: 2, ApprovedRequired: 1, CompletionPercent: 50}, nil
}

func (f *fakeDocumentSrv) Create(ctx context.Context, expedienteID string, req dto.CreateDocumentRequest, actorID string, meta models.RequestMeta) (*dto.DocumentView, error) {
	return &dto.DocumentView{}, nil
}

func (f *fakeDocumentSrv) Upload(ctx context.Context, documentID string, in service.UploadInput, actorID string, meta models.RequestMeta) (*dto.DocumentView, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	data, err := io.ReadAll(in.Content)
	if err != nil {
		return nil, err
	}
	f.uploaded = data
	f.uploadName = in.Filename
	return &dto.DocumentView{}, nil
}

func (f *fakeDocumentSrv) Review(ctx context.Context, documentID string, req dto.ReviewDocumentRequest, actorID string, meta models.RequestMeta) (*dto.DocumentView, error) {
	return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "cannot move pendiente to aprobado")
}

func (f *fakeDocumentSrv) Delete(ctx context.Context, documentID string, actorID string, role models.UserRole, meta models.RequestMeta) error {
	f.deleteRole = role
	return nil
}

func (f *fakeDocumentSrv) DownloadURL(ctx context.Context, documentID, urlPrefix string) (*dto.DownloadURLResponse, error) {
	f.urlPrefix = urlPrefix
	return &dto.DownloadURLResponse{URL: urlPrefix + "/tok"}, nil
}

func (f *fakeDocumentSrv) Download(ctx context.Context, token string) (*service.DocumentDownload, error) {
	if f.download == nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	return f.download, nil
}

func multipartUpload(t *testing.T, field, filename string, content []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	c, w := newGinContext(http.MethodPost, "/documents/d1/file", nil)
	c.Request = httptest.NewRequest(http.MethodPost, "/documents/d1/file", body)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())
	c.Params = gin.Params{{Key: "id", Value: "d1"}}
	asUser(c, "gestor-1", models.RoleGestor)
	return c, w
}

func TestDocumentHandlerUpload(t *testing.T) {
	srv := &fakeDocumentSrv{}
	h := NewDocumentHandler(srv, "/api/v1")

	c, w := multipartUpload(t, "file", "rotulo.pdf", []byte("%PDF-1.4 test"))
	h.Upload(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "rotulo.pdf", srv.uploadName)
	assert.Equal(t, []byte("%PDF-1.4 test"), srv.uploaded)
}

func TestDocumentHandlerUploadRequiresFileField(t *testing.T) {
	h := NewDocumentHandler(&fakeDocumentSrv{}, "/api/v1")

	c, w := multipartUpload(t, "attachment", "rotulo.pdf", []byte("x"))
	h.Upload(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentHandlerUploadMapsServiceErrors(t *testing.T) {
	h := NewDocumentHandler(&fakeDocumentSrv{uploadErr: appErrors.ErrUnsupportedMediaType}, "/api/v1")

	c, w := multipartUpload(t, "file", "script.sh", []byte("#!/bin/sh"))
	h.Upload(c)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestDocumentHandlerReviewInvalidTransition(t *testing.T) {
	h := NewDocumentHandler(&fakeDocumentSrv{}, "/api/v1")

	c, w := newGinContext(http.MethodPatch, "/documents/d1/review", mustJSON(t, dto.ReviewDocumentRequest{State: models.DocumentStateApproved}))
	asUser(c, "gestor-1", models.RoleGestor)
	h.Review(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_TRANSITION", decode(t, w).Error["code"])
}

func TestDocumentHandlerDeletePassesRole(t *testing.T) {
	srv := &fakeDocumentSrv{}
	h := NewDocumentHandler(srv, "/api/v1")

	c, w := newGinContext(http.MethodDelete, "/documents/d1", nil)
	asUser(c, "root", models.RoleSuperAdmin)
	h.Delete(c)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, models.RoleSuperAdmin, srv.deleteRole)
}

func TestDocumentHandlerDownloadURLAndDownload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotulo.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))
	file, err := os.Open(path)
	require.NoError(t, err)

	srv := &fakeDocumentSrv{download: &service.DocumentDownload{File: file, Filename: "rotulo.pdf", MimeType: "application/pdf"}}
	h := NewDocumentHandler(srv, "/api/v1/")

	c, w := newGinContext(http.MethodGet, "/documents/d1/download-url", nil)
	h.DownloadURL(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/api/v1/documents/download", srv.urlPrefix)

	c, w = newGinContext(http.MethodGet, "/documents/download/tok", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok"}}
	h.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="rotulo.pdf"`)
	assert.Equal(t, "%PDF-1.4", w.Body.String())
}

func TestDocumentHandlerDownloadRejectsBadToken(t *testing.T) {
	h := NewDocumentHandler(&fakeDocumentSrv{}, "/api/v1")
	c, w := newGinContext(http.MethodGet, "/documents/download/bad", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad"}}
	h.Download(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
