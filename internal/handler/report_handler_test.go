package handler

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estudio-sgt/sgt-api/internal/dto"
	"github.com/estudio-sgt/sgt-api/internal/models"
	"github.com/estudio-sgt/sgt-api/internal/service"
	appErrors "github.com/estudio-sgt/sgt-api/pkg/errors"
)

type reportServiceMock struct {
	lastReq     dto.ReportRequest
	lastRole    models.UserRole
	createResp  *dto.ReportJobResponse
	createErr   error
	statusResp  *dto.ReportStatusResponse
	statusErr   error
	download    *service.ReportDownload
	downloadErr error
}

func (m *reportServiceMock) CreateJob(ctx context.Context, req dto.ReportRequest, actorID string) (*dto.ReportJobResponse, error) {
	m.lastReq = req
	return m.createResp, m.createErr
}

func (m *reportServiceMock) GetStatus(ctx context.Context, id, actorID string, role models.UserRole) (*dto.ReportStatusResponse, error) {
	m.lastRole = role
	return m.statusResp, m.statusErr
}

func (m *reportServiceMock) ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error) {
	return m.download, m.downloadErr
}

func TestReportHandlerGenerate(t *testing.T) {
	mockSvc := &reportServiceMock{createResp: &dto.ReportJobResponse{ID: "job-1", Status: models.ReportStatusQueued}}
	h := NewReportHandler(mockSvc)

	payload := mustJSON(t, dto.ReportRequest{Type: models.ReportTypeDeadlines, Format: models.ReportFormatPDF, WithinDays: 15})
	c, w := newGinContext(http.MethodPost, "/reports", payload)
	asUser(c, "admin", models.RoleAdmin)

	h.Generate(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 15, mockSvc.lastReq.WithinDays)
	assert.Equal(t, models.ReportTypeDeadlines, mockSvc.lastReq.Type)
}

func TestReportHandlerGenerateQueueFull(t *testing.T) {
	h := NewReportHandler(&reportServiceMock{createErr: appErrors.Clone(appErrors.ErrServiceUnavailable, "report queue is full, retry later")})

	c, w := newGinContext(http.MethodPost, "/reports", mustJSON(t, dto.ReportRequest{Type: models.ReportTypeExpedientes, Format: models.ReportFormatCSV}))
	asUser(c, "admin", models.RoleAdmin)

	h.Generate(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReportHandlerStatusPassesRole(t *testing.T) {
	mockSvc := &reportServiceMock{statusResp: &dto.ReportStatusResponse{ID: "job-1", Status: models.ReportStatusFinished, Progress: 100}}
	h := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/reports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	asUser(c, "g1", models.RoleGestor)

	h.Status(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RoleGestor, mockSvc.lastRole)
}

func TestReportHandlerDownload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o600))
	file, err := os.Open(path)
	require.NoError(t, err)

	h := NewReportHandler(&reportServiceMock{download: &service.ReportDownload{
		File:      file,
		Filename:  "report.pdf",
		Format:    models.ReportFormatPDF,
		ExpiresAt: time.Now().Add(time.Hour),
	}})

	c, w := newGinContext(http.MethodGet, "/reports/download/token", nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}

	h.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF", w.Body.String())
}
