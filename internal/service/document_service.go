package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/estudio-sgt/sgt-api/internal/dto"
	"github.com/estudio-sgt/sgt-api/internal/models"
	"github.com/estudio-sgt/sgt-api/internal/rules"
	appErrors "github.com/estudio-sgt/sgt-api/pkg/errors"
	"github.com/estudio-sgt/sgt-api/pkg/storage"
	"github.com/estudio-sgt/sgt-api/pkg/validation"
)

type documentRepository interface {
	ListByExpediente(ctx context.Context, expedienteID string) ([]models.Document, error)
	FindByID(ctx context.Context, id string) (*models.Document, error)
	Create(ctx context.Context, doc *models.Document) error
	AttachFile(ctx context.Context, doc *models.Document) error
	UpdateReview(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, id string) error
}

type expedienteFinder interface {
	FindByID(ctx context.Context, id string) (*models.ExpedienteDetail, error)
}

type fileStore interface {
	SaveStream(name string, r io.Reader, limit int64) (int64, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
}

type urlSigner interface {
	Generate(resourceID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (storage.SignedClaims, error)
}

// sniffLen is how many bytes http.DetectContentType considers.
const sniffLen = 512

var reviewTransitions = map[models.DocumentState][]models.DocumentState{
	models.DocumentStatePending:     {models.DocumentStateUnderReview},
	models.DocumentStateUnderReview: {models.DocumentStateApproved, models.DocumentStateRejected},
	models.DocumentStateRejected:    {models.DocumentStatePending},
	models.DocumentStateApproved:    {models.DocumentStateUnderReview},
}

// DocumentServiceConfig bounds uploads.
type DocumentServiceConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// DocumentServiceParams groups constructor dependencies.
type DocumentServiceParams struct {
	Repo        documentRepository
	Expedientes expedienteFinder
	Storage     fileStore
	Signer      urlSigner
	Audit       auditLogWriter
	Cache       cacheInvalidator
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
	Clock       Clock
	Location    *time.Location
	Config      DocumentServiceConfig
}

// UploadInput is a file received for a checklist entry.
type UploadInput struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// DocumentDownload is an opened stored file ready to stream.
type DocumentDownload struct {
	File     *os.File
	Filename string
	MimeType string
}

// DocumentService manages expediente checklists and their files.
type DocumentService struct {
	repo        documentRepository
	expedientes expedienteFinder
	storage     fileStore
	signer      urlSigner
	audit       auditLogWriter
	cache       cacheInvalidator
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	clock       dayClock
	cfg         DocumentServiceConfig
	allowed     map[string]struct{}
}

// NewDocumentService constructs the service.
func NewDocumentService(params DocumentServiceParams) *DocumentService {
	validate := params.Validator
	if validate == nil {
		validate = validation.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := params.Config
	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = 15 << 20
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"application/pdf", "image/jpeg", "image/png"}
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, m := range cfg.AllowedMIMEs {
		allowed[strings.ToLower(strings.TrimSpace(m))] = struct{}{}
	}
	return &DocumentService{
		repo:        params.Repo,
		expedientes: params.Expedientes,
		storage:     params.Storage,
		signer:      params.Signer,
		audit:       params.Audit,
		cache:       params.Cache,
		metrics:     params.Metrics,
		validator:   validate,
		logger:      logger,
		clock:       newDayClock(params.Clock, params.Location),
		cfg:         cfg,
		allowed:     allowed,
	}
}

// List returns the checklist of an expediente with its summary.
func (s *DocumentService) List(ctx context.Context, expedienteID string) (*dto.DocumentListResponse, error) {
	if _, err := s.loadExpediente(ctx, expedienteID); err != nil {
		return nil, err
	}
	docs, err := s.repo.ListByExpediente(ctx, expedienteID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	today := s.clock.Today()
	items := make([]dto.DocumentView, 0, len(docs))
	for _, doc := range docs {
		items = append(items, buildDocumentView(doc, today))
	}
	return &dto.DocumentListResponse{Items: items, Summary: rules.SummarizeDocuments(docs, today)}, nil
}

// Summary returns only the completion summary of a checklist.
func (s *DocumentService) Summary(ctx context.Context, expedienteID string) (*rules.DocumentSummary, error) {
	list, err := s.List(ctx, expedienteID)
	if err != nil {
		return nil, err
	}
	return &list.Summary, nil
}

// Create adds a checklist entry to an expediente.
func (s *DocumentService) Create(ctx context.Context, expedienteID string, req dto.CreateDocumentRequest, actorID string, meta models.RequestMeta) (*dto.DocumentView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}
	exp, err := s.loadExpediente(ctx, expedienteID)
	if err != nil {
		return nil, err
	}
	if err := ensureEditable(exp); err != nil {
		return nil, err
	}
	doc := &models.Document{
		ExpedienteID: expedienteID,
		Name:         strings.TrimSpace(req.Name),
		DocType:      strings.TrimSpace(req.DocType),
		Required:     req.Required,
		State:        models.DocumentStatePending,
	}
	if doc.DocType == "" {
		doc.DocType = "adicional"
	}
	if req.ExpiresAt != "" {
		expires, err := parseDate(req.ExpiresAt)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "expires_at must be YYYY-MM-DD")
		}
		doc.ExpiresAt = &expires
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document")
	}
	s.afterMutation(ctx, auditEntry{
		actorID:    actorID,
		action:     models.AuditActionDocumentUpload,
		resource:   "documents",
		resourceID: doc.ID,
		newValues:  map[string]interface{}{"expediente_id": expedienteID, "name": doc.Name, "required": doc.Required},
		meta:       meta,
	})
	view := buildDocumentView(*doc, s.clock.Today())
	return &view, nil
}

// Upload stores a file for a checklist entry. The content type is sniffed
// from the bytes, never trusted from the client, and the entry goes back to
// pendiente.
func (s *DocumentService) Upload(ctx context.Context, documentID string, in UploadInput, actorID string, meta models.RequestMeta) (*dto.DocumentView, error) {
	if in.Size > s.cfg.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxFileSizeBytes))
	}
	doc, err := s.repo.FindByID(ctx, documentID)
	if err != nil {
		return nil, notFoundOr(err, "document not found", "failed to load document")
	}
	exp, err := s.loadExpediente(ctx, doc.ExpedienteID)
	if err != nil {
		return nil, err
	}
	if err := ensureEditable(exp); err != nil {
		return nil, err
	}

	reader := bufio.NewReaderSize(in.Content, sniffLen)
	head, err := reader.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read upload")
	}
	if len(head) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	mimeType := detectMIME(head)
	if _, ok := s.allowed[mimeType]; !ok {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedMediaType, fmt.Sprintf("file type %s is not allowed", mimeType))
	}

	relPath := path.Join("expedientes", doc.ExpedienteID, doc.ID, uuid.NewString()+extensionFor(in.Filename, mimeType))
	written, err := s.storage.SaveStream(relPath, reader, s.cfg.MaxFileSizeBytes)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxFileSizeBytes))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	previous := doc.FilePath
	previousState := doc.State
	uploader := actorID
	doc.FilePath = &relPath
	doc.MimeType = &mimeType
	doc.SizeBytes = &written
	doc.UploadedBy = &uploader
	doc.State = models.DocumentStatePending
	doc.ReviewedBy = nil
	doc.ReviewedAt = nil
	doc.ReviewNotes = ""
	if err := s.repo.AttachFile(ctx, doc); err != nil {
		_ = s.storage.Delete(relPath)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach file")
	}
	if previous != nil && *previous != "" && *previous != relPath {
		if err := s.storage.Delete(*previous); err != nil {
			s.logger.Warn("failed to remove replaced file", zap.String("document_id", doc.ID), zap.Error(err))
		}
	}

	s.metrics.RecordDocumentUpload(mimeType)
	s.afterMutation(ctx, auditEntry{
		actorID:    actorID,
		action:     models.AuditActionDocumentUpload,
		resource:   "documents",
		resourceID: doc.ID,
		oldValues:  map[string]interface{}{"state": previousState},
		newValues:  map[string]interface{}{"state": doc.State, "mime_type": mimeType, "size_bytes": written, "filename": in.Filename},
		meta:       meta,
	})
	view := buildDocumentView(*doc, s.clock.Today())
	return &view, nil
}

// Review moves a document through its approval workflow.
func (s *DocumentService) Review(ctx context.Context, documentID string, req dto.ReviewDocumentRequest, actorID string, meta models.RequestMeta) (*dto.DocumentView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	doc, err := s.repo.FindByID(ctx, documentID)
	if err != nil {
		return nil, notFoundOr(err, "document not found", "failed to load document")
	}
	exp, err := s.loadExpediente(ctx, doc.ExpedienteID)
	if err != nil {
		return nil, err
	}
	if err := ensureEditable(exp); err != nil {
		return nil, err
	}

	from := rules.NormalizeDocumentState(doc.State)
	if !canTransition(from, req.State) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move document from %s to %s", from, req.State))
	}
	if req.State == models.DocumentStateUnderReview && !doc.HasFile() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "upload a file before sending the document to review")
	}

	now := s.clock.now().UTC()
	reviewer := actorID
	doc.State = req.State
	doc.ReviewedBy = &reviewer
	doc.ReviewedAt = &now
	doc.ReviewNotes = strings.TrimSpace(req.Notes)
	if err := s.repo.UpdateReview(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update document review")
	}
	s.afterMutation(ctx, auditEntry{
		actorID:    actorID,
		action:     models.AuditActionDocumentReview,
		resource:   "documents",
		resourceID: doc.ID,
		oldValues:  map[string]interface{}{"state": from},
		newValues:  map[string]interface{}{"state": doc.State, "notes": doc.ReviewNotes},
		meta:       meta,
	})
	view := buildDocumentView(*doc, s.clock.Today())
	return &view, nil
}

// Delete removes a checklist entry and its file. Required entries can only
// be removed by a SUPERADMIN.
func (s *DocumentService) Delete(ctx context.Context, documentID string, actorID string, role models.UserRole, meta models.RequestMeta) error {
	doc, err := s.repo.FindByID(ctx, documentID)
	if err != nil {
		return notFoundOr(err, "document not found", "failed to load document")
	}
	if doc.Required && role != models.RoleSuperAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "required documents can only be removed by a superadmin")
	}
	exp, err := s.loadExpediente(ctx, doc.ExpedienteID)
	if err != nil {
		return err
	}
	if err := ensureEditable(exp); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, documentID); err != nil {
		return notFoundOr(err, "document not found", "failed to delete document")
	}
	if doc.HasFile() {
		if err := s.storage.Delete(*doc.FilePath); err != nil {
			s.logger.Warn("failed to remove document file", zap.String("document_id", doc.ID), zap.Error(err))
		}
	}
	s.afterMutation(ctx, auditEntry{
		actorID:    actorID,
		action:     models.AuditActionDocumentDelete,
		resource:   "documents",
		resourceID: doc.ID,
		oldValues:  map[string]interface{}{"expediente_id": doc.ExpedienteID, "name": doc.Name, "required": doc.Required},
		meta:       meta,
	})
	return nil
}

// DownloadURL issues a signed, expiring link to the stored file. urlPrefix is
// the public path the token is appended to.
func (s *DocumentService) DownloadURL(ctx context.Context, documentID, urlPrefix string) (*dto.DownloadURLResponse, error) {
	doc, err := s.repo.FindByID(ctx, documentID)
	if err != nil {
		return nil, notFoundOr(err, "document not found", "failed to load document")
	}
	if !doc.HasFile() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document has no file attached")
	}
	token, expiresAt, err := s.signer.Generate(doc.ID, *doc.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	return &dto.DownloadURLResponse{URL: strings.TrimRight(urlPrefix, "/") + "/" + token, ExpiresAt: expiresAt}, nil
}

// Download resolves a signed token to the stored file. A token issued before
// the file was replaced no longer resolves.
func (s *DocumentService) Download(ctx context.Context, token string) (*DocumentDownload, error) {
	claims, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	doc, err := s.repo.FindByID(ctx, claims.ResourceID)
	if err != nil {
		return nil, notFoundOr(err, "document not found", "failed to load document")
	}
	if !doc.HasFile() || *doc.FilePath != claims.Path {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download token no longer matches the stored file")
	}
	file, err := s.storage.Open(claims.Path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document file")
	}
	out := &DocumentDownload{File: file, Filename: downloadName(*doc, claims.Path), MimeType: "application/octet-stream"}
	if doc.MimeType != nil {
		out.MimeType = *doc.MimeType
	}
	return out, nil
}

// afterMutation audits the change and drops cached dashboards, whose
// upcoming list embeds document summaries.
func (s *DocumentService) afterMutation(ctx context.Context, entry auditEntry) {
	recordAudit(ctx, s.audit, s.logger, entry)
	invalidateDashboard(ctx, s.cache, s.logger)
}

func (s *DocumentService) loadExpediente(ctx context.Context, id string) (*models.ExpedienteDetail, error) {
	exp, err := s.expedientes.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "expediente not found", "failed to load expediente")
	}
	return exp, nil
}

func ensureEditable(exp *models.ExpedienteDetail) error {
	if exp.State == models.ExpedienteStateCompleted {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "expediente is completed; reopen it to change documents")
	}
	return nil
}

func canTransition(from, to models.DocumentState) bool {
	for _, next := range reviewTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func detectMIME(head []byte) string {
	mimeType := http.DetectContentType(head)
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

var mimeExtensions = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"application/zip": ".zip",
	"text/plain":      ".txt",
}

func extensionFor(filename, mimeType string) string {
	if ext, ok := mimeExtensions[mimeType]; ok {
		return ext
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 8 || strings.ContainsAny(ext, `/\`) {
		return ""
	}
	return ext
}

func downloadName(doc models.Document, relPath string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', ':':
			return '_'
		}
		return r
	}, strings.TrimSpace(doc.Name))
	if name == "" {
		name = doc.ID
	}
	return name + path.Ext(relPath)
}

func buildDocumentView(doc models.Document, today time.Time) dto.DocumentView {
	view := dto.DocumentView{
		Document: doc,
		HasFile:  doc.HasFile(),
		Badge:    rules.DocumentBadge(doc.State),
		Expired:  rules.IsExpired(doc, today),
	}
	if doc.ExpiresAt != nil {
		days := rules.DaysRemaining(*doc.ExpiresAt, today)
		view.DaysToExpiry = &days
	}
	return view
}
