package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/estudio-sgt/sgt-api/internal/models"
	"github.com/estudio-sgt/sgt-api/internal/rules"
	"github.com/estudio-sgt/sgt-api/pkg/export"
	"github.com/estudio-sgt/sgt-api/pkg/storage"
	"github.com/estudio-sgt/sgt-api/pkg/validation"
)

// exportPageSize matches the repository's maximum page size.
const (
	exportPageSize    = 100
	generatedAtLayout = "2006-01-02 15:04"
)

type reportSource interface {
	List(ctx context.Context, filter models.ExpedienteFilter) ([]models.ExpedienteDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.ExpedienteDetail, error)
	Upcoming(ctx context.Context, today time.Time, horizonDays, limit int) ([]models.ExpedienteDetail, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix         string
	ResultTTL         time.Duration
	DefaultWithinDays int
	MaxRows           int
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	Rows         int
	ExpiresAt    time.Time
}

// ExportServiceParams groups constructor dependencies.
type ExportServiceParams struct {
	Source    reportSource
	Documents checklistReader
	Storage   fileStorage
	Signer    *storage.SignedURLSigner
	CSV       datasetRenderer
	PDF       datasetRenderer
	Logger    *zap.Logger
	Clock     Clock
	Location  *time.Location
	Config    ExportConfig
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	source    reportSource
	documents checklistReader
	storage   fileStorage
	csv       datasetRenderer
	pdf       datasetRenderer
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
	clock     dayClock
	cfg       ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(params ExportServiceParams) *ExportService {
	cfg := params.Config
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.DefaultWithinDays <= 0 {
		cfg.DefaultWithinDays = 30
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 5000
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	csv := params.CSV
	if csv == nil {
		csv = export.NewCSVExporter(';')
	}
	pdf := params.PDF
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		source:    params.Source,
		documents: params.Documents,
		storage:   params.Storage,
		csv:       csv,
		pdf:       pdf,
		signer:    params.Signer,
		logger:    logger,
		clock:     newDayClock(params.Clock, params.Location),
		cfg:       cfg,
	}
}

// Generate builds dataset according to job definition and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	today := s.clock.Today()
	dataset, err := s.buildDataset(ctx, job, today)
	if err != nil {
		return nil, err
	}
	dataset.GeneratedAt = s.clock.now().In(s.clock.loc).Format(generatedAtLayout)

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/reports/download/%s", prefix, token),
		Format:       job.Params.Format,
		Rows:         len(dataset.Rows),
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (storage.SignedClaims, error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := s.clock.now().UTC().Format("20060102_150405")
	scope := job.Params.State
	if job.Params.ExpedienteID != "" {
		scope = job.Params.ExpedienteID
	}
	return fmt.Sprintf("%s_%s_%s_%s.%s", string(job.Type), sanitizeFilename(scope), timestamp, shortID(job.ID), job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "todos"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob, today time.Time) (export.Dataset, error) {
	switch job.Type {
	case models.ReportTypeExpedientes:
		return s.buildExpedientesDataset(ctx, job.Params, today)
	case models.ReportTypeDeadlines:
		return s.buildDeadlinesDataset(ctx, job.Params, today)
	case models.ReportTypeDocuments:
		return s.buildDocumentsDataset(ctx, job.Params, today)
	default:
		return export.Dataset{}, fmt.Errorf("unsupported report type %s", job.Type)
	}
}

var expedienteHeaders = []string{"Código", "Cliente", "CUIT", "Trámite", "Organismo", "Estado", "Prioridad", "Inicio", "Vencimiento", "Días restantes", "Semáforo", "Avance (%)", "Documentación (%)"}

func (s *ExportService) buildExpedientesDataset(ctx context.Context, params models.ReportJobParams, today time.Time) (export.Dataset, error) {
	filter := models.ExpedienteFilter{
		ClientID: params.ClientID,
		Urgency:  params.Urgency,
		Today:    today,
	}
	if params.State != "" {
		state := models.ExpedienteState(params.State)
		filter.State = &state
	}
	if params.Agency != "" {
		agency := models.Agency(params.Agency)
		filter.Agency = &agency
	}
	items, err := s.collect(ctx, filter)
	if err != nil {
		return export.Dataset{}, err
	}
	rows, err := s.expedienteRows(ctx, items, today)
	if err != nil {
		return export.Dataset{}, err
	}
	return export.Dataset{
		Title:   "Reporte de expedientes",
		Headers: expedienteHeaders,
		Rows:    rows,
	}, nil
}

// buildDeadlinesDataset lists overdue cases followed by those due within the
// requested number of days.
func (s *ExportService) buildDeadlinesDataset(ctx context.Context, params models.ReportJobParams, today time.Time) (export.Dataset, error) {
	within := params.WithinDays
	if within <= 0 {
		within = s.cfg.DefaultWithinDays
	}
	overdue, err := s.collect(ctx, models.ExpedienteFilter{Urgency: string(rules.UrgencyOverdue), Today: today, ClientID: params.ClientID, SortBy: "deadline", SortOrder: "asc"})
	if err != nil {
		return export.Dataset{}, err
	}
	upcoming, err := s.source.Upcoming(ctx, today, within, s.cfg.MaxRows)
	if err != nil {
		return export.Dataset{}, err
	}
	items := make([]models.ExpedienteDetail, 0, len(overdue)+len(upcoming))
	items = append(items, overdue...)
	for _, item := range upcoming {
		if params.ClientID == "" || item.ClientID == params.ClientID {
			items = append(items, item)
		}
	}
	rows, err := s.expedienteRows(ctx, items, today)
	if err != nil {
		return export.Dataset{}, err
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Vencimientos al %s (próximos %d días)", today.Format("02/01/2006"), within),
		Headers: expedienteHeaders,
		Rows:    rows,
	}, nil
}

func (s *ExportService) buildDocumentsDataset(ctx context.Context, params models.ReportJobParams, today time.Time) (export.Dataset, error) {
	if params.ExpedienteID == "" {
		return export.Dataset{}, fmt.Errorf("documents report requires an expediente")
	}
	exp, err := s.source.FindByID(ctx, params.ExpedienteID)
	if err != nil {
		return export.Dataset{}, err
	}
	docs, err := s.documents.ListByExpediente(ctx, exp.ID)
	if err != nil {
		return export.Dataset{}, err
	}
	rows := make([]map[string]string, 0, len(docs)+1)
	for _, doc := range docs {
		expiry := ""
		if doc.ExpiresAt != nil {
			expiry = doc.ExpiresAt.Format("02/01/2006")
		}
		rows = append(rows, map[string]string{
			"Documento":   doc.Name,
			"Tipo":        doc.DocType,
			"Obligatorio": yesNo(doc.Required),
			"Estado":      string(rules.NormalizeDocumentState(doc.State)),
			"Archivo":     yesNo(doc.HasFile()),
			"Vence":       expiry,
			"Vencido":     yesNo(rules.IsExpired(doc, today)),
			"Observación": doc.ReviewNotes,
		})
	}
	summary := rules.SummarizeDocuments(docs, today)
	rows = append(rows, map[string]string{
		"Documento":   "TOTAL",
		"Obligatorio": fmt.Sprintf("%d/%d aprobados", summary.ApprovedRequired, summary.Required),
		"Estado":      fmt.Sprintf("%d%%", summary.CompletionPercent),
		"Vencido":     strconv.Itoa(summary.Expired),
	})
	return export.Dataset{
		Title:   fmt.Sprintf("Documentación %s - %s", exp.Code, exp.ClientName),
		Headers: []string{"Documento", "Tipo", "Obligatorio", "Estado", "Archivo", "Vence", "Vencido", "Observación"},
		Rows:    rows,
	}, nil
}

// collect pages through the expediente listing up to MaxRows.
func (s *ExportService) collect(ctx context.Context, filter models.ExpedienteFilter) ([]models.ExpedienteDetail, error) {
	filter.PageSize = exportPageSize
	var out []models.ExpedienteDetail
	for page := 1; ; page++ {
		filter.Page = page
		items, total, err := s.source.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		if len(items) < exportPageSize || len(out) >= total || len(out) >= s.cfg.MaxRows {
			break
		}
	}
	if len(out) > s.cfg.MaxRows {
		s.logger.Warn("report truncated", zap.Int("max_rows", s.cfg.MaxRows))
		out = out[:s.cfg.MaxRows]
	}
	return out, nil
}

func (s *ExportService) expedienteRows(ctx context.Context, items []models.ExpedienteDetail, today time.Time) ([]map[string]string, error) {
	rows := make([]map[string]string, 0, len(items))
	if len(items) == 0 {
		return rows, nil
	}
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	docs, err := s.documents.ListByExpedientes(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		view := buildExpedienteView(item, docs[item.ID], today)
		rows = append(rows, map[string]string{
			"Código":            item.Code,
			"Cliente":           item.ClientName,
			"CUIT":              validation.FormatCUIT(item.ClientCUIT),
			"Trámite":           item.TramiteTypeName,
			"Organismo":         string(item.Agency),
			"Estado":            string(item.State),
			"Prioridad":         string(item.Priority),
			"Inicio":            item.StartDate.Format("02/01/2006"),
			"Vencimiento":       item.Deadline.Format("02/01/2006"),
			"Días restantes":    strconv.Itoa(view.DeadlineStatus.DaysRemaining),
			"Semáforo":          view.DeadlineStatus.Color,
			"Avance (%)":        strconv.Itoa(view.Progress.Percent),
			"Documentación (%)": strconv.Itoa(view.Documents.CompletionPercent),
		})
	}
	return rows, nil
}

func yesNo(v bool) string {
	if v {
		return "sí"
	}
	return "no"
}
