package dto

import "github.com/estudio-sgt/sgt-api/internal/models"

// ReportRequest captures POST /reports payload.
type ReportRequest struct {
	Type         models.ReportType   `json:"type" validate:"required,oneof=expedientes vencimientos documentos"`
	Format       models.ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
	State        string              `json:"state" validate:"omitempty,oneof=iniciado en_proceso en_observacion completado vencido"`
	Agency       string              `json:"agency" validate:"omitempty,oneof=ANMAT SENASA ENACOM INAL INV SEDRONAR OTRO"`
	ClientID     string              `json:"client_id"`
	Urgency      string              `json:"urgency" validate:"omitempty,oneof=on_track warning overdue"`
	ExpedienteID string              `json:"expediente_id"`
	WithinDays   int                 `json:"within_days" validate:"min=0,max=365"`
}

// ReportJobResponse is returned after enqueueing a report.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress metadata.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Type      models.ReportType   `json:"type"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
