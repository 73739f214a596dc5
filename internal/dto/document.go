package dto

import (
	"time"

	"github.com/estudio-sgt/sgt-api/internal/models"
	"github.com/estudio-sgt/sgt-api/internal/rules"
)

// DocumentView is a checklist entry with its badge and expiry evaluation.
type DocumentView struct {
	models.Document
	HasFile      bool        `json:"has_file"`
	Badge        rules.Badge `json:"badge"`
	Expired      bool        `json:"expired"`
	DaysToExpiry *int        `json:"days_to_expiry,omitempty"`
}

// DocumentListResponse lists a checklist together with its summary.
type DocumentListResponse struct {
	Items   []DocumentView        `json:"items"`
	Summary rules.DocumentSummary `json:"summary"`
}

// CreateDocumentRequest adds a checklist entry.
type CreateDocumentRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	DocType   string `json:"doc_type" validate:"max=80"`
	Required  bool   `json:"required"`
	ExpiresAt string `json:"expires_at" validate:"omitempty,datetime=2006-01-02"`
}

// ReviewDocumentRequest moves a document to a new approval state.
type ReviewDocumentRequest struct {
	State models.DocumentState `json:"state" validate:"required,oneof=pendiente en_revision aprobado rechazado"`
	Notes string               `json:"notes" validate:"max=1000"`
}

// DownloadURLResponse carries a signed, expiring download link.
type DownloadURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
