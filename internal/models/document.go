package models

import "time"

// DocumentState is the canonical approval state of a checklist document.
type DocumentState string

const (
	DocumentStatePending     DocumentState = "pendiente"
	DocumentStateUnderReview DocumentState = "en_revision"
	DocumentStateApproved    DocumentState = "aprobado"
	DocumentStateRejected    DocumentState = "rechazado"
)

// Valid reports whether the state belongs to the canonical enumeration.
func (s DocumentState) Valid() bool {
	switch s {
	case DocumentStatePending, DocumentStateUnderReview, DocumentStateApproved, DocumentStateRejected:
		return true
	}
	return false
}

// Document is an entry of an expediente's document checklist.
type Document struct {
	ID           string        `db:"id" json:"id"`
	ExpedienteID string        `db:"expediente_id" json:"expediente_id"`
	Name         string        `db:"name" json:"name"`
	DocType      string        `db:"doc_type" json:"doc_type"`
	Required     bool          `db:"required" json:"required"`
	State        DocumentState `db:"state" json:"state"`
	ExpiresAt    *time.Time    `db:"expires_at" json:"expires_at,omitempty"`
	FilePath     *string       `db:"file_path" json:"-"`
	MimeType     *string       `db:"mime_type" json:"mime_type,omitempty"`
	SizeBytes    *int64        `db:"size_bytes" json:"size_bytes,omitempty"`
	ReviewedBy   *string       `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt   *time.Time    `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewNotes  string        `db:"review_notes" json:"review_notes"`
	UploadedBy   *string       `db:"uploaded_by" json:"uploaded_by,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// HasFile reports whether a file has been attached to the entry.
func (d Document) HasFile() bool {
	return d.FilePath != nil && *d.FilePath != ""
}
