package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/estudio-sgt/sgt-api/internal/models"
)

const documentColumns = `id, expediente_id, name, doc_type, required, state, expires_at, file_path, mime_type, size_bytes,
reviewed_by, reviewed_at, review_notes, uploaded_by, created_at, updated_at`

const insertDocumentQuery = `INSERT INTO documents (id, expediente_id, name, doc_type, required, state, expires_at, file_path, mime_type,
size_bytes, reviewed_by, reviewed_at, review_notes, uploaded_by, created_at, updated_at)
VALUES (:id, :expediente_id, :name, :doc_type, :required, :state, :expires_at, :file_path, :mime_type,
:size_bytes, :reviewed_by, :reviewed_at, :review_notes, :uploaded_by, :created_at, :updated_at)`

// DocumentRepository persists checklist documents.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// ListByExpediente returns the checklist of one expediente, required first.
func (r *DocumentRepository) ListByExpediente(ctx context.Context, expedienteID string) ([]models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE expediente_id = $1 ORDER BY required DESC, name ASC`
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, expedienteID); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// ListByExpedientes returns checklists for several expedientes keyed by
// expediente id.
func (r *DocumentRepository) ListByExpedientes(ctx context.Context, expedienteIDs []string) (map[string][]models.Document, error) {
	result := make(map[string][]models.Document, len(expedienteIDs))
	if len(expedienteIDs) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(`SELECT `+documentColumns+` FROM documents WHERE expediente_id IN (?) ORDER BY expediente_id, required DESC, name ASC`, expedienteIDs)
	if err != nil {
		return nil, fmt.Errorf("build documents query: %w", err)
	}
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list documents for expedientes: %w", err)
	}
	for _, doc := range docs {
		result[doc.ExpedienteID] = append(result[doc.ExpedienteID], doc)
	}
	return result, nil
}

// FindByID returns a document by identifier.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

// Create inserts a checklist entry.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.State == "" {
		doc.State = models.DocumentStatePending
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if _, err := r.db.NamedExecContext(ctx, insertDocumentQuery, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// AttachFile records an uploaded file and resets the review fields.
func (r *DocumentRepository) AttachFile(ctx context.Context, doc *models.Document) error {
	doc.UpdatedAt = time.Now().UTC()
	const query = `UPDATE documents SET file_path = :file_path, mime_type = :mime_type, size_bytes = :size_bytes,
uploaded_by = :uploaded_by, state = :state, expires_at = :expires_at, reviewed_by = NULL, reviewed_at = NULL,
review_notes = '', updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("attach document file: %w", err)
	}
	return nil
}

// UpdateReview persists a review transition.
func (r *DocumentRepository) UpdateReview(ctx context.Context, doc *models.Document) error {
	doc.UpdatedAt = time.Now().UTC()
	const query = `UPDATE documents SET state = :state, reviewed_by = :reviewed_by, reviewed_at = :reviewed_at,
review_notes = :review_notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("update document review: %w", err)
	}
	return nil
}

// Delete removes a checklist entry.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
