package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/estudio-sgt/sgt-api/internal/models"
)

const tramiteTypeColumns = `id, code, name, agency, description, sla_days, validity_months, steps, required_documents, active, created_at, updated_at`

// TramiteTypeRepository persists the procedure catalog.
type TramiteTypeRepository struct {
	db *sqlx.DB
}

// NewTramiteTypeRepository constructs the repository.
func NewTramiteTypeRepository(db *sqlx.DB) *TramiteTypeRepository {
	return &TramiteTypeRepository{db: db}
}

// List returns catalog entries ordered by agency then name.
func (r *TramiteTypeRepository) List(ctx context.Context, filter models.TramiteTypeFilter) ([]models.TramiteType, int, error) {
	var b conditionBuilder
	if filter.Agency != nil {
		b.add("agency = ?", *filter.Agency)
	}
	if filter.Active != nil {
		b.add("active = ?", *filter.Active)
	}
	if filter.Search != "" {
		b.add("(LOWER(name) LIKE ? OR LOWER(code) LIKE ?)", "%"+strings.ToLower(filter.Search)+"%")
	}
	baseQuery := b.where(`FROM tramite_types WHERE 1=1`)
	limit, offset := paginate(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s %s ORDER BY agency ASC, name ASC LIMIT %d OFFSET %d", tramiteTypeColumns, baseQuery, limit, offset)
	var items []models.TramiteType
	if err := r.db.SelectContext(ctx, &items, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list tramite types: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, b.args...); err != nil {
		return nil, 0, fmt.Errorf("count tramite types: %w", err)
	}
	return items, total, nil
}

// FindByID returns a catalog entry by identifier.
func (r *TramiteTypeRepository) FindByID(ctx context.Context, id string) (*models.TramiteType, error) {
	query := `SELECT ` + tramiteTypeColumns + ` FROM tramite_types WHERE id = $1`
	var item models.TramiteType
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get tramite type: %w", err)
	}
	return &item, nil
}

// ExistsByCode reports whether another entry uses code.
func (r *TramiteTypeRepository) ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM tramite_types WHERE UPPER(code) = UPPER($1)`
	args := []interface{}{code}
	if excludeID != "" {
		query += ` AND id <> $2`
		args = append(args, excludeID)
	}
	query += `)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("check tramite type code: %w", err)
	}
	return exists, nil
}

// Create inserts a catalog entry.
func (r *TramiteTypeRepository) Create(ctx context.Context, item *models.TramiteType) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	const query = `INSERT INTO tramite_types (id, code, name, agency, description, sla_days, validity_months, steps, required_documents, active, created_at, updated_at)
VALUES (:id, :code, :name, :agency, :description, :sla_days, :validity_months, :steps, :required_documents, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create tramite type: %w", err)
	}
	return nil
}

// Update modifies a catalog entry. Existing expedientes keep their total_steps.
func (r *TramiteTypeRepository) Update(ctx context.Context, item *models.TramiteType) error {
	item.UpdatedAt = time.Now().UTC()
	const query = `UPDATE tramite_types SET code = :code, name = :name, agency = :agency, description = :description,
sla_days = :sla_days, validity_months = :validity_months, steps = :steps, required_documents = :required_documents,
active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("update tramite type: %w", err)
	}
	return nil
}
