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

const clientColumns = `id, business_name, cuit, email, phone, address, contact_name, active, created_at, updated_at`

// ClientRepository handles persistence for clients.
type ClientRepository struct {
	db *sqlx.DB
}

// NewClientRepository constructs a new ClientRepository.
func NewClientRepository(db *sqlx.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// List returns clients with filtering and pagination.
func (r *ClientRepository) List(ctx context.Context, filter models.ClientFilter) ([]models.Client, int, error) {
	var b conditionBuilder
	if filter.Search != "" {
		b.add("(LOWER(business_name) LIKE ? OR cuit LIKE ?)", "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Active != nil {
		b.add("active = ?", *filter.Active)
	}
	baseQuery := b.where(`FROM clients WHERE 1=1`)

	order := orderBy(filter.SortBy, filter.SortOrder, map[string]string{
		"business_name": "business_name",
		"cuit":          "cuit",
		"created_at":    "created_at",
	}, "business_name")
	if filter.SortBy == "" && filter.SortOrder == "" {
		order = "business_name ASC"
	}
	limit, offset := paginate(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s LIMIT %d OFFSET %d", clientColumns, baseQuery, order, limit, offset)
	var clients []models.Client
	if err := r.db.SelectContext(ctx, &clients, query, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list clients: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, b.args...); err != nil {
		return nil, 0, fmt.Errorf("count clients: %w", err)
	}
	return clients, total, nil
}

// FindByID returns a client by its identifier.
func (r *ClientRepository) FindByID(ctx context.Context, id string) (*models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`
	var client models.Client
	if err := r.db.GetContext(ctx, &client, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return &client, nil
}

// ExistsByCUIT reports whether another client already uses the CUIT.
func (r *ClientRepository) ExistsByCUIT(ctx context.Context, cuit string, excludeID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM clients WHERE cuit = $1`
	args := []interface{}{cuit}
	if excludeID != "" {
		query += ` AND id <> $2`
		args = append(args, excludeID)
	}
	query += `)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("check client cuit: %w", err)
	}
	return exists, nil
}

// Create inserts a new client.
func (r *ClientRepository) Create(ctx context.Context, client *models.Client) error {
	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	client.CreatedAt = now
	client.UpdatedAt = now

	const query = `INSERT INTO clients (id, business_name, cuit, email, phone, address, contact_name, active, created_at, updated_at)
VALUES (:id, :business_name, :cuit, :email, :phone, :address, :contact_name, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, client); err != nil {
		return translateWriteError("create client", err)
	}
	return nil
}

// Update modifies an existing client.
func (r *ClientRepository) Update(ctx context.Context, client *models.Client) error {
	client.UpdatedAt = time.Now().UTC()
	const query = `UPDATE clients SET business_name = :business_name, cuit = :cuit, email = :email, phone = :phone,
address = :address, contact_name = :contact_name, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, client); err != nil {
		return translateWriteError("update client", err)
	}
	return nil
}
