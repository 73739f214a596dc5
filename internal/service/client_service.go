package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/estudio-sgt/sgt-api/internal/models"
	"github.com/estudio-sgt/sgt-api/internal/repository"
	appErrors "github.com/estudio-sgt/sgt-api/pkg/errors"
	"github.com/estudio-sgt/sgt-api/pkg/validation"
)

type clientRepository interface {
	List(ctx context.Context, filter models.ClientFilter) ([]models.Client, int, error)
	FindByID(ctx context.Context, id string) (*models.Client, error)
	ExistsByCUIT(ctx context.Context, cuit string, excludeID string) (bool, error)
	Create(ctx context.Context, client *models.Client) error
	Update(ctx context.Context, client *models.Client) error
}

// ClientRequest is the payload for creating or replacing a client.
type ClientRequest struct {
	BusinessName string `json:"business_name" validate:"required,max=200"`
	CUIT         string `json:"cuit" validate:"required,cuit"`
	Email        string `json:"email" validate:"omitempty,email"`
	Phone        string `json:"phone" validate:"max=50"`
	Address      string `json:"address" validate:"max=300"`
	ContactName  string `json:"contact_name" validate:"max=200"`
	Active       *bool  `json:"active"`
}

// ClientService manages the client registry.
type ClientService struct {
	repo      clientRepository
	audit     auditLogWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClientService constructs a ClientService.
func NewClientService(repo clientRepository, audit auditLogWriter, validate *validator.Validate, logger *zap.Logger) *ClientService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// List returns clients matching the filter.
func (s *ClientService) List(ctx context.Context, filter models.ClientFilter) ([]models.Client, *models.Pagination, error) {
	if cuit := validation.NormalizeCUIT(filter.Search); isDigits(cuit) {
		filter.Search = cuit
	}
	clients, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list clients")
	}
	return clients, newPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a client by id.
func (s *ClientService) Get(ctx context.Context, id string) (*models.Client, error) {
	client, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "client not found", "failed to load client")
	}
	return client, nil
}

// Create registers a client. The CUIT is stored as 11 bare digits.
func (s *ClientService) Create(ctx context.Context, req ClientRequest, actorID string, meta models.RequestMeta) (*models.Client, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid client payload")
	}
	client := &models.Client{Active: true}
	applyClientRequest(client, req)
	if err := s.ensureCUITFree(ctx, client.CUIT, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, client); err != nil {
		return nil, clientWriteError(err, "failed to create client")
	}
	recordAudit(ctx, s.audit, s.logger, auditEntry{
		actorID:    actorID,
		action:     models.AuditActionClientCreate,
		resource:   "clients",
		resourceID: client.ID,
		newValues:  client,
		meta:       meta,
	})
	return client, nil
}

// Update replaces the client's attributes.
func (s *ClientService) Update(ctx context.Context, id string, req ClientRequest, actorID string, meta models.RequestMeta) (*models.Client, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid client payload")
	}
	client, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "client not found", "failed to load client")
	}
	before := *client
	applyClientRequest(client, req)
	if client.CUIT != before.CUIT {
		if err := s.ensureCUITFree(ctx, client.CUIT, client.ID); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Update(ctx, client); err != nil {
		return nil, clientWriteError(err, "failed to update client")
	}
	recordAudit(ctx, s.audit, s.logger, auditEntry{
		actorID:    actorID,
		action:     models.AuditActionClientUpdate,
		resource:   "clients",
		resourceID: client.ID,
		oldValues:  before,
		newValues:  client,
		meta:       meta,
	})
	return client, nil
}

// Deactivate hides the client from active listings. Existing expedientes
// are untouched.
func (s *ClientService) Deactivate(ctx context.Context, id string, actorID string, meta models.RequestMeta) error {
	client, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return notFoundOr(err, "client not found", "failed to load client")
	}
	if !client.Active {
		return nil
	}
	client.Active = false
	if err := s.repo.Update(ctx, client); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate client")
	}
	recordAudit(ctx, s.audit, s.logger, auditEntry{
		actorID:    actorID,
		action:     models.AuditActionClientUpdate,
		resource:   "clients",
		resourceID: client.ID,
		oldValues:  map[string]bool{"active": true},
		newValues:  map[string]bool{"active": false},
		meta:       meta,
	})
	return nil
}

func (s *ClientService) ensureCUITFree(ctx context.Context, cuit, excludeID string) error {
	exists, err := s.repo.ExistsByCUIT(ctx, cuit, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check cuit uniqueness")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "a client with this CUIT already exists")
	}
	return nil
}

func applyClientRequest(client *models.Client, req ClientRequest) {
	client.BusinessName = strings.TrimSpace(req.BusinessName)
	client.CUIT = validation.NormalizeCUIT(req.CUIT)
	client.Email = strings.ToLower(strings.TrimSpace(req.Email))
	client.Phone = strings.TrimSpace(req.Phone)
	client.Address = strings.TrimSpace(req.Address)
	client.ContactName = strings.TrimSpace(req.ContactName)
	if req.Active != nil {
		client.Active = *req.Active
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func clientWriteError(err error, msg string) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return appErrors.Clone(appErrors.ErrConflict, "a client with this CUIT already exists")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, msg)
}
