package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/estudio-sgt/sgt-api/internal/models"
	appErrors "github.com/estudio-sgt/sgt-api/pkg/errors"
	"github.com/estudio-sgt/sgt-api/pkg/validation"
)

type tramiteTypeRepository interface {
	List(ctx context.Context, filter models.TramiteTypeFilter) ([]models.TramiteType, int, error)
	FindByID(ctx context.Context, id string) (*models.TramiteType, error)
	ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error)
	Create(ctx context.Context, item *models.TramiteType) error
	Update(ctx context.Context, item *models.TramiteType) error
}

// TramiteTypeRequest is the payload for catalog entries.
type TramiteTypeRequest struct {
	Code              string        `json:"code" validate:"required,max=20,alphanum"`
	Name              string        `json:"name" validate:"required,max=200"`
	Agency            models.Agency `json:"agency" validate:"required,oneof=ANMAT SENASA ENACOM INAL INV SEDRONAR OTRO"`
	Description       string        `json:"description"`
	SLADays           int           `json:"sla_days" validate:"required,min=1,max=3650"`
	ValidityMonths    int           `json:"validity_months" validate:"min=0,max=600"`
	Steps             []string      `json:"steps"`
	RequiredDocuments []string      `json:"required_documents"`
	Active            *bool         `json:"active"`
}

// TramiteTypeService manages the procedure catalog.
type TramiteTypeService struct {
	repo      tramiteTypeRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTramiteTypeService constructs a TramiteTypeService.
func NewTramiteTypeService(repo tramiteTypeRepository, validate *validator.Validate, logger *zap.Logger) *TramiteTypeService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TramiteTypeService{repo: repo, validator: validate, logger: logger}
}

// List returns catalog entries.
func (s *TramiteTypeService) List(ctx context.Context, filter models.TramiteTypeFilter) ([]models.TramiteType, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tramite types")
	}
	return items, newPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a catalog entry.
func (s *TramiteTypeService) Get(ctx context.Context, id string) (*models.TramiteType, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "tramite type not found", "failed to load tramite type")
	}
	return item, nil
}

// Create adds a catalog entry. Codes are stored upper case and unique.
func (s *TramiteTypeService) Create(ctx context.Context, req TramiteTypeRequest) (*models.TramiteType, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid tramite type payload")
	}
	item := &models.TramiteType{Active: true}
	applyTramiteTypeRequest(item, req)
	if err := s.ensureCodeFree(ctx, item.Code, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create tramite type")
	}
	s.logger.Info("tramite type created", zap.String("code", item.Code), zap.String("agency", string(item.Agency)))
	return item, nil
}

// Update replaces a catalog entry. Running expedientes keep the step count
// they were opened with.
func (s *TramiteTypeService) Update(ctx context.Context, id string, req TramiteTypeRequest) (*models.TramiteType, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid tramite type payload")
	}
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "tramite type not found", "failed to load tramite type")
	}
	previousCode := item.Code
	applyTramiteTypeRequest(item, req)
	if item.Code != previousCode {
		if err := s.ensureCodeFree(ctx, item.Code, item.ID); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update tramite type")
	}
	return item, nil
}

func (s *TramiteTypeService) ensureCodeFree(ctx context.Context, code, excludeID string) error {
	exists, err := s.repo.ExistsByCode(ctx, code, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check tramite type code")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "tramite type code already exists")
	}
	return nil
}

func applyTramiteTypeRequest(item *models.TramiteType, req TramiteTypeRequest) {
	item.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	item.Name = strings.TrimSpace(req.Name)
	item.Agency = req.Agency
	item.Description = strings.TrimSpace(req.Description)
	item.SLADays = req.SLADays
	item.ValidityMonths = req.ValidityMonths
	item.Steps = trimList(req.Steps)
	item.RequiredDocuments = trimList(req.RequiredDocuments)
	if req.Active != nil {
		item.Active = *req.Active
	}
}

func trimList(values []string) models.StringList {
	out := make(models.StringList, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
