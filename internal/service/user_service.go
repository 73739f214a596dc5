package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/estudio-sgt/sgt-api/internal/models"
	appErrors "github.com/estudio-sgt/sgt-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	SetStatus(ctx context.Context, id string, status models.UserStatus) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateUserRequest represents payload for creating users.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	FullName string          `json:"full_name" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required,oneof=SUPERADMIN ADMIN GESTOR CONSULTA"`
	Password string          `json:"password" validate:"required,min=8"`
}

// UpdateUserRequest payload for updating users.
type UpdateUserRequest struct {
	Email    string          `json:"email" validate:"omitempty,email"`
	FullName string          `json:"full_name" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required,oneof=SUPERADMIN ADMIN GESTOR CONSULTA"`
}

// SetUserStatusRequest moves an account between activo, inactivo and suspendido.
type SetUserStatusRequest struct {
	Status models.UserStatus `json:"status" validate:"required,oneof=activo inactivo suspendido"`
	Reason string            `json:"reason" validate:"max=500"`
}

// UserService handles user management workflows.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown user status")
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, newPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "user not found", "failed to load user")
	}
	return user, nil
}

// Create adds a new active user.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest, actorID string, meta models.RequestMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
		Status:       models.UserStatusActive,
		PasswordHash: string(passwordHash),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	recordAudit(ctx, s.repo, s.logger, auditEntry{
		actorID:    actorID,
		action:     models.AuditActionUserCreate,
		resource:   "users",
		resourceID: user.ID,
		newValues:  map[string]interface{}{"email": user.Email, "role": user.Role},
		meta:       meta,
	})
	return user, nil
}

// Update modifies the user profile and role.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest, actorID string, meta models.RequestMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "user not found", "failed to load user")
	}
	old := map[string]interface{}{"email": user.Email, "full_name": user.FullName, "role": user.Role}

	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" && email != user.Email {
		if err := s.ensureEmailFree(ctx, email, user.ID); err != nil {
			return nil, err
		}
		user.Email = email
	}
	user.FullName = strings.TrimSpace(req.FullName)
	user.Role = req.Role

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}

	recordAudit(ctx, s.repo, s.logger, auditEntry{
		actorID:    actorID,
		action:     models.AuditActionUserUpdate,
		resource:   "users",
		resourceID: user.ID,
		oldValues:  old,
		newValues:  map[string]interface{}{"email": user.Email, "full_name": user.FullName, "role": user.Role},
		meta:       meta,
	})
	return user, nil
}

// SetStatus activates, deactivates or suspends an account. Leaving the
// active state revokes every open session of the user.
func (s *UserService) SetStatus(ctx context.Context, id string, req SetUserStatusRequest, actorID string, meta models.RequestMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if id == actorID && req.Status != models.UserStatusActive {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot change the status of your own account")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "user not found", "failed to load user")
	}
	if user.Status == req.Status {
		return user, nil
	}

	previous := user.Status
	if err := s.repo.SetStatus(ctx, id, req.Status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user status")
	}
	user.Status = req.Status

	if req.Status != models.UserStatusActive {
		if err := s.repo.RevokeUserRefreshTokens(ctx, id); err != nil {
			s.logger.Warn("failed to revoke sessions after status change", zap.String("user_id", id), zap.Error(err))
		}
	}

	recordAudit(ctx, s.repo, s.logger, auditEntry{
		actorID:    actorID,
		action:     models.AuditActionUserStatus,
		resource:   "users",
		resourceID: id,
		oldValues:  map[string]interface{}{"status": previous},
		newValues:  map[string]interface{}{"status": req.Status, "reason": req.Reason},
		meta:       meta,
	})
	return user, nil
}

// Delete performs a soft delete by marking the user inactivo.
func (s *UserService) Delete(ctx context.Context, id string, actorID string, meta models.RequestMeta) error {
	_, err := s.SetStatus(ctx, id, SetUserStatusRequest{Status: models.UserStatusInactive}, actorID, meta)
	return err
}

func (s *UserService) ensureEmailFree(ctx context.Context, email, excludeID string) error {
	existing, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		if existing.ID == excludeID {
			return nil
		}
		return appErrors.Clone(appErrors.ErrConflict, "email already exists")
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
}
