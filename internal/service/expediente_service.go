package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/estudio-sgt/sgt-api/internal/dto"
	"github.com/estudio-sgt/sgt-api/internal/models"
	"github.com/estudio-sgt/sgt-api/internal/rules"
	appErrors "github.com/estudio-sgt/sgt-api/pkg/errors"
	"github.com/estudio-sgt/sgt-api/pkg/validation"
)

type expedienteRepository interface {
	List(ctx context.Context, filter models.ExpedienteFilter) ([]models.ExpedienteDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.ExpedienteDetail, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, exp *models.Expediente, docs []models.Document) error
	Update(ctx context.Context, exp *models.Expediente) error
	UpdateProgress(ctx context.Context, exp *models.Expediente) error
	MarkOverdue(ctx context.Context, today time.Time) ([]string, error)
}

type checklistReader interface {
	ListByExpediente(ctx context.Context, expedienteID string) ([]models.Document, error)
	ListByExpedientes(ctx context.Context, expedienteIDs []string) (map[string][]models.Document, error)
}

type clientFinder interface {
	FindByID(ctx context.Context, id string) (*models.Client, error)
}

type tramiteTypeFinder interface {
	FindByID(ctx context.Context, id string) (*models.TramiteType, error)
}

type assigneeFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

const codeAttempts = 5

// ExpedienteServiceParams groups constructor dependencies.
type ExpedienteServiceParams struct {
	Repo      expedienteRepository
	Documents checklistReader
	Clients   clientFinder
	Types     tramiteTypeFinder
	Users     assigneeFinder
	Audit     auditLogWriter
	Cache     cacheInvalidator
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
	Clock     Clock
	Location  *time.Location
}

// ExpedienteService runs the case lifecycle.
type ExpedienteService struct {
	repo      expedienteRepository
	documents checklistReader
	clients   clientFinder
	types     tramiteTypeFinder
	users     assigneeFinder
	audit     auditLogWriter
	cache     cacheInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	clock     dayClock
}

// NewExpedienteService constructs the service.
func NewExpedienteService(params ExpedienteServiceParams) *ExpedienteService {
	validate := params.Validator
	if validate == nil {
		validate = validation.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpedienteService{
		repo:      params.Repo,
		documents: params.Documents,
		clients:   params.Clients,
		types:     params.Types,
		users:     params.Users,
		audit:     params.Audit,
		cache:     params.Cache,
		metrics:   params.Metrics,
		validator: validate,
		logger:    logger,
		clock:     newDayClock(params.Clock, params.Location),
	}
}

// List returns case views matching the filter.
func (s *ExpedienteService) List(ctx context.Context, filter models.ExpedienteFilter) ([]dto.ExpedienteView, *models.Pagination, error) {
	if filter.State != nil && !filter.State.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown expediente state")
	}
	if filter.Priority != nil && !filter.Priority.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown priority")
	}
	if filter.Urgency != "" && !rules.Urgency(filter.Urgency).Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "urgency must be one of on_track, warning, overdue")
	}
	today := s.clock.Today()
	filter.Today = today

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list expedientes")
	}
	views, err := s.viewsFor(ctx, items, today)
	if err != nil {
		return nil, nil, err
	}
	return views, newPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one case view including its workflow steps.
func (s *ExpedienteService) Get(ctx context.Context, id string) (*dto.ExpedienteView, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "expediente not found", "failed to load expediente")
	}
	docs, err := s.documents.ListByExpediente(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load documents")
	}
	view := buildExpedienteView(*detail, docs, s.clock.Today())
	if s.types != nil {
		if tramiteType, err := s.types.FindByID(ctx, detail.TramiteTypeID); err == nil {
			view.Steps = buildSteps(tramiteType.Steps, detail.CurrentStep, detail.State)
		} else {
			s.logger.Warn("failed to load workflow steps", zap.String("expediente_id", id), zap.Error(err))
		}
	}
	return &view, nil
}

// Create opens a case for a client, seeding its document checklist from the
// procedure type.
func (s *ExpedienteService) Create(ctx context.Context, req dto.CreateExpedienteRequest, actorID string, meta models.RequestMeta) (*dto.ExpedienteView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid expediente payload")
	}

	client, err := s.clients.FindByID(ctx, req.ClientID)
	if err != nil {
		return nil, notFoundOr(err, "client not found", "failed to load client")
	}
	if !client.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "client is inactive")
	}
	tramiteType, err := s.types.FindByID(ctx, req.TramiteTypeID)
	if err != nil {
		return nil, notFoundOr(err, "tramite type not found", "failed to load tramite type")
	}
	if !tramiteType.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "tramite type is inactive")
	}

	startDate := calendarDay(s.clock.Today())
	if req.StartDate != "" {
		if startDate, err = parseDate(req.StartDate); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must be YYYY-MM-DD")
		}
	}
	deadline := startDate.AddDate(0, 0, tramiteType.SLADays)
	if req.Deadline != "" {
		if deadline, err = parseDate(req.Deadline); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "deadline must be YYYY-MM-DD")
		}
	}
	if deadline.Before(startDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "deadline cannot be before start_date")
	}

	code, err := s.resolveCode(ctx, req.Code, tramiteType.Code, startDate)
	if err != nil {
		return nil, err
	}
	assignee, err := s.resolveAssignee(ctx, req.AssignedTo)
	if err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}
	totalSteps := len(tramiteType.Steps)
	if totalSteps < 1 {
		totalSteps = 1
	}

	exp := &models.Expediente{
		Code:          code,
		ClientID:      client.ID,
		TramiteTypeID: tramiteType.ID,
		CurrentStep:   0,
		TotalSteps:    totalSteps,
		State:         models.ExpedienteStateInitiated,
		Priority:      priority,
		StartDate:     startDate,
		Deadline:      deadline,
		Remarks:       strings.TrimSpace(req.Remarks),
		AssignedTo:    assignee,
	}
	docs := make([]models.Document, 0, len(tramiteType.RequiredDocuments))
	for _, name := range tramiteType.RequiredDocuments {
		docs = append(docs, models.Document{
			Name:     name,
			DocType:  "requerido",
			Required: true,
			State:    models.DocumentStatePending,
		})
	}

	if err := s.repo.Create(ctx, exp, docs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create expediente")
	}

	s.afterMutation(ctx, auditEntry{
		actorID:    actorID,
		action:     models.AuditActionExpedienteOpen,
		resource:   "expedientes",
		resourceID: exp.ID,
		newValues:  map[string]interface{}{"code": exp.Code, "client_id": exp.ClientID, "tramite_type_id": exp.TramiteTypeID, "deadline": exp.Deadline.Format(dateLayout)},
		meta:       meta,
	})

	detail := models.ExpedienteDetail{
		Expediente:      *exp,
		ClientName:      client.BusinessName,
		ClientCUIT:      client.CUIT,
		TramiteTypeCode: tramiteType.Code,
		TramiteTypeName: tramiteType.Name,
		Agency:          tramiteType.Agency,
	}
	view := buildExpedienteView(detail, docs, s.clock.Today())
	view.Steps = buildSteps(tramiteType.Steps, exp.CurrentStep, exp.State)
	return &view, nil
}

// Update edits priority, deadline, remarks and assignee. Moving the deadline
// of an overdue case back into the future reopens it.
func (s *ExpedienteService) Update(ctx context.Context, id string, req dto.UpdateExpedienteRequest, actorID string, meta models.RequestMeta) (*dto.ExpedienteView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid expediente payload")
	}
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "expediente not found", "failed to load expediente")
	}
	exp := &detail.Expediente
	old := map[string]interface{}{"priority": exp.Priority, "deadline": exp.Deadline.Format(dateLayout), "state": exp.State}
	today := s.clock.Today()

	if req.Priority != nil {
		exp.Priority = *req.Priority
	}
	if req.Deadline != nil {
		deadline, err := parseDate(*req.Deadline)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "deadline must be YYYY-MM-DD")
		}
		if deadline.Before(calendarDay(exp.StartDate)) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "deadline cannot be before start_date")
		}
		exp.Deadline = deadline
		if exp.State == models.ExpedienteStateOverdue && rules.DaysRemaining(deadline, today) >= 0 {
			exp.State = openStateFor(exp.CurrentStep)
		}
	}
	if req.Remarks != nil {
		exp.Remarks = strings.TrimSpace(*req.Remarks)
	}
	if req.AssignedTo != nil {
		if exp.AssignedTo, err = s.resolveAssignee(ctx, req.AssignedTo); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, exp); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update expediente")
	}
	s.afterMutation(ctx, auditEntry{
		actorID:    actorID,
		action:     models.AuditActionExpedienteEdit,
		resource:   "expedientes",
		resourceID: exp.ID,
		oldValues:  old,
		newValues:  map[string]interface{}{"priority": exp.Priority, "deadline": exp.Deadline.Format(dateLayout), "state": exp.State},
		meta:       meta,
	})
	return s.Get(ctx, id)
}

// AdvanceStep moves the case to its next workflow step. Entering the last
// step completes the case and requires every required document approved.
func (s *ExpedienteService) AdvanceStep(ctx context.Context, id string, actorID string, meta models.RequestMeta) (*dto.ExpedienteView, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "expediente not found", "failed to load expediente")
	}
	exp := &detail.Expediente
	switch exp.State {
	case models.ExpedienteStateCompleted:
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "expediente is already completed")
	case models.ExpedienteStateObservation:
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "resolve the observation before advancing")
	}
	if exp.CurrentStep >= exp.TotalSteps {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "expediente is at its last step")
	}

	previous := exp.CurrentStep
	previousState := exp.State
	next := exp.CurrentStep + 1
	if next == exp.TotalSteps {
		if err := s.ensureDocumentsComplete(ctx, exp.ID); err != nil {
			return nil, err
		}
		s.complete(exp)
	} else {
		exp.CurrentStep = next
		if exp.State == models.ExpedienteStateInitiated {
			exp.State = models.ExpedienteStateInProgress
		}
	}

	if err := s.repo.UpdateProgress(ctx, exp); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance expediente")
	}
	s.afterMutation(ctx, auditEntry{
		actorID:    actorID,
		action:     models.AuditActionExpedienteStep,
		resource:   "expedientes",
		resourceID: exp.ID,
		oldValues:  map[string]interface{}{"current_step": previous, "state": previousState},
		newValues:  map[string]interface{}{"current_step": exp.CurrentStep, "state": exp.State},
		meta:       meta,
	})
	return s.Get(ctx, id)
}

// ChangeState applies an explicit transition: observe, resume, complete or
// reopen.
func (s *ExpedienteService) ChangeState(ctx context.Context, id string, req dto.ChangeStateRequest, actorID string, meta models.RequestMeta) (*dto.ExpedienteView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid state change payload")
	}
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "expediente not found", "failed to load expediente")
	}
	exp := &detail.Expediente
	previous := exp.State
	today := s.clock.Today()

	switch req.Action {
	case dto.StateActionObserve:
		if exp.State == models.ExpedienteStateCompleted || exp.State == models.ExpedienteStateObservation {
			return nil, invalidTransition(exp.State, req.Action)
		}
		exp.State = models.ExpedienteStateObservation
	case dto.StateActionResume:
		if exp.State != models.ExpedienteStateObservation {
			return nil, invalidTransition(exp.State, req.Action)
		}
		exp.State = resumedState(*exp, today)
	case dto.StateActionComplete:
		if exp.State == models.ExpedienteStateCompleted {
			return nil, invalidTransition(exp.State, req.Action)
		}
		if err := s.ensureDocumentsComplete(ctx, exp.ID); err != nil {
			return nil, err
		}
		s.complete(exp)
	case dto.StateActionReopen:
		if exp.State != models.ExpedienteStateCompleted {
			return nil, invalidTransition(exp.State, req.Action)
		}
		exp.CompletedAt = nil
		if exp.CurrentStep >= exp.TotalSteps {
			exp.CurrentStep = exp.TotalSteps - 1
		}
		exp.State = resumedState(*exp, today)
	}

	if err := s.repo.UpdateProgress(ctx, exp); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change expediente state")
	}
	s.afterMutation(ctx, auditEntry{
		actorID:    actorID,
		action:     models.AuditActionExpedienteState,
		resource:   "expedientes",
		resourceID: exp.ID,
		oldValues:  map[string]interface{}{"state": previous},
		newValues:  map[string]interface{}{"state": exp.State, "action": req.Action, "note": req.Note},
		meta:       meta,
	})
	return s.Get(ctx, id)
}

// SweepOverdue marks every open case past its deadline as vencido and
// returns how many changed.
func (s *ExpedienteService) SweepOverdue(ctx context.Context) (int, error) {
	today := s.clock.Today()
	ids, err := s.repo.MarkOverdue(ctx, today)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark overdue expedientes")
	}
	if len(ids) == 0 {
		return 0, nil
	}
	for _, id := range ids {
		recordAudit(ctx, s.audit, s.logger, auditEntry{
			action:     models.AuditActionExpedienteState,
			resource:   "expedientes",
			resourceID: id,
			newValues:  map[string]interface{}{"state": models.ExpedienteStateOverdue, "action": "sweep"},
		})
	}
	s.metrics.RecordOverdue(len(ids))
	s.invalidateDashboard(ctx)
	s.logger.Info("overdue sweep marked expedientes", zap.Int("count", len(ids)), zap.String("today", today.Format(dateLayout)))
	return len(ids), nil
}

func (s *ExpedienteService) viewsFor(ctx context.Context, items []models.ExpedienteDetail, today time.Time) ([]dto.ExpedienteView, error) {
	views := make([]dto.ExpedienteView, 0, len(items))
	if len(items) == 0 {
		return views, nil
	}
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	docs, err := s.documents.ListByExpedientes(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load documents")
	}
	for _, item := range items {
		views = append(views, buildExpedienteView(item, docs[item.ID], today))
	}
	return views, nil
}

func (s *ExpedienteService) ensureDocumentsComplete(ctx context.Context, id string) error {
	docs, err := s.documents.ListByExpediente(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load documents")
	}
	summary := rules.SummarizeDocuments(docs, s.clock.Today())
	if !summary.Complete {
		return appErrors.Clone(appErrors.ErrDocumentsIncomplete,
			fmt.Sprintf("%d of %d required documents approved", summary.ApprovedRequired, summary.Required))
	}
	return nil
}

func (s *ExpedienteService) complete(exp *models.Expediente) {
	now := s.clock.now().UTC()
	exp.CurrentStep = exp.TotalSteps
	exp.State = models.ExpedienteStateCompleted
	exp.CompletedAt = &now
}

// resolveAssignee maps an empty id to no assignee and requires any other id
// to belong to an active user.
func (s *ExpedienteService) resolveAssignee(ctx context.Context, id *string) (*string, error) {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil, nil
	}
	if s.users == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assignee cannot be set")
	}
	user, err := s.users.FindByID(ctx, *id)
	if err != nil {
		return nil, notFoundOr(err, "assignee not found", "failed to load assignee")
	}
	if user.Status != models.UserStatusActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assignee is not an active user")
	}
	assignee := user.ID
	return &assignee, nil
}

func (s *ExpedienteService) resolveCode(ctx context.Context, requested, typeCode string, startDate time.Time) (string, error) {
	if requested = strings.ToUpper(strings.TrimSpace(requested)); requested != "" {
		exists, err := s.repo.CodeExists(ctx, requested)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check expediente code")
		}
		if exists {
			return "", appErrors.Clone(appErrors.ErrConflict, "expediente code already exists")
		}
		return requested, nil
	}
	for i := 0; i < codeAttempts; i++ {
		code := generateCode(typeCode, startDate)
		exists, err := s.repo.CodeExists(ctx, code)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check expediente code")
		}
		if !exists {
			return code, nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrConflict, "could not allocate a unique expediente code")
}

func (s *ExpedienteService) afterMutation(ctx context.Context, entry auditEntry) {
	recordAudit(ctx, s.audit, s.logger, entry)
	s.invalidateDashboard(ctx)
}

func (s *ExpedienteService) invalidateDashboard(ctx context.Context) {
	invalidateDashboard(ctx, s.cache, s.logger)
}

// generateCode builds <TYPECODE>-<YYYY>-<6 hex>.
func generateCode(typeCode string, startDate time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("%s-%04d-%s", strings.ToUpper(typeCode), startDate.Year(), suffix)
}

func openStateFor(currentStep int) models.ExpedienteState {
	if currentStep == 0 {
		return models.ExpedienteStateInitiated
	}
	return models.ExpedienteStateInProgress
}

// resumedState is the state a case returns to after an observation or a
// reopen: vencido when the deadline already passed, otherwise by step.
func resumedState(exp models.Expediente, today time.Time) models.ExpedienteState {
	if rules.DaysRemaining(exp.Deadline, today) < 0 {
		return models.ExpedienteStateOverdue
	}
	return openStateFor(exp.CurrentStep)
}

func invalidTransition(from models.ExpedienteState, action dto.StateAction) error {
	return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot %s an expediente in state %s", action, from))
}

func buildExpedienteView(detail models.ExpedienteDetail, docs []models.Document, today time.Time) dto.ExpedienteView {
	status := rules.EvaluateDeadline(detail.Deadline, today)
	return dto.ExpedienteView{
		ExpedienteDetail: detail,
		DeadlineStatus:   status,
		Progress:         rules.StepProgress(detail.CurrentStep, detail.TotalSteps),
		Documents:        rules.SummarizeDocuments(docs, today),
		Badges: dto.ExpedienteBadges{
			State:    rules.ExpedienteBadge(detail.State),
			Priority: rules.PriorityBadge(detail.Priority),
			Urgency:  rules.Badge{Value: string(status.Urgency), Tone: rules.UrgencyTone(status.Urgency)},
		},
	}
}

func buildSteps(names []string, currentStep int, state models.ExpedienteState) []dto.StepView {
	steps := make([]dto.StepView, 0, len(names))
	completed := state == models.ExpedienteStateCompleted
	for i, name := range names {
		number := i + 1
		steps = append(steps, dto.StepView{
			Number: number,
			Name:   name,
			Done:   completed || number < currentStep,
			Active: !completed && number == currentStep,
		})
	}
	return steps
}
