package dto

import (
	"github.com/estudio-sgt/sgt-api/internal/models"
	"github.com/estudio-sgt/sgt-api/internal/rules"
)

// ExpedienteBadges groups the tones a case card is rendered with.
type ExpedienteBadges struct {
	State    rules.Badge `json:"state"`
	Priority rules.Badge `json:"priority"`
	Urgency  rules.Badge `json:"urgency"`
}

// StepView is one workflow step with its position relative to the case.
type StepView struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
	Done   bool   `json:"done"`
	Active bool   `json:"active"`
}

// ExpedienteView is a case record enriched with its evaluated rules.
type ExpedienteView struct {
	models.ExpedienteDetail
	DeadlineStatus rules.DeadlineStatus  `json:"deadline_status"`
	Progress       rules.Progress        `json:"progress"`
	Documents      rules.DocumentSummary `json:"documents"`
	Badges         ExpedienteBadges      `json:"badges"`
	Steps          []StepView            `json:"steps,omitempty"`
}

// CreateExpedienteRequest opens a new case.
type CreateExpedienteRequest struct {
	Code          string          `json:"code" validate:"omitempty,max=40"`
	ClientID      string          `json:"client_id" validate:"required"`
	TramiteTypeID string          `json:"tramite_type_id" validate:"required"`
	Priority      models.Priority `json:"priority" validate:"omitempty,oneof=normal alta urgente"`
	StartDate     string          `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	Deadline      string          `json:"deadline" validate:"omitempty,datetime=2006-01-02"`
	Remarks       string          `json:"remarks" validate:"max=2000"`
	AssignedTo    *string         `json:"assigned_to" validate:"omitempty,uuid"`
}

// UpdateExpedienteRequest edits the mutable attributes of a case.
type UpdateExpedienteRequest struct {
	Priority   *models.Priority `json:"priority" validate:"omitempty,oneof=normal alta urgente"`
	Deadline   *string          `json:"deadline" validate:"omitempty,datetime=2006-01-02"`
	Remarks    *string          `json:"remarks" validate:"omitempty,max=2000"`
	AssignedTo *string          `json:"assigned_to" validate:"omitempty,uuid"`
}

// StateAction names an explicit state transition.
type StateAction string

const (
	StateActionObserve  StateAction = "observe"
	StateActionResume   StateAction = "resume"
	StateActionComplete StateAction = "complete"
	StateActionReopen   StateAction = "reopen"
)

// ChangeStateRequest applies a StateAction.
type ChangeStateRequest struct {
	Action StateAction `json:"action" validate:"required,oneof=observe resume complete reopen"`
	Note   string      `json:"note" validate:"max=1000"`
}
