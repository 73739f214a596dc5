package models

import "time"

// ExpedienteState is the canonical lifecycle state of a case record.
type ExpedienteState string

const (
	ExpedienteStateInitiated   ExpedienteState = "iniciado"
	ExpedienteStateInProgress  ExpedienteState = "en_proceso"
	ExpedienteStateObservation ExpedienteState = "en_observacion"
	ExpedienteStateCompleted   ExpedienteState = "completado"
	ExpedienteStateOverdue     ExpedienteState = "vencido"
)

// Valid reports whether the state belongs to the canonical enumeration.
func (s ExpedienteState) Valid() bool {
	switch s {
	case ExpedienteStateInitiated, ExpedienteStateInProgress, ExpedienteStateObservation,
		ExpedienteStateCompleted, ExpedienteStateOverdue:
		return true
	}
	return false
}

// Priority ranks how urgently a case is handled.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "alta"
	PriorityUrgent Priority = "urgente"
)

// Valid reports whether the priority belongs to the canonical enumeration.
func (p Priority) Valid() bool {
	switch p {
	case PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Expediente is one procedure instance filed for one client.
type Expediente struct {
	ID            string          `db:"id" json:"id"`
	Code          string          `db:"code" json:"code"`
	ClientID      string          `db:"client_id" json:"client_id"`
	TramiteTypeID string          `db:"tramite_type_id" json:"tramite_type_id"`
	CurrentStep   int             `db:"current_step" json:"current_step"`
	TotalSteps    int             `db:"total_steps" json:"total_steps"`
	State         ExpedienteState `db:"state" json:"state"`
	Priority      Priority        `db:"priority" json:"priority"`
	StartDate     time.Time       `db:"start_date" json:"start_date"`
	Deadline      time.Time       `db:"deadline" json:"deadline"`
	Remarks       string          `db:"remarks" json:"remarks"`
	AssignedTo    *string         `db:"assigned_to" json:"assigned_to,omitempty"`
	CompletedAt   *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// ExpedienteDetail joins the case with its client and procedure type labels.
type ExpedienteDetail struct {
	Expediente
	ClientName      string `db:"client_name" json:"client_name"`
	ClientCUIT      string `db:"client_cuit" json:"client_cuit"`
	TramiteTypeCode string `db:"tramite_type_code" json:"tramite_type_code"`
	TramiteTypeName string `db:"tramite_type_name" json:"tramite_type_name"`
	Agency          Agency `db:"agency" json:"agency"`
}

// ExpedienteFilter encapsulates allowed search parameters for listing cases.
type ExpedienteFilter struct {
	Search        string
	State         *ExpedienteState
	Priority      *Priority
	ClientID      string
	TramiteTypeID string
	Agency        *Agency
	// Urgency filters on the deadline semáforo relative to Today.
	Urgency    string
	Today      time.Time
	AssignedTo string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// ExpedienteStateCount is one bucket of a grouped count.
type ExpedienteStateCount struct {
	Key   string `db:"key" json:"key"`
	Count int    `db:"count" json:"count"`
}
