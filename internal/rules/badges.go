package rules

import "github.com/estudio-sgt/sgt-api/internal/models"

// Tone is the visual weight a badge is rendered with.
type Tone string

const (
	ToneSuccess Tone = "success"
	ToneInfo    Tone = "info"
	ToneWarning Tone = "warning"
	ToneDanger  Tone = "danger"
	ToneNeutral Tone = "neutral"
)

// Badge is a label plus its tone.
type Badge struct {
	Value string `json:"value"`
	Tone  Tone   `json:"tone"`
}

// ExpedienteTone maps a case state to its badge tone.
func ExpedienteTone(s models.ExpedienteState) Tone {
	switch s {
	case models.ExpedienteStateCompleted:
		return ToneSuccess
	case models.ExpedienteStateInProgress:
		return ToneInfo
	case models.ExpedienteStateObservation:
		return ToneWarning
	case models.ExpedienteStateOverdue:
		return ToneDanger
	default:
		return ToneNeutral
	}
}

// PriorityTone maps a priority to its badge tone.
func PriorityTone(p models.Priority) Tone {
	switch p {
	case models.PriorityUrgent:
		return ToneDanger
	case models.PriorityHigh:
		return ToneWarning
	default:
		return ToneNeutral
	}
}

// DocumentTone maps a document approval state to its badge tone.
func DocumentTone(s models.DocumentState) Tone {
	switch NormalizeDocumentState(s) {
	case models.DocumentStateApproved:
		return ToneSuccess
	case models.DocumentStateUnderReview:
		return ToneInfo
	case models.DocumentStateRejected:
		return ToneDanger
	default:
		return ToneWarning
	}
}

// UserTone maps an account status to its badge tone.
func UserTone(s models.UserStatus) Tone {
	switch s {
	case models.UserStatusActive:
		return ToneSuccess
	case models.UserStatusSuspended:
		return ToneDanger
	default:
		return ToneNeutral
	}
}

// UrgencyTone maps the semáforo to its badge tone.
func UrgencyTone(u Urgency) Tone {
	switch u {
	case UrgencyOverdue:
		return ToneDanger
	case UrgencyWarning:
		return ToneWarning
	default:
		return ToneSuccess
	}
}

// ExpedienteBadge builds the badge for a case state.
func ExpedienteBadge(s models.ExpedienteState) Badge {
	return Badge{Value: string(s), Tone: ExpedienteTone(s)}
}

// PriorityBadge builds the badge for a priority.
func PriorityBadge(p models.Priority) Badge {
	return Badge{Value: string(p), Tone: PriorityTone(p)}
}

// DocumentBadge builds the badge for a document state.
func DocumentBadge(s models.DocumentState) Badge {
	n := NormalizeDocumentState(s)
	return Badge{Value: string(n), Tone: DocumentTone(n)}
}

// UserBadge builds the badge for an account status.
func UserBadge(s models.UserStatus) Badge {
	return Badge{Value: string(s), Tone: UserTone(s)}
}
