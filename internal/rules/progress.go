package rules

import "math"

// Stage is the coarse label attached to a completion percentage.
type Stage string

const (
	StageNotStarted Stage = "not_started"
	StageInProgress Stage = "in_progress"
	StageCompleted  Stage = "completed"
)

// Progress is a completion percentage with its stage label.
type Progress struct {
	Current int   `json:"current"`
	Total   int   `json:"total"`
	Percent int   `json:"percent"`
	Stage   Stage `json:"stage"`
}

// Percentage returns round(part/total*100) clamped to [0, 100]. A zero or
// negative total is vacuously complete and yields 100.
func Percentage(part, total int) int {
	if total <= 0 {
		return 100
	}
	if part <= 0 {
		return 0
	}
	if part >= total {
		return 100
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

// StageFor labels a percentage.
func StageFor(percent int) Stage {
	switch {
	case percent >= 100:
		return StageCompleted
	case percent <= 0:
		return StageNotStarted
	default:
		return StageInProgress
	}
}

// StepProgress computes workflow progress for a 1-based current step.
func StepProgress(current, total int) Progress {
	pct := Percentage(current, total)
	return Progress{Current: current, Total: total, Percent: pct, Stage: StageFor(pct)}
}
