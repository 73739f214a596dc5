package dto

import "github.com/estudio-sgt/sgt-api/internal/rules"

// CountBucket is one grouped count with the tone it is charted with.
type CountBucket struct {
	Key   string     `json:"key"`
	Count int        `json:"count"`
	Tone  rules.Tone `json:"tone"`
}

// DashboardSummary is the aggregated overview of the case load.
type DashboardSummary struct {
	Today     string           `json:"today"`
	Total     int              `json:"total"`
	Open      int              `json:"open"`
	ByState   []CountBucket    `json:"by_state"`
	ByUrgency []CountBucket    `json:"by_urgency"`
	ByAgency  []CountBucket    `json:"by_agency"`
	Upcoming  []ExpedienteView `json:"upcoming"`
}
