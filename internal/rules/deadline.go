package rules

import "time"

// WarningWindowDays is the last stretch of days before a deadline that is
// flagged yellow.
const WarningWindowDays = 3

const secondsPerDay = 24 * 60 * 60

// Urgency is the three-level semáforo classification of a deadline.
type Urgency string

const (
	UrgencyOnTrack Urgency = "on_track"
	UrgencyWarning Urgency = "warning"
	UrgencyOverdue Urgency = "overdue"
)

// Valid reports whether u is one of the known urgency levels.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyOnTrack, UrgencyWarning, UrgencyOverdue:
		return true
	}
	return false
}

// Color returns the traffic-light colour shown for the urgency.
func (u Urgency) Color() string {
	switch u {
	case UrgencyOverdue:
		return "red"
	case UrgencyWarning:
		return "yellow"
	default:
		return "green"
	}
}

// DeadlineStatus is the evaluated state of a deadline on a given day.
type DeadlineStatus struct {
	Deadline      time.Time `json:"deadline"`
	DaysRemaining int       `json:"days_remaining"`
	Urgency       Urgency   `json:"urgency"`
	Color         string    `json:"color"`
}

// DaysRemaining returns deadline minus today in whole calendar days. The
// time of day of both arguments is ignored; each date is read in its own
// location.
func DaysRemaining(deadline, today time.Time) int {
	d := calendarDate(deadline)
	t := calendarDate(today)
	return int((d.Unix() - t.Unix()) / secondsPerDay)
}

// ClassifyDays maps a days-remaining count to its urgency.
func ClassifyDays(days int) Urgency {
	switch {
	case days < 0:
		return UrgencyOverdue
	case days <= WarningWindowDays:
		return UrgencyWarning
	default:
		return UrgencyOnTrack
	}
}

// EvaluateDeadline computes days remaining and urgency for deadline as seen
// on today.
func EvaluateDeadline(deadline, today time.Time) DeadlineStatus {
	days := DaysRemaining(deadline, today)
	urgency := ClassifyDays(days)
	return DeadlineStatus{
		Deadline:      deadline,
		DaysRemaining: days,
		Urgency:       urgency,
		Color:         urgency.Color(),
	}
}

// UrgencyWindow returns the inclusive deadline date range matching urgency
// on today. Open ends are returned as nil. It is used to push the semáforo
// filter down to SQL.
func UrgencyWindow(u Urgency, today time.Time) (from, to *time.Time) {
	base := calendarDate(today)
	switch u {
	case UrgencyOverdue:
		end := base.AddDate(0, 0, -1)
		return nil, &end
	case UrgencyWarning:
		end := base.AddDate(0, 0, WarningWindowDays)
		return &base, &end
	case UrgencyOnTrack:
		start := base.AddDate(0, 0, WarningWindowDays+1)
		return &start, nil
	}
	return nil, nil
}

// calendarDate projects t onto midnight UTC of its own calendar day, so
// day arithmetic is not skewed by DST or offsets.
func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
