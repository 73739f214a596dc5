// Package rules derives display status for expedientes: the deadline
// semáforo, step and document progress, and the badge tone for every
// canonical state. All functions are pure; the current date is always
// passed in by the caller.
package rules
