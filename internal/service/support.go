package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/estudio-sgt/sgt-api/internal/models"
	appErrors "github.com/estudio-sgt/sgt-api/pkg/errors"
)

type auditLogWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Clock returns the current instant. Services read "today" through it so
// tests can pin the date.
type Clock func() time.Time

// dayClock resolves the current calendar day in the office's timezone.
type dayClock struct {
	now Clock
	loc *time.Location
}

func newDayClock(now Clock, loc *time.Location) dayClock {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return dayClock{now: now, loc: loc}
}

// Today returns now in the configured location; callers only use its date.
func (c dayClock) Today() time.Time {
	return c.now().In(c.loc)
}

// auditEntry is the subset of an audit log a service fills in.
type auditEntry struct {
	actorID    string
	action     string
	resource   string
	resourceID string
	oldValues  interface{}
	newValues  interface{}
	meta       models.RequestMeta
}

// recordAudit writes the entry and only logs failures; an audit outage must
// not fail the business operation.
func recordAudit(ctx context.Context, repo auditLogWriter, logger *zap.Logger, entry auditEntry) {
	if repo == nil {
		return
	}
	log := &models.AuditLog{
		Action:    entry.action,
		Resource:  entry.resource,
		IPAddress: entry.meta.IP,
		UserAgent: entry.meta.UserAgent,
	}
	if entry.actorID != "" {
		actor := entry.actorID
		log.UserID = &actor
	}
	if entry.resourceID != "" {
		id := entry.resourceID
		log.ResourceID = &id
	}
	if entry.oldValues != nil {
		log.OldValues, _ = json.Marshal(entry.oldValues)
	}
	if entry.newValues != nil {
		log.NewValues, _ = json.Marshal(entry.newValues)
	}
	if err := repo.CreateAuditLog(ctx, log); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", entry.action), zap.String("resource_id", entry.resourceID), zap.Error(err))
	}
}

func newPagination(page, pageSize, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
}

// notFoundOr maps sql.ErrNoRows to a typed not-found error and anything
// else to an internal error.
func notFoundOr(err error, notFoundMsg, internalMsg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFoundMsg)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internalMsg)
}

const dateLayout = "2006-01-02"

// parseDate reads a YYYY-MM-DD value as a calendar date at UTC midnight.
func parseDate(raw string) (time.Time, error) {
	return time.Parse(dateLayout, raw)
}

// calendarDay drops the time of day, keeping t's calendar date at UTC
// midnight so it round-trips through DATE columns unchanged.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
