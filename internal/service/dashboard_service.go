package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/estudio-sgt/sgt-api/internal/dto"
	"github.com/estudio-sgt/sgt-api/internal/models"
	"github.com/estudio-sgt/sgt-api/internal/rules"
	appErrors "github.com/estudio-sgt/sgt-api/pkg/errors"
)

// dashboardCachePattern matches every cached dashboard payload.
const dashboardCachePattern = "dashboard:*"

func invalidateDashboard(ctx context.Context, cache cacheInvalidator, logger *zap.Logger) {
	if cache == nil {
		return
	}
	if err := cache.Invalidate(ctx, dashboardCachePattern); err != nil {
		logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

type dashboardRepository interface {
	CountByState(ctx context.Context) ([]models.ExpedienteStateCount, error)
	CountByAgency(ctx context.Context) ([]models.ExpedienteStateCount, error)
	CountByUrgency(ctx context.Context, today time.Time) ([]models.ExpedienteStateCount, error)
	Upcoming(ctx context.Context, today time.Time, horizonDays, limit int) ([]models.ExpedienteDetail, error)
}

var (
	stateOrder = []models.ExpedienteState{
		models.ExpedienteStateInitiated,
		models.ExpedienteStateInProgress,
		models.ExpedienteStateObservation,
		models.ExpedienteStateOverdue,
		models.ExpedienteStateCompleted,
	}
	urgencyOrder = []rules.Urgency{rules.UrgencyOverdue, rules.UrgencyWarning, rules.UrgencyOnTrack}
)

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL            time.Duration
	UpcomingLimit       int
	UpcomingHorizonDays int
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Repo      dashboardRepository
	Documents checklistReader
	Cache     *CacheService
	Logger    *zap.Logger
	Clock     Clock
	Location  *time.Location
	Config    DashboardServiceConfig
}

// DashboardService composes the case load overview.
type DashboardService struct {
	repo      dashboardRepository
	documents checklistReader
	cache     *CacheService
	logger    *zap.Logger
	clock     dayClock
	cfg       DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.UpcomingLimit <= 0 {
		cfg.UpcomingLimit = 10
	}
	if cfg.UpcomingHorizonDays <= 0 {
		cfg.UpcomingHorizonDays = 15
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		repo:      params.Repo,
		documents: params.Documents,
		cache:     params.Cache,
		logger:    logger,
		clock:     newDayClock(params.Clock, params.Location),
		cfg:       cfg,
	}
}

// Summary returns the overview for today and reports whether it came from
// the cache.
func (s *DashboardService) Summary(ctx context.Context) (*dto.DashboardSummary, bool, error) {
	today := s.clock.Today()
	cacheKey := fmt.Sprintf("dashboard:summary:%s", today.Format(dateLayout))

	if s.cache != nil {
		var cached dto.DashboardSummary
		hit, err := s.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			s.logger.Warn("dashboard cache read failed", zap.String("key", cacheKey), zap.Error(err))
		} else if hit {
			return &cached, true, nil
		}
	}

	summary, err := s.compose(ctx, today)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, summary, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return summary, false, nil
}

func (s *DashboardService) compose(ctx context.Context, today time.Time) (*dto.DashboardSummary, error) {
	byState, err := s.repo.CountByState(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count expedientes by state")
	}
	byUrgency, err := s.repo.CountByUrgency(ctx, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count expedientes by urgency")
	}
	byAgency, err := s.repo.CountByAgency(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count expedientes by agency")
	}
	upcoming, err := s.repo.Upcoming(ctx, today, s.cfg.UpcomingHorizonDays, s.cfg.UpcomingLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list upcoming deadlines")
	}

	summary := &dto.DashboardSummary{
		Today:     today.Format(dateLayout),
		ByState:   make([]dto.CountBucket, 0, len(stateOrder)),
		ByUrgency: make([]dto.CountBucket, 0, len(urgencyOrder)),
		ByAgency:  make([]dto.CountBucket, 0, len(byAgency)),
		Upcoming:  make([]dto.ExpedienteView, 0, len(upcoming)),
	}

	stateCounts := indexCounts(byState)
	for _, state := range stateOrder {
		count := stateCounts[string(state)]
		summary.Total += count
		if state != models.ExpedienteStateCompleted {
			summary.Open += count
		}
		summary.ByState = append(summary.ByState, dto.CountBucket{Key: string(state), Count: count, Tone: rules.ExpedienteTone(state)})
	}
	urgencyCounts := indexCounts(byUrgency)
	for _, urgency := range urgencyOrder {
		summary.ByUrgency = append(summary.ByUrgency, dto.CountBucket{Key: string(urgency), Count: urgencyCounts[string(urgency)], Tone: rules.UrgencyTone(urgency)})
	}
	for _, row := range byAgency {
		summary.ByAgency = append(summary.ByAgency, dto.CountBucket{Key: row.Key, Count: row.Count, Tone: rules.ToneInfo})
	}

	if len(upcoming) > 0 {
		ids := make([]string, len(upcoming))
		for i, item := range upcoming {
			ids[i] = item.ID
		}
		docs, err := s.documents.ListByExpedientes(ctx, ids)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load documents")
		}
		for _, item := range upcoming {
			summary.Upcoming = append(summary.Upcoming, buildExpedienteView(item, docs[item.ID], today))
		}
	}
	return summary, nil
}

func indexCounts(rows []models.ExpedienteStateCount) map[string]int {
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Key] += row.Count
	}
	return out
}
