package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pawhaven/petcare-api/internal/models"
	appErrors "github.com/pawhaven/petcare-api/pkg/errors"
)

type shiftReader interface {
	ShiftWindowsOn(ctx context.Context, date time.Time) ([]models.ShiftWindow, error)
}

type indexCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// AvailabilityService builds the per-date shift index the scoring engine
// filters against. The index is a map of staff id to on-duty windows in
// minutes of day; a staff member absent from the map has no shift that day.
type AvailabilityService struct {
	shifts   shiftReader
	cache    indexCache
	cacheTTL time.Duration
	logger   *zap.Logger
	metrics  *MetricsService
}

// NewAvailabilityService builds the index service. A nil cache disables
// caching entirely.
func NewAvailabilityService(shifts shiftReader, cache indexCache, cacheTTL time.Duration, logger *zap.Logger, metrics *MetricsService) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &AvailabilityService{
		shifts:   shifts,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
		metrics:  metrics,
	}
}

// IndexOn returns the shift index for a calendar date. Only scheduled and
// checked-in schedule entries contribute windows; absent and on-leave staff
// are invisible here by construction of the underlying query.
func (s *AvailabilityService) IndexOn(ctx context.Context, date time.Time) (map[string][]models.MinuteRange, error) {
	key := availabilityIndexKey(date)
	if s.cache != nil {
		var cached map[string][]models.MinuteRange
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("availability cache read failed", zap.Error(err))
		}
		s.metrics.RecordCacheOperation(false)
	}

	windows, err := s.shifts.ShiftWindowsOn(ctx, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load shift windows")
	}

	index := make(map[string][]models.MinuteRange, len(windows))
	for _, w := range windows {
		if !w.Window.Valid() {
			s.logger.Warn("skipping malformed shift window",
				zap.String("staff_id", w.StaffID),
				zap.Int("start", w.Window.Start),
				zap.Int("end", w.Window.End))
			continue
		}
		index[w.StaffID] = append(index[w.StaffID], w.Window)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, index, s.cacheTTL); err != nil {
			s.logger.Warn("availability cache write failed", zap.Error(err))
		}
	}
	return index, nil
}

// OnDuty reports whether any of the staff member's windows fully contains
// the task window. Partial overlap is not enough.
func OnDuty(index map[string][]models.MinuteRange, staffID string, task models.MinuteRange) bool {
	for _, w := range index[staffID] {
		if w.Contains(task) {
			return true
		}
	}
	return false
}

func availabilityIndexKey(date time.Time) string {
	return fmt.Sprintf("availability:shifts:%s", date.Format("2006-01-02"))
}
