package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kiwicoders/sessions-api/internal/models"
	appErrors "github.com/kiwicoders/sessions-api/pkg/errors"
)

type calendarSessionRepository interface {
	ListAll(ctx context.Context) ([]models.Session, error)
}

type cacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CalendarService produces the cross-session occurrence feed for the admin
// calendar. Feeds are cached per date range; any session or term change
// invalidates the whole cache.
type CalendarService struct {
	sessions calendarSessionRepository
	cache    cacheStore
	cacheTTL time.Duration
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewCalendarService constructs a CalendarService. The cache may be nil.
func NewCalendarService(sessions calendarSessionRepository, cache cacheStore, cacheTTL time.Duration, logger *zap.Logger) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &CalendarService{sessions: sessions, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// SetMetrics wires cache hit/miss instrumentation.
func (s *CalendarService) SetMetrics(metrics *MetricsService) {
	s.metrics = metrics
}

// Range returns every occurrence of every session between from and to,
// inclusive, sorted chronologically for display.
func (s *CalendarService) Range(ctx context.Context, from, to time.Time) ([]models.CalendarEntry, error) {
	start := NormalizeDate(from)
	end := NormalizeDate(to)
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must not precede from")
	}

	key := fmt.Sprintf("calendar:%s:%s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	if s.cache != nil {
		var cached []models.CalendarEntry
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			if s.metrics != nil {
				s.metrics.ObserveCacheHit()
			}
			return cached, nil
		} else if err != appErrors.ErrCacheMiss {
			s.logger.Warn("calendar cache read failed", zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.ObserveCacheMiss()
		}
	}

	sessions, err := s.sessions.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
	}

	entries := []models.CalendarEntry{}
	for _, session := range sessions {
		logMalformedClocks(s.logger, session)
		for _, occ := range GenerateOccurrences(session, session.Terms) {
			if occ.Date.Before(start) || occ.Date.After(end) {
				continue
			}
			entries = append(entries, models.CalendarEntry{
				SessionID: session.ID,
				Title:     session.Title,
				Location:  session.Location,
				City:      session.City,
				Date:      occ.Date,
				StartsAt:  occ.StartsAt,
				EndsAt:    occ.EndsAt,
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].StartsAt.Equal(entries[j].StartsAt) {
			return entries[i].StartsAt.Before(entries[j].StartsAt)
		}
		return entries[i].Title < entries[j].Title
	})

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, entries, s.cacheTTL); err != nil {
			s.logger.Warn("calendar cache write failed", zap.Error(err))
		}
	}
	return entries, nil
}

// InvalidateCalendar drops every cached calendar range.
func (s *CalendarService) InvalidateCalendar(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.DeleteByPattern(ctx, "calendar:*")
}
