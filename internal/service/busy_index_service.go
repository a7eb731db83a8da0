package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/tutorhive/tutorhive-api/internal/models"
	appErrors "github.com/tutorhive/tutorhive-api/pkg/errors"
)

type busySessionSource interface {
	ListActiveByTeacherDate(ctx context.Context, teacherID string, date time.Time) ([]models.Session, error)
}

type busyCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// busyEntry is the cached payload for one teacher/day. Empty marks a
// day known to have no sessions, so a free calendar does not miss on
// every lookup.
type busyEntry struct {
	Ticks []int `json:"ticks"`
	Empty bool  `json:"empty"`
}

// BusyIndexConfig governs cache lifetimes.
type BusyIndexConfig struct {
	TTL           time.Duration
	Jitter        time.Duration
	KnownEmptyTTL time.Duration
}

// BusyIndexService is a read-through cache of occupied ticks per
// teacher/day. It is never authoritative: every miss rebuilds the
// entry from session rows, so a lost or stale entry self-heals.
type BusyIndexService struct {
	sessions busySessionSource
	cache    busyCache
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      BusyIndexConfig
}

// NewBusyIndexService wires the busy index.
func NewBusyIndexService(sessions busySessionSource, cache busyCache, metrics *MetricsService, logger *zap.Logger, cfg BusyIndexConfig) *BusyIndexService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.KnownEmptyTTL <= 0 {
		cfg.KnownEmptyTTL = time.Minute
	}
	return &BusyIndexService{
		sessions: sessions,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
	}
}

// Get returns the set of occupied ticks for the teacher on the date,
// rebuilding the cache entry from session rows on miss.
func (s *BusyIndexService) Get(ctx context.Context, teacherID string, date time.Time) (map[int]bool, error) {
	key := busyKey(teacherID, date)

	var entry busyEntry
	err := s.cache.Get(ctx, key, &entry)
	if err == nil {
		s.metrics.RecordCacheOperation(true)
		return tickSet(entry.Ticks), nil
	}
	if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("busy index cache read failed, rebuilding", zap.String("key", key), zap.Error(err))
	}
	s.metrics.RecordCacheOperation(false)

	ticks, err := s.rebuild(ctx, teacherID, date)
	if err != nil {
		return nil, err
	}

	s.store(ctx, key, ticks)
	return tickSet(ticks), nil
}

// Invalidate drops the cached entry for the teacher/day.
func (s *BusyIndexService) Invalidate(ctx context.Context, teacherID string, date time.Time) error {
	return s.cache.Delete(ctx, busyKey(teacherID, date))
}

// ApplyDelta incrementally updates a cached entry after a commit,
// avoiding a full rebuild. Best effort: when the entry is absent the
// next Get rebuilds it from the store anyway.
func (s *BusyIndexService) ApplyDelta(ctx context.Context, teacherID string, date time.Time, add, remove []int) {
	key := busyKey(teacherID, date)

	var entry busyEntry
	if err := s.cache.Get(ctx, key, &entry); err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("busy index delta read failed", zap.String("key", key), zap.Error(err))
		}
		return
	}

	set := tickSet(entry.Ticks)
	for _, t := range add {
		set[t] = true
	}
	for _, t := range remove {
		delete(set, t)
	}

	s.store(ctx, key, sortedTicks(set))
}

func (s *BusyIndexService) rebuild(ctx context.Context, teacherID string, date time.Time) ([]int, error) {
	sessions, err := s.sessions.ListActiveByTeacherDate(ctx, teacherID, date)
	if err != nil {
		return nil, fmt.Errorf("rebuild busy index for %s/%s: %w", teacherID, date.Format(models.DateLayout), err)
	}

	set := make(map[int]bool)
	for _, session := range sessions {
		for _, t := range session.Slot().Ticks() {
			set[t] = true
		}
	}
	return sortedTicks(set), nil
}

func (s *BusyIndexService) store(ctx context.Context, key string, ticks []int) {
	entry := busyEntry{Ticks: ticks, Empty: len(ticks) == 0}
	ttl := s.cfg.KnownEmptyTTL
	if !entry.Empty {
		ttl = s.cfg.TTL
		if s.cfg.Jitter > 0 {
			ttl += time.Duration(rand.Int63n(int64(s.cfg.Jitter)))
		}
	}
	if err := s.cache.Set(ctx, key, entry, ttl); err != nil {
		s.logger.Warn("busy index cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func busyKey(teacherID string, date time.Time) string {
	return fmt.Sprintf("busy:%s:%s", teacherID, date.Format(models.DateLayout))
}

func tickSet(ticks []int) map[int]bool {
	set := make(map[int]bool, len(ticks))
	for _, t := range ticks {
		set[t] = true
	}
	return set
}

func sortedTicks(set map[int]bool) []int {
	ticks := make([]int, 0, len(set))
	for t := range set {
		ticks = append(ticks, t)
	}
	sort.Ints(ticks)
	return ticks
}
