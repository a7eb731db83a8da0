package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhive/tutorhive-api/internal/models"
	appErrors "github.com/tutorhive/tutorhive-api/pkg/errors"
)

type memoryCache struct {
	data map[string][]byte
	ttls map[string]time.Duration
	sets int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	m.ttls[key] = ttl
	m.sets++
	return nil
}

func (m *memoryCache) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	delete(m.ttls, key)
	return nil
}

type stubSessionSource struct {
	sessions []models.Session
	calls    int
	err      error
}

func (s *stubSessionSource) ListActiveByTeacherDate(context.Context, string, time.Time) ([]models.Session, error) {
	s.calls++
	return s.sessions, s.err
}

func busyTestDate(t *testing.T) time.Time {
	t.Helper()
	date, err := time.Parse(models.DateLayout, "2024-03-04")
	require.NoError(t, err)
	return date
}

func TestBusyIndexRebuildOnMiss(t *testing.T) {
	source := &stubSessionSource{sessions: []models.Session{
		{StartTick: 28, EndTick: 32},
		{StartTick: 36, EndTick: 37, IsTrial: true},
	}}
	cache := newMemoryCache()
	svc := NewBusyIndexService(source, cache, nil, nil, BusyIndexConfig{TTL: 10 * time.Minute})

	ticks, err := svc.Get(context.Background(), "teacher-1", busyTestDate(t))
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls)
	assert.True(t, ticks[28])
	assert.True(t, ticks[31])
	assert.True(t, ticks[36])
	assert.False(t, ticks[32])

	// Second read is served from cache.
	ticks, err = svc.Get(context.Background(), "teacher-1", busyTestDate(t))
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls)
	assert.True(t, ticks[28])
}

func TestBusyIndexKnownEmptySentinel(t *testing.T) {
	source := &stubSessionSource{}
	cache := newMemoryCache()
	svc := NewBusyIndexService(source, cache, nil, nil, BusyIndexConfig{TTL: 10 * time.Minute, KnownEmptyTTL: 30 * time.Second})

	ticks, err := svc.Get(context.Background(), "teacher-1", busyTestDate(t))
	require.NoError(t, err)
	assert.Empty(t, ticks)

	// The empty day is cached too, with its own short TTL.
	_, err = svc.Get(context.Background(), "teacher-1", busyTestDate(t))
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, 30*time.Second, cache.ttls["busy:teacher-1:2024-03-04"])
}

func TestBusyIndexInvalidate(t *testing.T) {
	source := &stubSessionSource{sessions: []models.Session{{StartTick: 20, EndTick: 24}}}
	cache := newMemoryCache()
	svc := NewBusyIndexService(source, cache, nil, nil, BusyIndexConfig{TTL: time.Minute})

	_, err := svc.Get(context.Background(), "teacher-1", busyTestDate(t))
	require.NoError(t, err)

	require.NoError(t, svc.Invalidate(context.Background(), "teacher-1", busyTestDate(t)))

	_, err = svc.Get(context.Background(), "teacher-1", busyTestDate(t))
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestBusyIndexApplyDelta(t *testing.T) {
	source := &stubSessionSource{sessions: []models.Session{{StartTick: 28, EndTick: 32}}}
	cache := newMemoryCache()
	svc := NewBusyIndexService(source, cache, nil, nil, BusyIndexConfig{TTL: time.Minute})

	_, err := svc.Get(context.Background(), "teacher-1", busyTestDate(t))
	require.NoError(t, err)

	svc.ApplyDelta(context.Background(), "teacher-1", busyTestDate(t), []int{36, 37}, []int{28, 29})

	ticks, err := svc.Get(context.Background(), "teacher-1", busyTestDate(t))
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls)
	assert.True(t, ticks[36])
	assert.True(t, ticks[37])
	assert.True(t, ticks[30])
	assert.False(t, ticks[28])
	assert.False(t, ticks[29])
}

func TestBusyIndexApplyDeltaWithoutEntryIsNoop(t *testing.T) {
	source := &stubSessionSource{}
	cache := newMemoryCache()
	svc := NewBusyIndexService(source, cache, nil, nil, BusyIndexConfig{TTL: time.Minute})

	svc.ApplyDelta(context.Background(), "teacher-1", busyTestDate(t), []int{10}, nil)
	assert.Zero(t, cache.sets)
}
