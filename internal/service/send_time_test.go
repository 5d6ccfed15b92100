package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"waflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOptimizer(stats *fakeStatsStore, enabled bool) *SendTimeOptimizer {
	return NewSendTimeOptimizer(stats, models.SendTimeConfig{Enabled: enabled}, testLogger())
}

func noReadsStore() *fakeStatsStore {
	return &fakeStatsStore{
		readTimestamps: func(ctx context.Context, accountID int64, chatID string, limit int) ([]time.Time, error) {
			return nil, nil
		},
	}
}

func TestRecommendStaticFallback(t *testing.T) {
	opt := newTestOptimizer(noReadsStore(), true)

	// Monday 10:00 is the peak of the static tables.
	monday := time.Date(2026, 5, 11, 10, 0, 0, 0, time.UTC)
	rec, err := opt.Recommend(context.Background(), 1, "c", monday)
	require.NoError(t, err)

	assert.Equal(t, 10, rec.BestHour)
	assert.Equal(t, 1, rec.BestWeekday)
	assert.False(t, rec.Learned)
	assert.InDelta(t, 1.0, rec.Score, 0.0001)
	assert.True(t, rec.SendNow)
}

func TestRecommendScoreAt(t *testing.T) {
	opt := newTestOptimizer(noReadsStore(), true)

	tests := []struct {
		name    string
		at      time.Time
		score   float64
		sendNow bool
	}{
		{
			name:    "sunday evening sinks below the gate",
			at:      time.Date(2026, 5, 10, 20, 0, 0, 0, time.UTC),
			score:   0.25,
			sendNow: false,
		},
		{
			name:    "pre-dawn hour has no weight at all",
			at:      time.Date(2026, 5, 11, 5, 0, 0, 0, time.UTC),
			score:   0,
			sendNow: false,
		},
		{
			name:    "saturday noon is marginal but passes",
			at:      time.Date(2026, 5, 16, 15, 0, 0, 0, time.UTC),
			score:   0.6 * 0.9,
			sendNow: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := opt.Recommend(context.Background(), 1, "c", tt.at)
			require.NoError(t, err)
			assert.InDelta(t, tt.score, rec.Score, 0.0001)
			assert.Equal(t, tt.sendNow, rec.SendNow)
		})
	}
}

func TestRecommendLearnedPreference(t *testing.T) {
	// Reads cluster on Tuesday 14:00; a 03:00 read falls outside the
	// work window and must not count.
	reads := []time.Time{
		time.Date(2026, 5, 5, 14, 5, 0, 0, time.UTC),
		time.Date(2026, 5, 12, 14, 40, 0, 0, time.UTC),
		time.Date(2026, 5, 19, 14, 10, 0, 0, time.UTC),
		time.Date(2026, 5, 19, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 20, 3, 0, 0, 0, time.UTC),
	}
	stats := &fakeStatsStore{
		readTimestamps: func(ctx context.Context, accountID int64, chatID string, limit int) ([]time.Time, error) {
			return reads, nil
		},
	}
	opt := newTestOptimizer(stats, true)

	monday := time.Date(2026, 5, 11, 14, 0, 0, 0, time.UTC)
	rec, err := opt.Recommend(context.Background(), 1, "c", monday)
	require.NoError(t, err)

	assert.True(t, rec.Learned)
	assert.Equal(t, 14, rec.BestHour)
	assert.Equal(t, 2, rec.BestWeekday)
	// Monday 14:00 matches the learned hour; the 1.2x bonus would push
	// the score past 1.0, so it caps there.
	assert.InDelta(t, 1.0, rec.Score, 0.0001)
	assert.True(t, rec.SendNow)
}

func TestRecommendLearnedTieBreaksLowerHour(t *testing.T) {
	reads := []time.Time{
		time.Date(2026, 5, 11, 11, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 12, 11, 30, 0, 0, time.UTC),
		time.Date(2026, 5, 11, 14, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 12, 14, 30, 0, 0, time.UTC),
	}
	stats := &fakeStatsStore{
		readTimestamps: func(ctx context.Context, accountID int64, chatID string, limit int) ([]time.Time, error) {
			return reads, nil
		},
	}
	opt := newTestOptimizer(stats, true)

	rec, err := opt.Recommend(context.Background(), 1, "c", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 11, rec.BestHour)
	assert.Equal(t, 1, rec.BestWeekday)
}

func TestRecommendOnlyOffHoursReadsFallsBackToStatic(t *testing.T) {
	stats := &fakeStatsStore{
		readTimestamps: func(ctx context.Context, accountID int64, chatID string, limit int) ([]time.Time, error) {
			return []time.Time{time.Date(2026, 5, 11, 2, 0, 0, 0, time.UTC)}, nil
		},
	}
	opt := newTestOptimizer(stats, true)

	rec, err := opt.Recommend(context.Background(), 1, "c", time.Now())
	require.NoError(t, err)
	assert.False(t, rec.Learned)
	assert.Equal(t, 10, rec.BestHour)
}

func TestShouldSendNowDisabledAlwaysPasses(t *testing.T) {
	opt := newTestOptimizer(&fakeStatsStore{}, false)
	assert.False(t, opt.Enabled())
	assert.True(t, opt.ShouldSendNow(context.Background(), 1, "c", time.Date(2026, 5, 10, 3, 0, 0, 0, time.UTC)))
}

func TestShouldSendNowStoreErrorUsesStatic(t *testing.T) {
	stats := &fakeStatsStore{
		readTimestamps: func(ctx context.Context, accountID int64, chatID string, limit int) ([]time.Time, error) {
			return nil, errors.New("db gone")
		},
	}
	opt := newTestOptimizer(stats, true)

	monday := time.Date(2026, 5, 11, 10, 0, 0, 0, time.UTC)
	assert.True(t, opt.ShouldSendNow(context.Background(), 1, "c", monday))

	sunday := time.Date(2026, 5, 10, 22, 0, 0, 0, time.UTC)
	assert.False(t, opt.ShouldSendNow(context.Background(), 1, "c", sunday))
}
