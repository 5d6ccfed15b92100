package service

import (
	"context"
	"testing"
	"time"

	"waflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "hello world", NormalizeText("  Hello   \n\tWORLD  "))
	assert.Equal(t, "", NormalizeText("   \n  "))
}

func TestContentHashIgnoresFormatting(t *testing.T) {
	assert.Equal(t, ContentHash("Hello World"), ContentHash("hello\n\nworld"))
	assert.NotEqual(t, ContentHash("hello world"), ContentHash("hello worlds"))
}

func TestDuplicateGateRepeatCap(t *testing.T) {
	tests := []struct {
		name        string
		recentCount int
		blocked     bool
	}{
		{"first send", 0, false},
		{"fifth identical send allowed", 4, false},
		{"sixth identical send blocked", 5, true},
		{"well past the cap", 9, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeMessageStore{
				countRecentByHash: func(ctx context.Context, accountID int64, hash string, since time.Time) (int, error) {
					return tt.recentCount, nil
				},
				recentDistinctBodies: func(ctx context.Context, accountID int64, since time.Time, limit int) ([]string, error) {
					return nil, nil
				},
			}
			gate := NewDuplicateGate(store, models.DuplicateGateConfig{})

			got, err := gate.Check(context.Background(), 1, "hello there", time.Now())
			require.NoError(t, err)
			assert.Equal(t, tt.recentCount, got.RecentCount)
			assert.Equal(t, tt.blocked, got.Blocked)
		})
	}
}

func TestDuplicateGateNearDuplicateAdvisory(t *testing.T) {
	store := &fakeMessageStore{
		countRecentByHash: func(ctx context.Context, accountID int64, hash string, since time.Time) (int, error) {
			return 0, nil
		},
		recentDistinctBodies: func(ctx context.Context, accountID int64, since time.Time, limit int) ([]string, error) {
			return []string{"hello there friend zzz"}, nil
		},
	}
	gate := NewDuplicateGate(store, models.DuplicateGateConfig{})

	got, err := gate.Check(context.Background(), 1, "hello there friend zzy", time.Now())
	require.NoError(t, err)
	assert.True(t, got.NearDuplicate)
	assert.False(t, got.Blocked, "near duplicates are advisory only")
	assert.Greater(t, got.Similarity, 0.9)
}

func TestDuplicateGateDistinctBodies(t *testing.T) {
	store := &fakeMessageStore{
		countRecentByHash: func(ctx context.Context, accountID int64, hash string, since time.Time) (int, error) {
			return 0, nil
		},
		recentDistinctBodies: func(ctx context.Context, accountID int64, since time.Time, limit int) ([]string, error) {
			return []string{"a completely different promotional text"}, nil
		},
	}
	gate := NewDuplicateGate(store, models.DuplicateGateConfig{})

	got, err := gate.Check(context.Background(), 1, "short greeting", time.Now())
	require.NoError(t, err)
	assert.False(t, got.NearDuplicate)
	assert.False(t, got.Blocked)
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"same", "same", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshtein([]rune(tt.a), []rune(tt.b)))
	}
}
