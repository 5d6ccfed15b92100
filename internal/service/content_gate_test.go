package service

import (
	"strings"
	"testing"

	"waflow/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestContentGateAssess(t *testing.T) {
	gate := NewContentGate(models.ContentGateConfig{})

	tests := []struct {
		name      string
		text      string
		wantScore int
		wantLevel ContentRiskLevel
		blocked   bool
	}{
		{
			name:      "plain message",
			text:      "Hi Maria, your order shipped this morning.",
			wantScore: 0,
			wantLevel: ContentRiskSafe,
			blocked:   false,
		},
		{
			name:      "single link",
			text:      "Track it here: https://example.com/track",
			wantScore: 15,
			wantLevel: ContentRiskLow,
			blocked:   false,
		},
		{
			name:      "links and phone numbers",
			text:      "Visit https://a.example http://b.example www.c.example or call +1 555 123 4567 or +44 20 7946 0958",
			wantScore: 65,
			wantLevel: ContentRiskHigh,
			blocked:   true,
		},
		{
			name:      "too short",
			text:      "ok",
			wantScore: 5,
			wantLevel: ContentRiskSafe,
			blocked:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := gate.Assess(tt.text)
			assert.Equal(t, tt.wantScore, got.Score)
			assert.Equal(t, tt.wantLevel, got.Level)
			assert.Equal(t, tt.blocked, got.Blocked)
		})
	}
}

func TestContentGateCapsAndKeywords(t *testing.T) {
	gate := NewContentGate(models.ContentGateConfig{})

	got := gate.Assess("CONGRATULATIONS YOU ARE A WINNER ACT NOW")
	// caps 10 + three capped keyword hits at 8 each
	assert.Equal(t, 34, got.Score)
	assert.True(t, got.Blocked)
	assert.Equal(t, ContentRiskMedium, got.Level)
}

func TestContentGateScoreClamp(t *testing.T) {
	gate := NewContentGate(models.ContentGateConfig{})

	text := strings.Repeat("https://spam.example ", 10)
	got := gate.Assess(text)
	assert.Equal(t, 100, got.Score)
	assert.Equal(t, ContentRiskCritical, got.Level)
}

func TestContentGateCustomThreshold(t *testing.T) {
	gate := NewContentGate(models.ContentGateConfig{BlockThreshold: 50})

	got := gate.Assess("Check https://example.com and https://other.example")
	assert.Equal(t, 30, got.Score)
	assert.False(t, got.Blocked)
}
