package service

import (
	"context"
	"testing"
	"time"

	"waflow/internal/database"
	"waflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreDeltaFor(t *testing.T) {
	assert.Equal(t, 5, ScoreDeltaFor(models.RiskSeverityTemporary))
	assert.Equal(t, 10, ScoreDeltaFor(models.RiskSeverityWarning))
	assert.Equal(t, 25, ScoreDeltaFor(models.RiskSeveritySuspected))
	assert.Equal(t, 50, ScoreDeltaFor(models.RiskSeverityConfirmed))
}

func TestRecordAnomalyAppliesDelta(t *testing.T) {
	var applied *models.RiskEvent
	var gotCeiling int
	var gotForce bool

	store := &fakeRiskStore{
		applyRiskEvent: func(ctx context.Context, ev *models.RiskEvent, ceiling int, forceSuspend bool) (*database.RiskApplyResult, error) {
			applied, gotCeiling, gotForce = ev, ceiling, forceSuspend
			return &database.RiskApplyResult{NewScore: 25}, nil
		},
	}
	engine := NewRiskEngine(store, models.RiskConfig{}, nil, testLogger())

	result, err := engine.RecordAnomaly(context.Background(), 7, models.RiskSeveritySuspected, models.RiskEventBlockDetected, map[string]string{"error": "blocked"})
	require.NoError(t, err)

	assert.Equal(t, 25, result.NewScore)
	require.NotNil(t, applied)
	assert.NotEmpty(t, applied.ID)
	assert.Equal(t, int64(7), applied.AccountID)
	assert.Equal(t, 25, applied.ScoreDelta)
	assert.Equal(t, 100, gotCeiling)
	assert.False(t, gotForce)
}

func TestRecordAnomalyConfirmedForcesSuspension(t *testing.T) {
	store := &fakeRiskStore{
		applyRiskEvent: func(ctx context.Context, ev *models.RiskEvent, ceiling int, forceSuspend bool) (*database.RiskApplyResult, error) {
			assert.True(t, forceSuspend)
			return &database.RiskApplyResult{NewScore: 100, Suspended: true, PausedCampaigns: 2}, nil
		},
	}
	hub := NewEventHub()
	events, cancel := hub.Subscribe()
	defer cancel()

	engine := NewRiskEngine(store, models.RiskConfig{}, hub, testLogger())

	result, err := engine.RecordAnomaly(context.Background(), 7, models.RiskSeverityConfirmed, models.RiskEventBlockDetected, nil)
	require.NoError(t, err)
	assert.True(t, result.Suspended)

	first := <-events
	second := <-events
	assert.Equal(t, EventRiskRaised, first.Type)
	assert.Equal(t, EventAccountSuspended, second.Type)
	assert.Equal(t, "2", second.Detail["pausedCampaigns"])
}

func TestRecordAnomalyUnknownSeverity(t *testing.T) {
	engine := NewRiskEngine(&fakeRiskStore{}, models.RiskConfig{}, nil, testLogger())

	_, err := engine.RecordAnomaly(context.Background(), 7, models.RiskSeverity("bogus"), models.RiskEventBlockDetected, nil)
	assert.Error(t, err)
}

func TestRunDecaySweep(t *testing.T) {
	now := time.Date(2026, 5, 10, 3, 0, 0, 0, time.UTC)
	recent := now.Add(-2 * time.Hour)
	stale := now.Add(-48 * time.Hour)
	ancient := now.Add(-10 * 24 * time.Hour)

	candidates := []database.DecayCandidate{
		{AccountID: 1, RiskScore: 40, LastEventAt: &recent},  // inside clean window, skipped
		{AccountID: 2, RiskScore: 40, LastEventAt: &stale},   // standard decay
		{AccountID: 3, RiskScore: 40, LastEventAt: &ancient}, // bonus decay
		{AccountID: 4, RiskScore: 3, LastEventAt: &ancient},  // decay clamped to score
		{AccountID: 5, RiskScore: 0, LastEventAt: &stale},    // nothing to decay
	}

	var batch []models.RiskEvent
	store := &fakeRiskStore{
		listDecayCandidates: func(ctx context.Context) ([]database.DecayCandidate, error) {
			return candidates, nil
		},
		applyDecayBatch: func(ctx context.Context, decays []models.RiskEvent) error {
			batch = decays
			return nil
		},
	}
	engine := NewRiskEngine(store, models.RiskConfig{}, nil, testLogger())

	require.NoError(t, engine.RunDecaySweep(context.Background(), now))
	require.Len(t, batch, 3)

	byAccount := make(map[int64]models.RiskEvent)
	for _, d := range batch {
		byAccount[d.AccountID] = d
	}
	assert.Equal(t, -5, byAccount[2].ScoreDelta)
	assert.Equal(t, -10, byAccount[3].ScoreDelta)
	assert.Equal(t, -3, byAccount[4].ScoreDelta, "decay never drives the score negative")
	assert.Equal(t, models.RiskEventDecay, byAccount[2].Kind)
}

func TestRunDecaySweepNoCandidates(t *testing.T) {
	store := &fakeRiskStore{
		listDecayCandidates: func(ctx context.Context) ([]database.DecayCandidate, error) {
			return nil, nil
		},
		applyDecayBatch: func(ctx context.Context, decays []models.RiskEvent) error {
			t.Fatal("empty sweep must not write a batch")
			return nil
		},
	}
	engine := NewRiskEngine(store, models.RiskConfig{}, nil, testLogger())

	assert.NoError(t, engine.RunDecaySweep(context.Background(), time.Now()))
}

func TestResetRisk(t *testing.T) {
	var gotOperator string
	store := &fakeRiskStore{
		resetRiskScore: func(ctx context.Context, accountID int64, eventID, operator string) error {
			assert.NotEmpty(t, eventID)
			gotOperator = operator
			return nil
		},
	}
	engine := NewRiskEngine(store, models.RiskConfig{}, nil, testLogger())

	require.NoError(t, engine.ResetRisk(context.Background(), 7, "alex"))
	assert.Equal(t, "alex", gotOperator)
}
