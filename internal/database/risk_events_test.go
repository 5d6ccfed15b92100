package database

import (
	"context"
	"testing"

	"waflow/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func riskEvent(accountID int64, delta int) *models.RiskEvent {
	return &models.RiskEvent{
		ID:         uuid.New().String(),
		AccountID:  accountID,
		Kind:       models.RiskEventBlockDetected,
		Severity:   models.RiskSeverityWarning,
		ScoreDelta: delta,
		Metadata:   map[string]string{"source": "test"},
	}
}

func TestApplyRiskEventBelowCeiling(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()
	account := createTestAccount(t, db)

	result, err := db.ApplyRiskEvent(ctx, riskEvent(account.ID, 10), 100, false)
	require.NoError(t, err)
	assert.Equal(t, 10, result.NewScore)
	assert.False(t, result.Suspended)

	got, err := db.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.RiskScore)
	assert.Equal(t, models.AccountStatusPending, got.Status)
}

func TestApplyRiskEventSuspendsAtCeiling(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()
	account := createTestAccount(t, db)
	require.NoError(t, db.SetAccountConnected(ctx, account.ID, testTime()))

	running := createRunningCampaign(t, db, account.ID, "1@c.us")
	other := createRunningCampaign(t, db, account.ID, "2@c.us")
	draft, err := db.CreateCampaign(ctx, account.ID, "draft", "Hi")
	require.NoError(t, err)

	result, err := db.ApplyRiskEvent(ctx, riskEvent(account.ID, 120), 100, false)
	require.NoError(t, err)
	assert.Equal(t, 100, result.NewScore, "the score clamps at 100")
	assert.True(t, result.Suspended)
	assert.Equal(t, int64(2), result.PausedCampaigns)

	got, err := db.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusSuspended, got.Status)

	for _, id := range []int64{running.ID, other.ID} {
		campaign, err := db.GetCampaign(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.CampaignStatusPaused, campaign.Status)
	}
	campaign, err := db.GetCampaign(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusDraft, campaign.Status, "only running campaigns pause")
}

func TestApplyRiskEventForcedSuspension(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()
	account := createTestAccount(t, db)

	// A confirmed block suspends regardless of the numeric score.
	result, err := db.ApplyRiskEvent(ctx, riskEvent(account.ID, 50), 100, true)
	require.NoError(t, err)
	assert.Equal(t, 50, result.NewScore)
	assert.True(t, result.Suspended)
}

func TestApplyRiskEventUnknownAccount(t *testing.T) {
	db := setupTestDatabase(t)
	_, err := db.ApplyRiskEvent(context.Background(), riskEvent(42, 10), 100, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no account found")
}

func TestResetRiskScore(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()
	account := createTestAccount(t, db)

	_, err := db.ApplyRiskEvent(ctx, riskEvent(account.ID, 40), 100, false)
	require.NoError(t, err)

	require.NoError(t, db.ResetRiskScore(ctx, account.ID, uuid.New().String(), "alice"))

	got, err := db.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Zero(t, got.RiskScore)

	events, err := db.ListRiskEvents(ctx, account.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	var reset *models.RiskEvent
	for i := range events {
		if events[i].Kind == models.RiskEventManualReset {
			reset = &events[i]
		}
	}
	require.NotNil(t, reset)
	assert.Equal(t, -40, reset.ScoreDelta)
	assert.Equal(t, "alice", reset.Metadata["operator"])
}

func TestDecaySweepRoundTrip(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()
	account := createTestAccount(t, db)
	createTestAccountNamed(t, db, "clean", "clean-session")

	_, err := db.ApplyRiskEvent(ctx, riskEvent(account.ID, 30), 100, false)
	require.NoError(t, err)

	candidates, err := db.ListDecayCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, candidates, 1, "zero-score accounts are not candidates")
	assert.Equal(t, account.ID, candidates[0].AccountID)
	assert.Equal(t, 30, candidates[0].RiskScore)
	require.NotNil(t, candidates[0].LastEventAt)

	decay := &models.RiskEvent{
		ID:         uuid.New().String(),
		AccountID:  account.ID,
		Kind:       models.RiskEventDecay,
		Severity:   models.RiskSeverityTemporary,
		ScoreDelta: -5,
	}
	require.NoError(t, db.ApplyDecayBatch(ctx, []models.RiskEvent{*decay}))

	got, err := db.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, got.RiskScore)

	at, err := db.LatestRiskEventAt(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, at)

	// The account still decays tomorrow: it remains a candidate with a
	// positive score.
	candidates, err = db.ListDecayCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, 25, candidates[0].RiskScore)
}

func TestApplyDecayBatchEmpty(t *testing.T) {
	db := setupTestDatabase(t)
	assert.NoError(t, db.ApplyDecayBatch(context.Background(), nil))
}

func createTestAccountNamed(t *testing.T, db *Database, name, session string) *models.Account {
	t.Helper()
	account, err := db.CreateAccount(context.Background(), name, session)
	require.NoError(t, err)
	return account
}
