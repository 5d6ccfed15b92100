package database

import (
	"context"
	"testing"
	"time"

	"waflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGetAccount(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	account := createTestAccount(t, db)
	assert.Equal(t, "test account", account.Name)
	assert.Equal(t, "test-session", account.SessionName)
	assert.Equal(t, models.AccountStatusPending, account.Status)
	assert.Zero(t, account.RiskScore)
	assert.Nil(t, account.ConnectedAt)

	bySession, err := db.GetAccountBySession(ctx, "test-session")
	require.NoError(t, err)
	require.NotNil(t, bySession)
	assert.Equal(t, account.ID, bySession.ID)

	missing, err := db.GetAccount(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSetAccountConnectedPreservesFirstTimestamp(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()
	account := createTestAccount(t, db)

	first := testTime()
	require.NoError(t, db.SetAccountConnected(ctx, account.ID, first))

	got, err := db.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusActive, got.Status)
	require.NotNil(t, got.ConnectedAt)
	assert.WithinDuration(t, first, *got.ConnectedAt, time.Second)

	// A reconnect a week later must not reset the warmup clock.
	require.NoError(t, db.SetAccountConnected(ctx, account.ID, first.Add(7*24*time.Hour)))
	got, err = db.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, first, *got.ConnectedAt, time.Second)
}

func TestSetAccountOffline(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()
	account := createTestAccount(t, db)

	require.NoError(t, db.SetAccountConnected(ctx, account.ID, testTime()))
	require.NoError(t, db.SetAccountOffline(ctx, account.ID))

	got, err := db.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusOffline, got.Status)
	assert.Nil(t, got.ConnectedAt, "losing the session zeroes the send quota")
}

func TestSetAccountOfflineLeavesSuspended(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()
	account := createTestAccount(t, db)

	require.NoError(t, db.UpdateAccountStatus(ctx, account.ID, models.AccountStatusSuspended))
	require.NoError(t, db.SetAccountOffline(ctx, account.ID))

	got, err := db.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusSuspended, got.Status)
}

func TestSetDailyLimitOverride(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()
	account := createTestAccount(t, db)

	limit := 25
	require.NoError(t, db.SetDailyLimitOverride(ctx, account.ID, &limit))
	got, err := db.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DailyLimitOverride)
	assert.Equal(t, 25, *got.DailyLimitOverride)

	require.NoError(t, db.SetDailyLimitOverride(ctx, account.ID, nil))
	got, err = db.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DailyLimitOverride)
}

func TestUpdateAccountStatusUnknownID(t *testing.T) {
	db := setupTestDatabase(t)
	err := db.UpdateAccountStatus(context.Background(), 42, models.AccountStatusActive)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no account found")
}

func TestListAccounts(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	_, err := db.CreateAccount(ctx, "first", "session-a")
	require.NoError(t, err)
	_, err = db.CreateAccount(ctx, "second", "session-b")
	require.NoError(t, err)

	accounts, err := db.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "first", accounts[0].Name)
	assert.Equal(t, "second", accounts[1].Name)
}
