package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"waflow/internal/models"

	"github.com/stretchr/testify/require"
)

func testTime() time.Time {
	return time.Date(2026, 5, 11, 12, 0, 0, 0, time.UTC)
}

func setupTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "waflow-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createTestAccount(t *testing.T, db *Database) *models.Account {
	t.Helper()
	account, err := db.CreateAccount(context.Background(), "test account", "test-session")
	require.NoError(t, err)
	return account
}

func createRunningCampaign(t *testing.T, db *Database, accountID int64, chatIDs ...string) *models.Campaign {
	t.Helper()
	ctx := context.Background()

	campaign, err := db.CreateCampaign(ctx, accountID, "test campaign", "Hello {{name}}")
	require.NoError(t, err)

	recipients := make([]models.Recipient, len(chatIDs))
	for i, chatID := range chatIDs {
		recipients[i] = models.Recipient{ChatID: chatID}
	}
	if len(recipients) > 0 {
		require.NoError(t, db.AddRecipients(ctx, campaign.ID, recipients))
	}

	require.NoError(t, db.StartCampaign(ctx, campaign.ID, testTime()))
	campaign, err = db.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	return campaign
}

func TestNewRejectsBadPath(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
}
