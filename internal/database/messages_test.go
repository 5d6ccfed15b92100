package database

import (
	"context"
	"testing"
	"time"

	"waflow/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedMessage creates a pending message for the campaign's first pending
// recipient and returns it.
func seedMessage(t *testing.T, db *Database, accountID int64, campaign *models.Campaign, body string) *models.Message {
	t.Helper()
	ctx := context.Background()

	recipients, err := db.GetPendingRecipients(ctx, campaign.ID, 1)
	require.NoError(t, err)
	require.NotEmpty(t, recipients)

	msg := &models.Message{
		ID:          uuid.New().String(),
		AccountID:   accountID,
		CampaignID:  campaign.ID,
		RecipientID: recipients[0].ID,
		ChatID:      recipients[0].ChatID,
		Body:        body,
		ContentHash: uuid.New().String(),
	}
	require.NoError(t, db.CreateMessage(ctx, msg))
	return msg
}

func TestMarkMessageSentCommitsOutcome(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()
	account := createTestAccount(t, db)
	campaign := createRunningCampaign(t, db, account.ID, "1@c.us", "2@c.us")
	msg := seedMessage(t, db, account.ID, campaign, "hello")

	require.NoError(t, db.MarkMessageSent(ctx, msg.ID, "gw-1", testTime()))

	got, err := db.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusSent, got.Status)
	require.NotNil(t, got.GatewayMessageID)
	assert.Equal(t, "gw-1", *got.GatewayMessageID)
	require.NotNil(t, got.SentAt)

	campaign, err = db.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, campaign.SentCount)

	_, pending, err := db.CountRecipients(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, pending, "the sent recipient left the queue")

	// Only pending messages can be marked sent.
	err = db.MarkMessageSent(ctx, msg.ID, "gw-2", testTime())
	require.Error(t, err)
}

func TestMarkMessageFailedCommitsOutcome(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()
	account := createTestAccount(t, db)
	campaign := createRunningCampaign(t, db, account.ID, "1@c.us")
	msg := seedMessage(t, db, account.ID, campaign, "hello")

	require.NoError(t, db.MarkMessageFailed(ctx, msg.ID, "gateway timeout"))

	got, err := db.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusFailed, got.Status)
	require.NotNil(t, got.FailureReason)
	assert.Equal(t, "gateway timeout", *got.FailureReason)

	campaign, err = db.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, campaign.FailedCount)
}

func TestGetMessageByGatewayID(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()
	account := createTestAccount(t, db)
	campaign := createRunningCampaign(t, db, account.ID, "1@c.us")
	msg := seedMessage(t, db, account.ID, campaign, "hello")
	require.NoError(t, db.MarkMessageSent(ctx, msg.ID, "gw-1", testTime()))

	got, err := db.GetMessageByGatewayID(ctx, "gw-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, models.MessageStatusSent, got.Status)

	// Acks from messages sent outside the governor resolve to nil.
	unknown, err := db.GetMessageByGatewayID(ctx, "gw-unknown")
	require.NoError(t, err)
	assert.Nil(t, unknown)

	// A sent message can still fail on a late gateway error report.
	require.NoError(t, db.MarkMessageFailed(ctx, msg.ID, "gateway reported send error"))
	got, err = db.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusFailed, got.Status)
}

func TestAdvanceMessageStatus(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()
	account := createTestAccount(t, db)
	campaign := createRunningCampaign(t, db, account.ID, "1@c.us")
	msg := seedMessage(t, db, account.ID, campaign, "hello")
	require.NoError(t, db.MarkMessageSent(ctx, msg.ID, "gw-1", testTime()))

	ackAt := testTime().Add(time.Minute)
	require.NoError(t, db.AdvanceMessageStatus(ctx, "gw-1", models.MessageStatusDelivered, ackAt))

	got, err := db.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusDelivered, got.Status)
	require.NotNil(t, got.DeliveredAt)

	// A repeated ack is a silent no-op.
	require.NoError(t, db.AdvanceMessageStatus(ctx, "gw-1", models.MessageStatusDelivered, ackAt))

	require.NoError(t, db.AdvanceMessageStatus(ctx, "gw-1", models.MessageStatusRead, ackAt.Add(time.Minute)))
	got, err = db.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusRead, got.Status)
	require.NotNil(t, got.ReadAt)

	// Regressions are rejected.
	err = db.AdvanceMessageStatus(ctx, "gw-1", models.MessageStatusDelivered, ackAt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal message transition")

	err = db.AdvanceMessageStatus(ctx, "unknown", models.MessageStatusDelivered, ackAt)
	require.Error(t, err)
}

func TestAdvanceMessageStatusReadBackfillsDelivered(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()
	account := createTestAccount(t, db)
	campaign := createRunningCampaign(t, db, account.ID, "1@c.us")
	msg := seedMessage(t, db, account.ID, campaign, "hello")
	require.NoError(t, db.MarkMessageSent(ctx, msg.ID, "gw-1", testTime()))

	// Read arrives without an intermediate delivered ack.
	require.NoError(t, db.AdvanceMessageStatus(ctx, "gw-1", models.MessageStatusRead, testTime().Add(time.Minute)))

	got, err := db.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusRead, got.Status)
	assert.NotNil(t, got.DeliveredAt)
	assert.NotNil(t, got.ReadAt)
}

func TestCountSentToday(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()
	account := createTestAccount(t, db)
	campaign := createRunningCampaign(t, db, account.ID, "1@c.us", "2@c.us", "3@c.us")

	sent := seedMessage(t, db, account.ID, campaign, "a")
	require.NoError(t, db.MarkMessageSent(ctx, sent.ID, "gw-1", time.Now()))

	failed := seedMessage(t, db, account.ID, campaign, "b")
	require.NoError(t, db.MarkMessageFailed(ctx, failed.ID, "boom"))

	seedMessage(t, db, account.ID, campaign, "c") // stays pending

	count, err := db.CountSentToday(ctx, account.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, count, "failed and pending attempts do not consume quota")
}

func TestCountRecentByHash(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()
	account := createTestAccount(t, db)
	campaign := createRunningCampaign(t, db, account.ID, "1@c.us", "2@c.us")

	hash := "shared-hash"
	for i := 0; i < 2; i++ {
		recipients, err := db.GetPendingRecipients(ctx, campaign.ID, 10)
		require.NoError(t, err)
		msg := &models.Message{
			ID:          uuid.New().String(),
			AccountID:   account.ID,
			CampaignID:  campaign.ID,
			RecipientID: recipients[i].ID,
			ChatID:      recipients[i].ChatID,
			Body:        "same text",
			ContentHash: hash,
		}
		require.NoError(t, db.CreateMessage(ctx, msg))
	}

	count, err := db.CountRecentByHash(ctx, account.ID, hash, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = db.CountRecentByHash(ctx, account.ID, "other-hash", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCountStalePending(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()
	account := createTestAccount(t, db)
	campaign := createRunningCampaign(t, db, account.ID, "1@c.us")
	seedMessage(t, db, account.ID, campaign, "stuck")

	count, err := db.CountStalePending(ctx, account.ID, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = db.CountStalePending(ctx, account.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMarkMessageReplied(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()
	account := createTestAccount(t, db)
	campaign := createRunningCampaign(t, db, account.ID, "1@c.us")
	msg := seedMessage(t, db, account.ID, campaign, "hello")
	require.NoError(t, db.MarkMessageSent(ctx, msg.ID, "gw-1", testTime()))

	require.NoError(t, db.MarkMessageReplied(ctx, account.ID, "1@c.us"))

	got, err := db.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, got.Replied)
}
