package service

import (
	"context"
	"time"

	"waflow/internal/database"
	"waflow/internal/models"
	"waflow/pkg/whatsapp/types"
)

// AccountStore is the account state the governor reads and owns.
type AccountStore interface {
	GetAccount(ctx context.Context, id int64) (*models.Account, error)
	GetAccountBySession(ctx context.Context, sessionName string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)
	UpdateAccountStatus(ctx context.Context, id int64, status models.AccountStatus) error
	SetAccountConnected(ctx context.Context, id int64, at time.Time) error
	SetAccountOffline(ctx context.Context, id int64) error
	SetDailyLimitOverride(ctx context.Context, id int64, limit *int) error
	TouchAccountActivity(ctx context.Context, id int64, at time.Time) error
}

// CampaignStore covers campaign and recipient state for dispatching.
type CampaignStore interface {
	GetCampaign(ctx context.Context, id int64) (*models.Campaign, error)
	ListDispatchableCampaigns(ctx context.Context) ([]models.Campaign, error)
	UpdateCampaignStatus(ctx context.Context, id int64, status models.CampaignStatus) error
	StartCampaign(ctx context.Context, id int64, at time.Time) error
	CompleteCampaignIfDone(ctx context.Context, id int64) (bool, error)
	GetPendingRecipients(ctx context.Context, campaignID int64, limit int) ([]models.Recipient, error)
	CountRecipients(ctx context.Context, campaignID int64) (total, pending int, err error)
	MarkRecipientBlocked(ctx context.Context, recipientID int64, reason string) error
}

// MessageStore records send attempts and their outcomes.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *models.Message) error
	MarkMessageSent(ctx context.Context, messageID string, gatewayMessageID string, at time.Time) error
	MarkMessageFailed(ctx context.Context, messageID string, reason string) error
	AdvanceMessageStatus(ctx context.Context, gatewayMessageID string, next models.MessageStatus, at time.Time) error
	GetMessageByGatewayID(ctx context.Context, gatewayMessageID string) (*models.Message, error)
	MarkMessageReplied(ctx context.Context, accountID int64, chatID string) error
	CountSentToday(ctx context.Context, accountID int64, now time.Time) (int, error)
	CountRecentByHash(ctx context.Context, accountID int64, contentHash string, since time.Time) (int, error)
	RecentDistinctBodies(ctx context.Context, accountID int64, since time.Time, limit int) ([]string, error)
	RecentOutcomes(ctx context.Context, accountID int64, limit int) ([]models.MessageOutcome, error)
	OutcomesSince(ctx context.Context, accountID int64, since time.Time) ([]models.MessageOutcome, error)
	CountStalePending(ctx context.Context, accountID int64, cutoff time.Time) (int, error)
}

// RiskStore is the append-only risk-event log plus the score mutations
// that ride in the same transaction.
type RiskStore interface {
	ApplyRiskEvent(ctx context.Context, ev *models.RiskEvent, ceiling int, forceSuspend bool) (*database.RiskApplyResult, error)
	ResetRiskScore(ctx context.Context, accountID int64, eventID string, operator string) error
	LatestRiskEventAt(ctx context.Context, accountID int64) (*time.Time, error)
	ListRiskEvents(ctx context.Context, accountID int64, limit int) ([]models.RiskEvent, error)
	ListDecayCandidates(ctx context.Context) ([]database.DecayCandidate, error)
	ApplyDecayBatch(ctx context.Context, decays []models.RiskEvent) error
}

// PeerStore holds per-peer engagement state.
type PeerStore interface {
	UpsertPeer(ctx context.Context, peer *models.Peer) error
	GetPeer(ctx context.Context, accountID int64, chatID string) (*models.Peer, error)
	RecordPeerReply(ctx context.Context, accountID int64, chatID string, score int, at time.Time) error
	SetPeerEngagementScore(ctx context.Context, peerID int64, score int) error
	SetPeerLastOutbound(ctx context.Context, accountID int64, chatID string, at time.Time) error
	IncrementPeerReadCount(ctx context.Context, accountID int64, chatID string) error
	SetPeerValidated(ctx context.Context, accountID int64, chatID string, validated bool) error
	SoftDeletePeer(ctx context.Context, accountID int64, chatID string) error
	ListTopPeers(ctx context.Context, accountID int64, limit int) ([]models.Peer, error)
	ListPeerChatIDs(ctx context.Context, accountID int64) ([]string, error)
	CountPeersByTier(ctx context.Context, accountID int64) (map[models.EngagementTier]int, error)
}

// StatsStore exposes the aggregate views behind health and timing.
type StatsStore interface {
	GetWindowStats(ctx context.Context, accountID int64, since time.Time) (*database.WindowStats, error)
	ReadTimestamps(ctx context.Context, accountID int64, chatID string, limit int) ([]time.Time, error)
	ActivityHeatmap(ctx context.Context, accountID int64, since time.Time) ([]database.HeatmapCell, error)
}

// GatewayProvider hands out a gateway client scoped to one session.
// Implementations may cache clients and wrap them in a circuit breaker.
type GatewayProvider interface {
	ClientFor(sessionName string) types.GatewayClient
}
