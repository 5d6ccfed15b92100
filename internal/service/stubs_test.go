package service

import (
	"context"
	"io"
	"time"

	"waflow/internal/database"
	"waflow/internal/models"
	"waflow/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
)

// Function-field fakes for the store interfaces. Tests set only the
// functions they exercise; an unset function means the call path under
// test should never reach it.

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeMessageStore struct {
	createMessage        func(ctx context.Context, msg *models.Message) error
	markMessageSent      func(ctx context.Context, messageID, gatewayMessageID string, at time.Time) error
	markMessageFailed    func(ctx context.Context, messageID, reason string) error
	advanceMessageStatus func(ctx context.Context, gatewayMessageID string, next models.MessageStatus, at time.Time) error
	getMessageByGateway  func(ctx context.Context, gatewayMessageID string) (*models.Message, error)
	markMessageReplied   func(ctx context.Context, accountID int64, chatID string) error
	countSentToday       func(ctx context.Context, accountID int64, now time.Time) (int, error)
	countRecentByHash    func(ctx context.Context, accountID int64, contentHash string, since time.Time) (int, error)
	recentDistinctBodies func(ctx context.Context, accountID int64, since time.Time, limit int) ([]string, error)
	recentOutcomes       func(ctx context.Context, accountID int64, limit int) ([]models.MessageOutcome, error)
	outcomesSince        func(ctx context.Context, accountID int64, since time.Time) ([]models.MessageOutcome, error)
	countStalePending    func(ctx context.Context, accountID int64, cutoff time.Time) (int, error)
}

func (f *fakeMessageStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	return f.createMessage(ctx, msg)
}

func (f *fakeMessageStore) MarkMessageSent(ctx context.Context, messageID, gatewayMessageID string, at time.Time) error {
	return f.markMessageSent(ctx, messageID, gatewayMessageID, at)
}

func (f *fakeMessageStore) MarkMessageFailed(ctx context.Context, messageID, reason string) error {
	return f.markMessageFailed(ctx, messageID, reason)
}

func (f *fakeMessageStore) AdvanceMessageStatus(ctx context.Context, gatewayMessageID string, next models.MessageStatus, at time.Time) error {
	return f.advanceMessageStatus(ctx, gatewayMessageID, next, at)
}

func (f *fakeMessageStore) GetMessageByGatewayID(ctx context.Context, gatewayMessageID string) (*models.Message, error) {
	return f.getMessageByGateway(ctx, gatewayMessageID)
}

func (f *fakeMessageStore) MarkMessageReplied(ctx context.Context, accountID int64, chatID string) error {
	return f.markMessageReplied(ctx, accountID, chatID)
}

func (f *fakeMessageStore) CountSentToday(ctx context.Context, accountID int64, now time.Time) (int, error) {
	return f.countSentToday(ctx, accountID, now)
}

func (f *fakeMessageStore) CountRecentByHash(ctx context.Context, accountID int64, contentHash string, since time.Time) (int, error) {
	return f.countRecentByHash(ctx, accountID, contentHash, since)
}

func (f *fakeMessageStore) RecentDistinctBodies(ctx context.Context, accountID int64, since time.Time, limit int) ([]string, error) {
	return f.recentDistinctBodies(ctx, accountID, since, limit)
}

func (f *fakeMessageStore) RecentOutcomes(ctx context.Context, accountID int64, limit int) ([]models.MessageOutcome, error) {
	return f.recentOutcomes(ctx, accountID, limit)
}

func (f *fakeMessageStore) OutcomesSince(ctx context.Context, accountID int64, since time.Time) ([]models.MessageOutcome, error) {
	return f.outcomesSince(ctx, accountID, since)
}

func (f *fakeMessageStore) CountStalePending(ctx context.Context, accountID int64, cutoff time.Time) (int, error) {
	return f.countStalePending(ctx, accountID, cutoff)
}

type fakeRiskStore struct {
	applyRiskEvent      func(ctx context.Context, ev *models.RiskEvent, ceiling int, forceSuspend bool) (*database.RiskApplyResult, error)
	resetRiskScore      func(ctx context.Context, accountID int64, eventID, operator string) error
	latestRiskEventAt   func(ctx context.Context, accountID int64) (*time.Time, error)
	listRiskEvents      func(ctx context.Context, accountID int64, limit int) ([]models.RiskEvent, error)
	listDecayCandidates func(ctx context.Context) ([]database.DecayCandidate, error)
	applyDecayBatch     func(ctx context.Context, decays []models.RiskEvent) error
}

func (f *fakeRiskStore) ApplyRiskEvent(ctx context.Context, ev *models.RiskEvent, ceiling int, forceSuspend bool) (*database.RiskApplyResult, error) {
	return f.applyRiskEvent(ctx, ev, ceiling, forceSuspend)
}

func (f *fakeRiskStore) ResetRiskScore(ctx context.Context, accountID int64, eventID, operator string) error {
	return f.resetRiskScore(ctx, accountID, eventID, operator)
}

func (f *fakeRiskStore) LatestRiskEventAt(ctx context.Context, accountID int64) (*time.Time, error) {
	return f.latestRiskEventAt(ctx, accountID)
}

func (f *fakeRiskStore) ListRiskEvents(ctx context.Context, accountID int64, limit int) ([]models.RiskEvent, error) {
	return f.listRiskEvents(ctx, accountID, limit)
}

func (f *fakeRiskStore) ListDecayCandidates(ctx context.Context) ([]database.DecayCandidate, error) {
	return f.listDecayCandidates(ctx)
}

func (f *fakeRiskStore) ApplyDecayBatch(ctx context.Context, decays []models.RiskEvent) error {
	return f.applyDecayBatch(ctx, decays)
}

type fakePeerStore struct {
	upsertPeer             func(ctx context.Context, peer *models.Peer) error
	getPeer                func(ctx context.Context, accountID int64, chatID string) (*models.Peer, error)
	recordPeerReply        func(ctx context.Context, accountID int64, chatID string, score int, at time.Time) error
	setPeerEngagementScore func(ctx context.Context, peerID int64, score int) error
	setPeerLastOutbound    func(ctx context.Context, accountID int64, chatID string, at time.Time) error
	incrementPeerReadCount func(ctx context.Context, accountID int64, chatID string) error
	setPeerValidated       func(ctx context.Context, accountID int64, chatID string, validated bool) error
	softDeletePeer         func(ctx context.Context, accountID int64, chatID string) error
	listTopPeers           func(ctx context.Context, accountID int64, limit int) ([]models.Peer, error)
	listPeerChatIDs        func(ctx context.Context, accountID int64) ([]string, error)
	countPeersByTier       func(ctx context.Context, accountID int64) (map[models.EngagementTier]int, error)
}

func (f *fakePeerStore) UpsertPeer(ctx context.Context, peer *models.Peer) error {
	return f.upsertPeer(ctx, peer)
}

func (f *fakePeerStore) GetPeer(ctx context.Context, accountID int64, chatID string) (*models.Peer, error) {
	return f.getPeer(ctx, accountID, chatID)
}

func (f *fakePeerStore) RecordPeerReply(ctx context.Context, accountID int64, chatID string, score int, at time.Time) error {
	return f.recordPeerReply(ctx, accountID, chatID, score, at)
}

func (f *fakePeerStore) SetPeerEngagementScore(ctx context.Context, peerID int64, score int) error {
	return f.setPeerEngagementScore(ctx, peerID, score)
}

func (f *fakePeerStore) SetPeerLastOutbound(ctx context.Context, accountID int64, chatID string, at time.Time) error {
	return f.setPeerLastOutbound(ctx, accountID, chatID, at)
}

func (f *fakePeerStore) IncrementPeerReadCount(ctx context.Context, accountID int64, chatID string) error {
	return f.incrementPeerReadCount(ctx, accountID, chatID)
}

func (f *fakePeerStore) SetPeerValidated(ctx context.Context, accountID int64, chatID string, validated bool) error {
	return f.setPeerValidated(ctx, accountID, chatID, validated)
}

func (f *fakePeerStore) SoftDeletePeer(ctx context.Context, accountID int64, chatID string) error {
	return f.softDeletePeer(ctx, accountID, chatID)
}

func (f *fakePeerStore) ListTopPeers(ctx context.Context, accountID int64, limit int) ([]models.Peer, error) {
	return f.listTopPeers(ctx, accountID, limit)
}

func (f *fakePeerStore) ListPeerChatIDs(ctx context.Context, accountID int64) ([]string, error) {
	return f.listPeerChatIDs(ctx, accountID)
}

func (f *fakePeerStore) CountPeersByTier(ctx context.Context, accountID int64) (map[models.EngagementTier]int, error) {
	return f.countPeersByTier(ctx, accountID)
}

type fakeAccountStore struct {
	getAccount            func(ctx context.Context, id int64) (*models.Account, error)
	getAccountBySession   func(ctx context.Context, sessionName string) (*models.Account, error)
	listAccounts          func(ctx context.Context) ([]models.Account, error)
	updateAccountStatus   func(ctx context.Context, id int64, status models.AccountStatus) error
	setAccountConnected   func(ctx context.Context, id int64, at time.Time) error
	setAccountOffline     func(ctx context.Context, id int64) error
	setDailyLimitOverride func(ctx context.Context, id int64, limit *int) error
	touchAccountActivity  func(ctx context.Context, id int64, at time.Time) error
}

func (f *fakeAccountStore) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	return f.getAccount(ctx, id)
}

func (f *fakeAccountStore) GetAccountBySession(ctx context.Context, sessionName string) (*models.Account, error) {
	return f.getAccountBySession(ctx, sessionName)
}

func (f *fakeAccountStore) ListAccounts(ctx context.Context) ([]models.Account, error) {
	return f.listAccounts(ctx)
}

func (f *fakeAccountStore) UpdateAccountStatus(ctx context.Context, id int64, status models.AccountStatus) error {
	return f.updateAccountStatus(ctx, id, status)
}

func (f *fakeAccountStore) SetAccountConnected(ctx context.Context, id int64, at time.Time) error {
	return f.setAccountConnected(ctx, id, at)
}

func (f *fakeAccountStore) SetAccountOffline(ctx context.Context, id int64) error {
	return f.setAccountOffline(ctx, id)
}

func (f *fakeAccountStore) SetDailyLimitOverride(ctx context.Context, id int64, limit *int) error {
	return f.setDailyLimitOverride(ctx, id, limit)
}

func (f *fakeAccountStore) TouchAccountActivity(ctx context.Context, id int64, at time.Time) error {
	return f.touchAccountActivity(ctx, id, at)
}

type fakeStatsStore struct {
	getWindowStats  func(ctx context.Context, accountID int64, since time.Time) (*database.WindowStats, error)
	readTimestamps  func(ctx context.Context, accountID int64, chatID string, limit int) ([]time.Time, error)
	activityHeatmap func(ctx context.Context, accountID int64, since time.Time) ([]database.HeatmapCell, error)
}

func (f *fakeStatsStore) GetWindowStats(ctx context.Context, accountID int64, since time.Time) (*database.WindowStats, error) {
	return f.getWindowStats(ctx, accountID, since)
}

func (f *fakeStatsStore) ReadTimestamps(ctx context.Context, accountID int64, chatID string, limit int) ([]time.Time, error) {
	return f.readTimestamps(ctx, accountID, chatID, limit)
}

func (f *fakeStatsStore) ActivityHeatmap(ctx context.Context, accountID int64, since time.Time) ([]database.HeatmapCell, error) {
	return f.activityHeatmap(ctx, accountID, since)
}

type fakeCampaignStore struct {
	getCampaign               func(ctx context.Context, id int64) (*models.Campaign, error)
	listDispatchableCampaigns func(ctx context.Context) ([]models.Campaign, error)
	updateCampaignStatus      func(ctx context.Context, id int64, status models.CampaignStatus) error
	startCampaign             func(ctx context.Context, id int64, at time.Time) error
	completeCampaignIfDone    func(ctx context.Context, id int64) (bool, error)
	getPendingRecipients      func(ctx context.Context, campaignID int64, limit int) ([]models.Recipient, error)
	countRecipients           func(ctx context.Context, campaignID int64) (int, int, error)
	markRecipientBlocked      func(ctx context.Context, recipientID int64, reason string) error
}

func (f *fakeCampaignStore) GetCampaign(ctx context.Context, id int64) (*models.Campaign, error) {
	return f.getCampaign(ctx, id)
}

func (f *fakeCampaignStore) ListDispatchableCampaigns(ctx context.Context) ([]models.Campaign, error) {
	return f.listDispatchableCampaigns(ctx)
}

func (f *fakeCampaignStore) UpdateCampaignStatus(ctx context.Context, id int64, status models.CampaignStatus) error {
	return f.updateCampaignStatus(ctx, id, status)
}

func (f *fakeCampaignStore) StartCampaign(ctx context.Context, id int64, at time.Time) error {
	return f.startCampaign(ctx, id, at)
}

func (f *fakeCampaignStore) CompleteCampaignIfDone(ctx context.Context, id int64) (bool, error) {
	return f.completeCampaignIfDone(ctx, id)
}

func (f *fakeCampaignStore) GetPendingRecipients(ctx context.Context, campaignID int64, limit int) ([]models.Recipient, error) {
	return f.getPendingRecipients(ctx, campaignID, limit)
}

func (f *fakeCampaignStore) CountRecipients(ctx context.Context, campaignID int64) (total, pending int, err error) {
	return f.countRecipients(ctx, campaignID)
}

func (f *fakeCampaignStore) MarkRecipientBlocked(ctx context.Context, recipientID int64, reason string) error {
	return f.markRecipientBlocked(ctx, recipientID, reason)
}

type fakeGatewayProvider struct {
	client types.GatewayClient
}

func (f *fakeGatewayProvider) ClientFor(string) types.GatewayClient {
	return f.client
}

// fakeGatewayClient only needs SendText customized; the session and
// typing calls are no-ops unless a test overrides them.
type fakeGatewayClient struct {
	sendText          func(ctx context.Context, chatID, text string) (*types.SendMessageResponse, error)
	startTyping       func(ctx context.Context, chatID string) error
	stopTyping        func(ctx context.Context, chatID string) error
	checkNumberStatus func(ctx context.Context, phone string) (*types.NumberStatus, error)
	getSessionStatus  func(ctx context.Context) (*types.Session, error)
	getAllContacts    func(ctx context.Context, limit, offset int) ([]types.Contact, error)
}

func (f *fakeGatewayClient) SendText(ctx context.Context, chatID, text string) (*types.SendMessageResponse, error) {
	return f.sendText(ctx, chatID, text)
}

func (f *fakeGatewayClient) StartTyping(ctx context.Context, chatID string) error {
	if f.startTyping == nil {
		return nil
	}
	return f.startTyping(ctx, chatID)
}

func (f *fakeGatewayClient) StopTyping(ctx context.Context, chatID string) error {
	if f.stopTyping == nil {
		return nil
	}
	return f.stopTyping(ctx, chatID)
}

func (f *fakeGatewayClient) SendSeen(context.Context, string) error { return nil }

func (f *fakeGatewayClient) CheckNumberStatus(ctx context.Context, phone string) (*types.NumberStatus, error) {
	if f.checkNumberStatus == nil {
		return &types.NumberStatus{NumberExists: true}, nil
	}
	return f.checkNumberStatus(ctx, phone)
}

func (f *fakeGatewayClient) CreateSession(context.Context) error { return nil }

func (f *fakeGatewayClient) DeleteSession(context.Context) error { return nil }

func (f *fakeGatewayClient) StartSession(context.Context) error { return nil }

func (f *fakeGatewayClient) StopSession(context.Context) error { return nil }

func (f *fakeGatewayClient) GetSessionStatus(ctx context.Context) (*types.Session, error) {
	if f.getSessionStatus == nil {
		return &types.Session{Status: types.SessionStatusWorking}, nil
	}
	return f.getSessionStatus(ctx)
}

func (f *fakeGatewayClient) WaitForSessionReady(context.Context, time.Duration) error { return nil }

func (f *fakeGatewayClient) GetAllContacts(ctx context.Context, limit, offset int) ([]types.Contact, error) {
	if f.getAllContacts == nil {
		return nil, nil
	}
	return f.getAllContacts(ctx, limit, offset)
}

func (f *fakeGatewayClient) GetSessionName() string { return "test-session" }
