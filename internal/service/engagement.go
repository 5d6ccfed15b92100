package service

import (
	"context"
	"fmt"
	"time"

	"waflow/internal/models"

	"github.com/sirupsen/logrus"
)

// Engagement scoring weights. Reply signals dominate; complaints pull
// hard in the other direction.
const (
	engagementReplyBonus      = 10
	engagementFastReplyBonus  = 15
	engagementFastReplyWindow = time.Hour

	engagementPointsPerReply = 8
	engagementReplyPointsCap = 40
	engagementPointsPerRead  = 2
	engagementReadPointsCap  = 20
	engagementRecentReplyPts = 20
	engagementStaleReplyPts  = 10
	engagementComplaintPts   = 15

	// graded by how recently the peer last replied

	engagementRecentReplyDays = 7
	engagementStaleReplyDays  = 30
)

// EngagementStats summarizes an account's peer engagement for operators.
type EngagementStats struct {
	TierCounts map[models.EngagementTier]int `json:"tierCounts"`
	TopPeers   []models.Peer                 `json:"topPeers"`
}

// EngagementTracker maintains each peer's 0-100 engagement score from
// inbound replies and read acks, and buckets peers into tiers used to
// prioritize campaign targeting.
type EngagementTracker struct {
	peerStore    PeerStore
	messageStore MessageStore
	logger       *logrus.Logger
}

func NewEngagementTracker(peerStore PeerStore, messageStore MessageStore, logger *logrus.Logger) *EngagementTracker {
	return &EngagementTracker{
		peerStore:    peerStore,
		messageStore: messageStore,
		logger:       logger,
	}
}

// HandleReply applies the reply bonus to the peer's score, with a larger
// bonus when the reply landed within an hour of our last outbound
// message, and flags the newest outbound message as replied.
func (t *EngagementTracker) HandleReply(ctx context.Context, accountID int64, chatID string, at time.Time) error {
	peer, err := t.peerStore.GetPeer(ctx, accountID, chatID)
	if err != nil {
		return fmt.Errorf("failed to load peer: %w", err)
	}

	if peer == nil {
		peer = &models.Peer{AccountID: accountID, ChatID: chatID}
		if err := t.peerStore.UpsertPeer(ctx, peer); err != nil {
			return fmt.Errorf("failed to create peer: %w", err)
		}
	}

	bonus := engagementReplyBonus
	if peer.LastOutboundAt != nil && at.Sub(*peer.LastOutboundAt) <= engagementFastReplyWindow {
		bonus += engagementFastReplyBonus
	}
	score := clampScore(peer.EngagementScore + bonus)

	if err := t.peerStore.RecordPeerReply(ctx, accountID, chatID, score, at); err != nil {
		return fmt.Errorf("failed to record peer reply: %w", err)
	}

	if err := t.messageStore.MarkMessageReplied(ctx, accountID, chatID); err != nil {
		return fmt.Errorf("failed to flag replied message: %w", err)
	}

	t.logger.WithFields(logrus.Fields{
		"accountId": accountID,
		"chatId":    chatID,
		"score":     score,
	}).Debug("Peer reply recorded")
	return nil
}

// HandleReadAck bumps the peer's read counter when a sent message is
// acked as read.
func (t *EngagementTracker) HandleReadAck(ctx context.Context, accountID int64, chatID string) error {
	return t.peerStore.IncrementPeerReadCount(ctx, accountID, chatID)
}

// RecomputeScore rebuilds a peer's score from aggregate history instead
// of incremental bonuses, clamped to [0,100].
func (t *EngagementTracker) RecomputeScore(peer *models.Peer, now time.Time) int {
	replyPoints := peer.ReplyCount * engagementPointsPerReply
	if replyPoints > engagementReplyPointsCap {
		replyPoints = engagementReplyPointsCap
	}

	readPoints := peer.ReadCount * engagementPointsPerRead
	if readPoints > engagementReadPointsCap {
		readPoints = engagementReadPointsCap
	}

	recencyPoints := 0
	if peer.LastReplyAt != nil {
		age := now.Sub(*peer.LastReplyAt)
		switch {
		case age <= engagementRecentReplyDays*24*time.Hour:
			recencyPoints = engagementRecentReplyPts
		case age <= engagementStaleReplyDays*24*time.Hour:
			recencyPoints = engagementStaleReplyPts
		}
	}

	score := replyPoints + readPoints + recencyPoints - peer.ComplaintCount*engagementComplaintPts
	return clampScore(score)
}

// RefreshScores recomputes and persists scores for an account's top
// peers. Used by the periodic health pass so tiers track history drift.
func (t *EngagementTracker) RefreshScores(ctx context.Context, accountID int64, now time.Time) error {
	peers, err := t.peerStore.ListTopPeers(ctx, accountID, 0)
	if err != nil {
		return fmt.Errorf("failed to list peers: %w", err)
	}

	for i := range peers {
		peer := &peers[i]
		score := t.RecomputeScore(peer, now)
		if score == peer.EngagementScore {
			continue
		}
		if err := t.peerStore.SetPeerEngagementScore(ctx, peer.ID, score); err != nil {
			return fmt.Errorf("failed to update peer %d score: %w", peer.ID, err)
		}
	}
	return nil
}

// Stats returns tier counts and the highest-engagement peers.
func (t *EngagementTracker) Stats(ctx context.Context, accountID int64, topN int) (*EngagementStats, error) {
	tiers, err := t.peerStore.CountPeersByTier(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to count peer tiers: %w", err)
	}

	top, err := t.peerStore.ListTopPeers(ctx, accountID, topN)
	if err != nil {
		return nil, fmt.Errorf("failed to list top peers: %w", err)
	}

	return &EngagementStats{TierCounts: tiers, TopPeers: top}, nil
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
