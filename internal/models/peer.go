package models

import (
	"time"
)

// Engagement tiers bucket peers by score so campaigns can target the
// most responsive audience first.
type EngagementTier string

const (
	EngagementTierHot      EngagementTier = "hot"
	EngagementTierWarm     EngagementTier = "warm"
	EngagementTierCold     EngagementTier = "cold"
	EngagementTierInactive EngagementTier = "inactive"
)

// TierForScore maps a clamped engagement score to its tier.
func TierForScore(score int) EngagementTier {
	switch {
	case score >= 70:
		return EngagementTierHot
	case score >= 40:
		return EngagementTierWarm
	case score >= 10:
		return EngagementTierCold
	default:
		return EngagementTierInactive
	}
}

// Peer is a conversation partner owned by one account. Engagement fields
// are mutated by the engagement tracker; isDeleted is a soft delete set
// on contact-sync removal and restorable when the contact reappears.
type Peer struct {
	ID              int64      `db:"id" json:"id"`
	AccountID       int64      `db:"account_id" json:"accountId"`
	ChatID          string     `db:"chat_id" json:"chatId"`
	PhoneNumber     string     `db:"phone_number" json:"phoneNumber"`
	Name            string     `db:"name" json:"name"`
	EngagementScore int        `db:"engagement_score" json:"engagementScore"`
	ReplyCount      int        `db:"reply_count" json:"replyCount"`
	ReadCount       int        `db:"read_count" json:"readCount"`
	ComplaintCount  int        `db:"complaint_count" json:"complaintCount"`
	LastReplyAt     *time.Time `db:"last_reply_at" json:"lastReplyAt"`
	LastOutboundAt  *time.Time `db:"last_outbound_at" json:"lastOutboundAt"`
	Validated       bool       `db:"whatsapp_validated" json:"validated"`
	IsDeleted       bool       `db:"is_deleted" json:"isDeleted"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
}

// Tier returns the peer's engagement tier.
func (p *Peer) Tier() EngagementTier {
	return TierForScore(p.EngagementScore)
}
