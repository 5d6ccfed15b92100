package models

import (
	"time"
)

type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

// messageStatusRank orders the forward-only delivery progression.
var messageStatusRank = map[MessageStatus]int{
	MessageStatusPending:   0,
	MessageStatusSent:      1,
	MessageStatusDelivered: 2,
	MessageStatusRead:      3,
}

// CanTransition reports whether moving from s to next is a legal forward
// transition. Regressions (read back to sent, delivered back to pending)
// are illegal, as is leaving a terminal state. failed is terminal and
// reachable only from pending or sent.
func (s MessageStatus) CanTransition(next MessageStatus) bool {
	if s == next {
		return false
	}
	if s == MessageStatusFailed || s == MessageStatusRead {
		return false
	}
	if next == MessageStatusFailed {
		return s == MessageStatusPending || s == MessageStatusSent
	}
	from, ok := messageStatusRank[s]
	if !ok {
		return false
	}
	to, ok := messageStatusRank[next]
	if !ok {
		return false
	}
	return to > from
}

// Message records one send attempt. sentAt is stamped by the dispatcher;
// deliveredAt and readAt come only from gateway ack callbacks.
type Message struct {
	ID               string        `db:"id" json:"id"`
	AccountID        int64         `db:"account_id" json:"accountId"`
	CampaignID       int64         `db:"campaign_id" json:"campaignId"`
	RecipientID      int64         `db:"recipient_id" json:"recipientId"`
	ChatID           string        `db:"chat_id" json:"chatId"`
	Body             string        `db:"body" json:"body"`
	ContentHash      string        `db:"content_hash" json:"contentHash"`
	Status           MessageStatus `db:"status" json:"status"`
	GatewayMessageID *string       `db:"gateway_message_id" json:"gatewayMessageId"`
	Replied          bool          `db:"replied" json:"replied"`
	FailureReason    *string       `db:"failure_reason" json:"failureReason"`
	SentAt           *time.Time    `db:"sent_at" json:"sentAt"`
	DeliveredAt      *time.Time    `db:"delivered_at" json:"deliveredAt"`
	ReadAt           *time.Time    `db:"read_at" json:"readAt"`
	CreatedAt        time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updatedAt"`
}

// MessageOutcome is the slice of message history the anomaly detector
// scans: status plus when the attempt was created.
type MessageOutcome struct {
	Status    MessageStatus
	CreatedAt time.Time
}
