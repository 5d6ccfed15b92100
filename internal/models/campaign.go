package models

import (
	"time"
)

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
)

// Campaign is a recipient batch owned by one account. The counters are
// mutated only by the dispatcher, inside the same transaction as the
// corresponding message outcome.
type Campaign struct {
	ID          int64          `db:"id" json:"id"`
	AccountID   int64          `db:"account_id" json:"accountId"`
	Name        string         `db:"name" json:"name"`
	Status      CampaignStatus `db:"status" json:"status"`
	Template    string         `db:"template" json:"template"`
	SentCount   int            `db:"sent_count" json:"sentCount"`
	FailedCount int            `db:"failed_count" json:"failedCount"`
	StartedAt   *time.Time     `db:"started_at" json:"startedAt"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`
}

type RecipientStatus string

const (
	RecipientStatusPending RecipientStatus = "pending"
	RecipientStatusSent    RecipientStatus = "sent"
	RecipientStatusFailed  RecipientStatus = "failed"
)

// Recipient is one campaign target. Immutable once created except for
// status, failure reason and timestamps.
type Recipient struct {
	ID            int64             `db:"id" json:"id"`
	CampaignID    int64             `db:"campaign_id" json:"campaignId"`
	ChatID        string            `db:"chat_id" json:"chatId"`
	Attributes    map[string]string `db:"attributes" json:"attributes"`
	Status        RecipientStatus   `db:"status" json:"status"`
	FailureReason *string           `db:"failure_reason" json:"failureReason"`
	SentAt        *time.Time        `db:"sent_at" json:"sentAt"`
	CreatedAt     time.Time         `db:"created_at" json:"createdAt"`
}
