package models

import (
	"time"
)

type AccountStatus string

const (
	AccountStatusPending   AccountStatus = "pending"
	AccountStatusActive    AccountStatus = "active"
	AccountStatusSuspended AccountStatus = "suspended"
	AccountStatusOffline   AccountStatus = "offline"
)

// Account is one outbound-messaging identity with its own risk and rate
// state. Status transitions are owned by the governor: webhook session
// events flip active/offline, the risk engine flips suspended.
type Account struct {
	ID                 int64         `db:"id" json:"id"`
	Name               string        `db:"name" json:"name"`
	SessionName        string        `db:"session_name" json:"sessionName"`
	Status             AccountStatus `db:"status" json:"status"`
	RiskScore          int           `db:"risk_score" json:"riskScore"`
	DailyLimitOverride *int          `db:"daily_limit_override" json:"dailyLimitOverride"`
	ConnectedAt        *time.Time    `db:"connected_at" json:"connectedAt"`
	LastActiveAt       *time.Time    `db:"last_active_at" json:"lastActiveAt"`
	CreatedAt          time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updatedAt"`
}

// ConnectionAge returns how long the account has had a live gateway
// session. The second return is false when the account never connected,
// which means no send quota at all.
func (a *Account) ConnectionAge(now time.Time) (time.Duration, bool) {
	if a.ConnectedAt == nil {
		return 0, false
	}
	return now.Sub(*a.ConnectedAt), true
}
