package models

import (
	"time"
)

type RiskSeverity string

const (
	RiskSeverityTemporary RiskSeverity = "temporary"
	RiskSeverityWarning   RiskSeverity = "warning"
	RiskSeveritySuspected RiskSeverity = "suspected"
	RiskSeverityConfirmed RiskSeverity = "confirmed"
)

type RiskEventKind string

const (
	RiskEventBlockDetected RiskEventKind = "block_detected"
	RiskEventSuspension    RiskEventKind = "suspension"
	RiskEventDecay         RiskEventKind = "decay"
	RiskEventManualReset   RiskEventKind = "manual_reset"
)

// RiskEvent is one entry in the append-only per-account risk log. Events
// are never mutated or deleted; the decay sweep's clean-window check
// reads the newest event timestamp.
type RiskEvent struct {
	ID         string            `db:"id" json:"id"`
	AccountID  int64             `db:"account_id" json:"accountId"`
	Kind       RiskEventKind     `db:"kind" json:"kind"`
	Severity   RiskSeverity      `db:"severity" json:"severity"`
	ScoreDelta int               `db:"score_delta" json:"scoreDelta"`
	Metadata   map[string]string `db:"metadata" json:"metadata"`
	CreatedAt  time.Time         `db:"created_at" json:"createdAt"`
}
