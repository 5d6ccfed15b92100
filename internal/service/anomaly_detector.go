package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"waflow/internal/constants"
	"waflow/internal/models"
	"waflow/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
)

// banPhrases maps gateway error text fragments to severities. Matching
// is case-insensitive substring; the worst match wins.
var banPhrases = []struct {
	phrase   string
	severity models.RiskSeverity
}{
	{"banned", models.RiskSeverityConfirmed},
	{"account is locked", models.RiskSeverityConfirmed},
	{"permanently suspended", models.RiskSeverityConfirmed},
	{"violation", models.RiskSeverityConfirmed},
	{"blocked", models.RiskSeveritySuspected},
	{"spam", models.RiskSeveritySuspected},
	{"not authorized", models.RiskSeveritySuspected},
	{"unauthorized", models.RiskSeveritySuspected},
	{"rate limit", models.RiskSeverityWarning},
	{"too many requests", models.RiskSeverityWarning},
	{"flood", models.RiskSeverityWarning},
}

// AnomalyDetector classifies gateway send failures and scans recent
// outcome history for aggregate failure patterns, feeding everything it
// finds into the risk engine.
type AnomalyDetector struct {
	messageStore MessageStore
	riskEngine   *RiskEngine
	cfg          models.AnomalyConfig
	logger       *logrus.Logger
}

func NewAnomalyDetector(messageStore MessageStore, riskEngine *RiskEngine, cfg models.AnomalyConfig, logger *logrus.Logger) *AnomalyDetector {
	if cfg.WindowMinutes <= 0 {
		cfg.WindowMinutes = constants.DefaultAnomalyWindowMinutes
	}
	if cfg.FailureRatioThreshold <= 0 {
		cfg.FailureRatioThreshold = constants.DefaultFailureRatioThreshold
	}
	if cfg.MinWindowSamples <= 0 {
		cfg.MinWindowSamples = constants.DefaultMinWindowSamples
	}
	if cfg.ConsecutiveFailures <= 0 {
		cfg.ConsecutiveFailures = constants.DefaultConsecutiveFailures
	}
	if cfg.StalePendingMinutes <= 0 {
		cfg.StalePendingMinutes = constants.DefaultStalePendingMinutes
	}
	if cfg.StalePendingThreshold <= 0 {
		cfg.StalePendingThreshold = constants.DefaultStalePendingThreshold
	}
	return &AnomalyDetector{
		messageStore: messageStore,
		riskEngine:   riskEngine,
		cfg:          cfg,
		logger:       logger,
	}
}

// Classify maps one gateway error to a severity using its HTTP status
// code and the curated ban-phrase list.
func (d *AnomalyDetector) Classify(err error) models.RiskSeverity {
	severity := models.RiskSeverityTemporary

	message := err.Error()
	if ge, ok := types.AsGatewayError(err); ok {
		message = ge.Message
		switch {
		case ge.StatusCode == 401 || ge.StatusCode == 403:
			severity = models.RiskSeveritySuspected
		case ge.StatusCode == 429:
			severity = models.RiskSeverityWarning
		}
	}

	lower := strings.ToLower(message)
	for _, entry := range banPhrases {
		if strings.Contains(lower, entry.phrase) && severityRank(entry.severity) > severityRank(severity) {
			severity = entry.severity
		}
	}
	return severity
}

func severityRank(s models.RiskSeverity) int {
	switch s {
	case models.RiskSeverityConfirmed:
		return 3
	case models.RiskSeveritySuspected:
		return 2
	case models.RiskSeverityWarning:
		return 1
	default:
		return 0
	}
}

// RecordSendFailure classifies the error, records it as a risk event,
// then re-scans the account's recent window for aggregate anomalies.
// Errors here never propagate to abort a dispatch pass.
func (d *AnomalyDetector) RecordSendFailure(ctx context.Context, accountID int64, sendErr error) {
	severity := d.Classify(sendErr)

	metadata := map[string]string{"error": sendErr.Error()}
	if ge, ok := types.AsGatewayError(sendErr); ok {
		metadata["statusCode"] = strconv.Itoa(ge.StatusCode)
		metadata["endpoint"] = ge.Endpoint
	}

	if _, err := d.riskEngine.RecordAnomaly(ctx, accountID, severity, models.RiskEventBlockDetected, metadata); err != nil {
		d.logger.WithError(err).WithField("accountId", accountID).Error("Failed to record send-failure anomaly")
		return
	}

	d.ScanWindow(ctx, accountID, time.Now())
}

// ScanWindow checks the rolling outcome window for failure-ratio,
// consecutive-failure and stale-pending anomalies. The worst breached
// rule is recorded as one aggregate risk event.
func (d *AnomalyDetector) ScanWindow(ctx context.Context, accountID int64, now time.Time) {
	severity, rule, detail := d.evaluateWindow(ctx, accountID, now)
	if rule == "" {
		return
	}

	metadata := map[string]string{"rule": rule, "detail": detail}
	if _, err := d.riskEngine.RecordAnomaly(ctx, accountID, severity, models.RiskEventBlockDetected, metadata); err != nil {
		d.logger.WithError(err).WithField("accountId", accountID).Error("Failed to record window anomaly")
	}
}

func (d *AnomalyDetector) evaluateWindow(ctx context.Context, accountID int64, now time.Time) (models.RiskSeverity, string, string) {
	since := now.Add(-time.Duration(d.cfg.WindowMinutes) * time.Minute)

	outcomes, err := d.messageStore.OutcomesSince(ctx, accountID, since)
	if err != nil {
		d.logger.WithError(err).WithField("accountId", accountID).Error("Failed to load outcome window")
		return "", "", ""
	}

	if len(outcomes) >= d.cfg.MinWindowSamples {
		failed := 0
		for _, o := range outcomes {
			if o.Status == models.MessageStatusFailed {
				failed++
			}
		}
		ratio := float64(failed) / float64(len(outcomes))
		if ratio >= d.cfg.FailureRatioThreshold {
			return models.RiskSeverityConfirmed, "failure_ratio",
				fmt.Sprintf("%d/%d failed in window", failed, len(outcomes))
		}
	}

	recent, err := d.messageStore.RecentOutcomes(ctx, accountID, d.cfg.ConsecutiveFailures)
	if err != nil {
		d.logger.WithError(err).WithField("accountId", accountID).Error("Failed to load recent outcomes")
		return "", "", ""
	}
	if len(recent) >= d.cfg.ConsecutiveFailures {
		allFailed := true
		for _, o := range recent {
			if o.Status != models.MessageStatusFailed {
				allFailed = false
				break
			}
		}
		if allFailed {
			return models.RiskSeverityConfirmed, "consecutive_failures",
				fmt.Sprintf("last %d attempts all failed", len(recent))
		}
	}

	cutoff := now.Add(-time.Duration(d.cfg.StalePendingMinutes) * time.Minute)
	stale, err := d.messageStore.CountStalePending(ctx, accountID, cutoff)
	if err != nil {
		d.logger.WithError(err).WithField("accountId", accountID).Error("Failed to count stale pending messages")
		return "", "", ""
	}
	if stale >= d.cfg.StalePendingThreshold {
		return models.RiskSeveritySuspected, "stale_pending",
			fmt.Sprintf("%d messages pending past cutoff", stale)
	}

	return "", "", ""
}
