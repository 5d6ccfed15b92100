package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"waflow/internal/constants"
	"waflow/internal/database"
	"waflow/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// severityDeltas is the data-driven severity to score-delta policy.
// Kept as a table so the escalation policy stays auditable in one place.
var severityDeltas = map[models.RiskSeverity]int{
	models.RiskSeverityTemporary: 5,
	models.RiskSeverityWarning:   10,
	models.RiskSeveritySuspected: 25,
	models.RiskSeverityConfirmed: 50,
}

// ScoreDeltaFor returns the score delta applied for a severity.
func ScoreDeltaFor(severity models.RiskSeverity) int {
	return severityDeltas[severity]
}

// RiskEngine owns each account's 0-100 risk score: it raises the score
// on classified anomalies, suspends past the ceiling or on any confirmed
// event, decays clean accounts daily, and logs every change to the
// append-only risk-event trail.
type RiskEngine struct {
	riskStore RiskStore
	cfg       models.RiskConfig
	hub       *EventHub
	logger    *logrus.Logger
}

func NewRiskEngine(riskStore RiskStore, cfg models.RiskConfig, hub *EventHub, logger *logrus.Logger) *RiskEngine {
	if cfg.SuspensionCeiling <= 0 {
		cfg.SuspensionCeiling = constants.DefaultSuspensionCeiling
	}
	if cfg.DecayPoints <= 0 {
		cfg.DecayPoints = constants.DefaultDecayPoints
	}
	if cfg.CleanWindowHours <= 0 {
		cfg.CleanWindowHours = constants.DefaultCleanWindowHours
	}
	if cfg.BonusCleanDays <= 0 {
		cfg.BonusCleanDays = constants.DefaultBonusCleanDays
	}
	if cfg.BonusDecayPoints <= 0 {
		cfg.BonusDecayPoints = constants.DefaultBonusDecayPoints
	}
	return &RiskEngine{
		riskStore: riskStore,
		cfg:       cfg,
		hub:       hub,
		logger:    logger,
	}
}

// RecordAnomaly appends a severity-weighted risk event and applies its
// score delta. A confirmed severity forces suspension regardless of the
// resulting score; crossing the ceiling suspends too. Suspension pauses
// every running campaign of the account in the same transaction.
func (e *RiskEngine) RecordAnomaly(ctx context.Context, accountID int64, severity models.RiskSeverity, kind models.RiskEventKind, metadata map[string]string) (*database.RiskApplyResult, error) {
	delta, ok := severityDeltas[severity]
	if !ok {
		return nil, fmt.Errorf("unknown risk severity %q", severity)
	}

	ev := &models.RiskEvent{
		ID:         uuid.New().String(),
		AccountID:  accountID,
		Kind:       kind,
		Severity:   severity,
		ScoreDelta: delta,
		Metadata:   metadata,
	}

	forceSuspend := severity == models.RiskSeverityConfirmed
	result, err := e.riskStore.ApplyRiskEvent(ctx, ev, e.cfg.SuspensionCeiling, forceSuspend)
	if err != nil {
		return nil, fmt.Errorf("failed to apply risk event: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"accountId": accountID,
		"severity":  severity,
		"kind":      kind,
		"delta":     delta,
		"newScore":  result.NewScore,
		"suspended": result.Suspended,
	}).Warn("Risk event recorded")

	if e.hub != nil {
		e.hub.Publish(Event{
			Type:      EventRiskRaised,
			AccountID: accountID,
			Detail: map[string]string{
				"severity": string(severity),
				"newScore": strconv.Itoa(result.NewScore),
			},
		})
		if result.Suspended {
			e.hub.Publish(Event{
				Type:      EventAccountSuspended,
				AccountID: accountID,
				Detail: map[string]string{
					"pausedCampaigns": strconv.FormatInt(result.PausedCampaigns, 10),
				},
			})
		}
	}

	return result, nil
}

// RunDecaySweep subtracts decay points from every account whose newest
// non-decay risk event is older than the clean window, with a larger
// subtraction after the bonus clean period. The whole pass commits as
// one transaction and each subtraction is logged as a decay event.
func (e *RiskEngine) RunDecaySweep(ctx context.Context, now time.Time) error {
	candidates, err := e.riskStore.ListDecayCandidates(ctx)
	if err != nil {
		return fmt.Errorf("failed to list decay candidates: %w", err)
	}

	cleanCutoff := now.Add(-time.Duration(e.cfg.CleanWindowHours) * time.Hour)
	bonusCutoff := now.Add(-time.Duration(e.cfg.BonusCleanDays) * 24 * time.Hour)

	var decays []models.RiskEvent
	for _, c := range candidates {
		if c.RiskScore <= 0 {
			continue
		}
		if c.LastEventAt != nil && c.LastEventAt.After(cleanCutoff) {
			continue
		}

		points := e.cfg.DecayPoints
		cleanSince := "clean window"
		if c.LastEventAt == nil || !c.LastEventAt.After(bonusCutoff) {
			points = e.cfg.BonusDecayPoints
			cleanSince = "bonus window"
		}
		if points > c.RiskScore {
			points = c.RiskScore
		}

		decays = append(decays, models.RiskEvent{
			ID:         uuid.New().String(),
			AccountID:  c.AccountID,
			Kind:       models.RiskEventDecay,
			Severity:   models.RiskSeverityTemporary,
			ScoreDelta: -points,
			Metadata:   map[string]string{"window": cleanSince},
		})
	}

	if len(decays) == 0 {
		e.logger.Debug("Decay sweep found no eligible accounts")
		return nil
	}

	if err := e.riskStore.ApplyDecayBatch(ctx, decays); err != nil {
		return fmt.Errorf("failed to apply decay batch: %w", err)
	}

	e.logger.WithField("accounts", len(decays)).Info("Risk decay sweep applied")

	if e.hub != nil {
		for _, d := range decays {
			e.hub.Publish(Event{
				Type:      EventRiskDecayed,
				AccountID: d.AccountID,
				Detail:    map[string]string{"delta": strconv.Itoa(d.ScoreDelta)},
			})
		}
	}
	return nil
}

// ResetRisk zeroes an account's score on operator request. The reset is
// logged but does not reactivate a suspended account or its campaigns.
func (e *RiskEngine) ResetRisk(ctx context.Context, accountID int64, operator string) error {
	if err := e.riskStore.ResetRiskScore(ctx, accountID, uuid.New().String(), operator); err != nil {
		return fmt.Errorf("failed to reset risk score: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"accountId": accountID,
		"operator":  operator,
	}).Info("Risk score manually reset")
	return nil
}

// History returns the newest risk events for an account.
func (e *RiskEngine) History(ctx context.Context, accountID int64, limit int) ([]models.RiskEvent, error) {
	return e.riskStore.ListRiskEvents(ctx, accountID, limit)
}
