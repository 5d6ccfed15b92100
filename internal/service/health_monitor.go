package service

import (
	"context"
	"fmt"
	"time"

	"waflow/internal/constants"
	"waflow/internal/database"
	"waflow/internal/models"

	"github.com/sirupsen/logrus"
)

// HealthStatus labels a composite health score.
type HealthStatus string

const (
	HealthExcellent HealthStatus = "excellent"
	HealthHealthy   HealthStatus = "healthy"
	HealthWarning   HealthStatus = "warning"
	HealthCritical  HealthStatus = "critical"
	HealthSuspended HealthStatus = "suspended"
)

// Composite score weights. Delivery shortfall deducts heaviest, failures
// next, the risk score after that; strong read and reply rates earn
// small bonuses.
const (
	healthDeliveryTarget     = 0.95
	healthDeliveryWeight     = 120.0
	healthFailureWeight      = 80.0
	healthRiskWeight         = 0.3
	healthReadBonusRate      = 0.5
	healthReplyBonusRate     = 0.1
	healthRateBonus          = 5
	healthExcellentThreshold = 90
	healthHealthyThreshold   = 75
	healthWarningThreshold   = 50
)

// WindowRates are delivery rates over one rolling window.
type WindowRates struct {
	Total        int     `json:"total"`
	DeliveryRate float64 `json:"deliveryRate"`
	ReadRate     float64 `json:"readRate"`
	FailureRate  float64 `json:"failureRate"`
	ReplyRate    float64 `json:"replyRate"`
}

// HealthReport is the operator-facing account health summary.
type HealthReport struct {
	AccountID       int64                `json:"accountId"`
	Status          HealthStatus         `json:"status"`
	CompositeScore  int                  `json:"compositeScore"`
	RiskScore       int                  `json:"riskScore"`
	Day             WindowRates          `json:"day"`
	Week            WindowRates          `json:"week"`
	StalePending    int                  `json:"stalePending"`
	Recommendations []string             `json:"recommendations"`
	AccountStatus   models.AccountStatus `json:"accountStatus"`
	GeneratedAt     time.Time            `json:"generatedAt"`
}

// recommendationRules is the data-driven breach-to-advice policy,
// ordered by priority.
var recommendationRules = []struct {
	breached func(*HealthReport) bool
	advice   string
}{
	{func(r *HealthReport) bool { return r.Day.FailureRate > 0.2 },
		"Validate recipient numbers before dispatching; failure rate is high"},
	{func(r *HealthReport) bool { return r.Day.DeliveryRate < 0.8 && r.Day.Total > 0 },
		"Review recent failures; delivery rate is below 80%"},
	{func(r *HealthReport) bool { return r.RiskScore > 50 },
		"Reduce daily volume until the risk score decays"},
	{func(r *HealthReport) bool { return r.StalePending > 0 },
		"Investigate messages stuck in pending; gateway outcomes may be lost"},
	{func(r *HealthReport) bool { return r.Week.ReplyRate < 0.05 && r.Week.Total > 20 },
		"Personalize content; reply rate over the last week is very low"},
}

// HealthMonitor aggregates message outcomes into rolling 24h/7d rates,
// folds in the risk score, and produces a composite health score with
// ranked recommendations. It also runs as a periodic background check
// that logs deteriorating accounts.
type HealthMonitor struct {
	accountStore AccountStore
	messageStore MessageStore
	statsStore   StatsStore
	anomaly      *AnomalyDetector
	cfg          models.HealthConfig
	staleCutoff  time.Duration
	logger       *logrus.Logger
	stopCh       chan struct{}
}

func NewHealthMonitor(accountStore AccountStore, messageStore MessageStore, statsStore StatsStore, anomaly *AnomalyDetector, cfg models.HealthConfig, anomalyCfg models.AnomalyConfig, logger *logrus.Logger) *HealthMonitor {
	if cfg.CheckIntervalMinutes <= 0 {
		cfg.CheckIntervalMinutes = constants.DefaultHealthCheckIntervalMins
	}
	staleMinutes := anomalyCfg.StalePendingMinutes
	if staleMinutes <= 0 {
		staleMinutes = constants.DefaultStalePendingMinutes
	}
	return &HealthMonitor{
		accountStore: accountStore,
		messageStore: messageStore,
		statsStore:   statsStore,
		anomaly:      anomaly,
		cfg:          cfg,
		staleCutoff:  time.Duration(staleMinutes) * time.Minute,
		logger:       logger,
		stopCh:       make(chan struct{}),
	}
}

// Report builds the health report for one account.
func (m *HealthMonitor) Report(ctx context.Context, accountID int64, now time.Time) (*HealthReport, error) {
	account, err := m.accountStore.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("no account found with ID %d", accountID)
	}

	day, err := m.windowRates(ctx, accountID, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	week, err := m.windowRates(ctx, accountID, now.Add(-7*24*time.Hour))
	if err != nil {
		return nil, err
	}

	stale, err := m.messageStore.CountStalePending(ctx, accountID, now.Add(-m.staleCutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to count stale pending: %w", err)
	}

	report := &HealthReport{
		AccountID:     accountID,
		RiskScore:     account.RiskScore,
		Day:           *day,
		Week:          *week,
		StalePending:  stale,
		AccountStatus: account.Status,
		GeneratedAt:   now,
	}
	report.CompositeScore = m.composite(report)
	report.Status = m.statusFor(account, report.CompositeScore)

	for _, rule := range recommendationRules {
		if rule.breached(report) {
			report.Recommendations = append(report.Recommendations, rule.advice)
		}
	}

	return report, nil
}

func (m *HealthMonitor) windowRates(ctx context.Context, accountID int64, since time.Time) (*WindowRates, error) {
	stats, err := m.statsStore.GetWindowStats(ctx, accountID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get window stats: %w", err)
	}
	return ratesFrom(stats), nil
}

func ratesFrom(stats *database.WindowStats) *WindowRates {
	rates := &WindowRates{Total: stats.Total}
	if stats.Total == 0 {
		return rates
	}
	total := float64(stats.Total)
	rates.DeliveryRate = float64(stats.Delivered) / total
	rates.ReadRate = float64(stats.Read) / total
	rates.FailureRate = float64(stats.Failed) / total
	rates.ReplyRate = float64(stats.Replied) / total
	return rates
}

func (m *HealthMonitor) composite(r *HealthReport) int {
	score := 100.0

	if r.Day.Total > 0 {
		if shortfall := healthDeliveryTarget - r.Day.DeliveryRate; shortfall > 0 {
			score -= shortfall * healthDeliveryWeight
		}
		score -= r.Day.FailureRate * healthFailureWeight
	}
	score -= float64(r.RiskScore) * healthRiskWeight

	if r.Day.ReadRate >= healthReadBonusRate {
		score += healthRateBonus
	}
	if r.Day.ReplyRate >= healthReplyBonusRate {
		score += healthRateBonus
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(score)
}

func (m *HealthMonitor) statusFor(account *models.Account, composite int) HealthStatus {
	if account.Status == models.AccountStatusSuspended {
		return HealthSuspended
	}
	switch {
	case composite >= healthExcellentThreshold:
		return HealthExcellent
	case composite >= healthHealthyThreshold:
		return HealthHealthy
	case composite >= healthWarningThreshold:
		return HealthWarning
	default:
		return HealthCritical
	}
}

// Start runs periodic health checks until the context is cancelled or
// Stop is called. Each pass also triggers an anomaly window scan so
// failure patterns surface even between dispatch activity.
func (m *HealthMonitor) Start(ctx context.Context) {
	interval := time.Duration(m.cfg.CheckIntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.WithField("interval", interval).Info("Starting health monitor")

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Health monitor context cancelled, stopping")
			return
		case <-m.stopCh:
			m.logger.Info("Health monitor stop signal received, stopping")
			return
		case <-ticker.C:
			m.runChecks(ctx)
		}
	}
}

func (m *HealthMonitor) Stop() {
	close(m.stopCh)
}

func (m *HealthMonitor) runChecks(ctx context.Context) {
	accounts, err := m.accountStore.ListAccounts(ctx)
	if err != nil {
		m.logger.WithError(err).Error("Failed to list accounts for health check")
		return
	}

	now := time.Now()
	for i := range accounts {
		account := &accounts[i]
		if account.Status == models.AccountStatusPending {
			continue
		}

		report, err := m.Report(ctx, account.ID, now)
		if err != nil {
			m.logger.WithError(err).WithField("accountId", account.ID).Error("Failed to build health report")
			continue
		}

		entry := m.logger.WithFields(logrus.Fields{
			"accountId": account.ID,
			"status":    report.Status,
			"composite": report.CompositeScore,
		})
		switch report.Status {
		case HealthCritical:
			entry.Warn("Account health critical")
		case HealthWarning:
			entry.Info("Account health degraded")
		default:
			entry.Debug("Account health checked")
		}

		if m.anomaly != nil && account.Status == models.AccountStatusActive {
			m.anomaly.ScanWindow(ctx, account.ID, now)
		}
	}
}

// Heatmap returns hour-by-weekday send/read activity for dashboards.
func (m *HealthMonitor) Heatmap(ctx context.Context, accountID int64, days int) ([]database.HeatmapCell, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	return m.statsStore.ActivityHeatmap(ctx, accountID, since)
}
