package service

import (
	"context"
	"time"

	"waflow/internal/constants"
	"waflow/internal/models"

	"github.com/sirupsen/logrus"
)

const sendTimeHistoryLimit = 200
const sendTimeLearnedBonus = 1.2

// staticDayWeights is the fallback day-of-week policy for peers with no
// read history, tuned for business audiences. Index 0 is Sunday.
var staticDayWeights = [7]float64{0.5, 1.0, 1.0, 1.0, 0.95, 0.85, 0.6}

// staticHourWeights favors mid-morning and early evening.
var staticHourWeights = map[int]float64{
	8: 0.7, 9: 0.9, 10: 1.0, 11: 0.95, 12: 0.7,
	13: 0.75, 14: 0.85, 15: 0.9, 16: 0.85, 17: 0.8,
	18: 0.75, 19: 0.6, 20: 0.5,
}

// SendTimeRecommendation is the operator/dispatcher-facing timing advice
// for one peer.
type SendTimeRecommendation struct {
	BestHour    int     `json:"bestHour"`
	BestWeekday int     `json:"bestWeekday"`
	Learned     bool    `json:"learned"`
	Score       float64 `json:"score"`
	SendNow     bool    `json:"sendNow"`
}

// SendTimeOptimizer mines a peer's historical read timestamps for their
// preferred hour and weekday inside the configured working window, with
// a static weight table as fallback, and gates sends below a combined
// score threshold.
type SendTimeOptimizer struct {
	statsStore StatsStore
	cfg        models.SendTimeConfig
	logger     *logrus.Logger
}

func NewSendTimeOptimizer(statsStore StatsStore, cfg models.SendTimeConfig, logger *logrus.Logger) *SendTimeOptimizer {
	if cfg.WorkStartHour <= 0 {
		cfg.WorkStartHour = constants.DefaultWorkStartHour
	}
	if cfg.WorkEndHour <= 0 {
		cfg.WorkEndHour = constants.DefaultWorkEndHour
	}
	if cfg.GateThreshold <= 0 {
		cfg.GateThreshold = constants.DefaultSendTimeGateThreshold
	}
	return &SendTimeOptimizer{
		statsStore: statsStore,
		cfg:        cfg,
		logger:     logger,
	}
}

// Enabled reports whether the optimizer gates dispatching at all.
func (o *SendTimeOptimizer) Enabled() bool {
	return o.cfg.Enabled
}

// Recommend computes the peer's best send slot and whether sending right
// now clears the gate threshold.
func (o *SendTimeOptimizer) Recommend(ctx context.Context, accountID int64, chatID string, now time.Time) (*SendTimeRecommendation, error) {
	bestHour, bestDay, learned := o.learnedPreference(ctx, accountID, chatID)

	rec := &SendTimeRecommendation{
		BestHour:    bestHour,
		BestWeekday: bestDay,
		Learned:     learned,
	}
	rec.Score = o.scoreAt(now, bestHour, learned)
	rec.SendNow = rec.Score >= o.cfg.GateThreshold
	return rec, nil
}

// ShouldSendNow is the dispatcher's gate. When the optimizer is disabled
// it always passes.
func (o *SendTimeOptimizer) ShouldSendNow(ctx context.Context, accountID int64, chatID string, now time.Time) bool {
	if !o.cfg.Enabled {
		return true
	}
	rec, err := o.Recommend(ctx, accountID, chatID, now)
	if err != nil {
		o.logger.WithError(err).WithField("chatId", chatID).Warn("Send-time recommendation failed, allowing send")
		return true
	}
	return rec.SendNow
}

func (o *SendTimeOptimizer) learnedPreference(ctx context.Context, accountID int64, chatID string) (hour, weekday int, learned bool) {
	hour, weekday = o.staticBest()

	reads, err := o.statsStore.ReadTimestamps(ctx, accountID, chatID, sendTimeHistoryLimit)
	if err != nil {
		o.logger.WithError(err).WithField("chatId", chatID).Warn("Failed to load read history")
		return hour, weekday, false
	}
	if len(reads) == 0 {
		return hour, weekday, false
	}

	hourCounts := make(map[int]int)
	dayCounts := make(map[int]int)
	for _, t := range reads {
		h := t.Hour()
		if h < o.cfg.WorkStartHour || h > o.cfg.WorkEndHour {
			continue
		}
		hourCounts[h]++
		dayCounts[int(t.Weekday())]++
	}
	if len(hourCounts) == 0 {
		return hour, weekday, false
	}

	bestHourCount, bestDayCount := 0, 0
	for h, c := range hourCounts {
		if c > bestHourCount || (c == bestHourCount && h < hour) {
			hour, bestHourCount = h, c
		}
	}
	for d, c := range dayCounts {
		if c > bestDayCount || (c == bestDayCount && d < weekday) {
			weekday, bestDayCount = d, c
		}
	}
	return hour, weekday, true
}

func (o *SendTimeOptimizer) staticBest() (hour, weekday int) {
	hour, best := o.cfg.WorkStartHour, 0.0
	for h := o.cfg.WorkStartHour; h <= o.cfg.WorkEndHour; h++ {
		if w := staticHourWeights[h]; w > best {
			hour, best = h, w
		}
	}

	weekday, best = 1, 0.0
	for d, w := range staticDayWeights {
		if w > best {
			weekday, best = d, w
		}
	}
	return hour, weekday
}

// scoreAt combines day weight, hour weight and a bonus when the current
// hour matches the learned preference.
func (o *SendTimeOptimizer) scoreAt(now time.Time, learnedHour int, learned bool) float64 {
	hourWeight := staticHourWeights[now.Hour()]
	score := staticDayWeights[int(now.Weekday())] * hourWeight
	if learned && now.Hour() == learnedHour {
		score *= sendTimeLearnedBonus
	}
	if score > 1 {
		score = 1
	}
	return score
}
