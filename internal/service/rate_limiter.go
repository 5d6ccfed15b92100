package service

import (
	"time"

	"waflow/internal/constants"
	"waflow/internal/models"
)

// defaultWarmupTiers is the canonical week-tier warmup schedule applied
// when the config does not provide one.
var defaultWarmupTiers = []models.WarmupTier{
	{MaxAgeDays: 7, DailyLimit: 20},
	{MaxAgeDays: 14, DailyLimit: 50},
	{MaxAgeDays: 21, DailyLimit: 100},
	{MaxAgeDays: 28, DailyLimit: 150},
}

// RateController maps an account's connection age to its permitted
// daily send volume. It is a pure function of the account row and the
// clock, so dispatch passes can call it freely.
type RateController struct {
	tiers       []models.WarmupTier
	matureLimit int
}

func NewRateController(cfg models.WarmupConfig) *RateController {
	tiers := cfg.Tiers
	if len(tiers) == 0 {
		tiers = defaultWarmupTiers
	}
	matureLimit := cfg.MatureLimit
	if matureLimit <= 0 {
		matureLimit = constants.DefaultMatureDailyLimit
	}
	return &RateController{
		tiers:       tiers,
		matureLimit: matureLimit,
	}
}

// DailyLimit returns the account's current daily ceiling. An account
// that never connected gets zero. A per-account override only ever
// lowers the tier ceiling, never raises it.
func (r *RateController) DailyLimit(account *models.Account, now time.Time) int {
	age, connected := account.ConnectionAge(now)
	if !connected {
		return 0
	}

	ageDays := int(age.Hours() / 24)
	limit := r.matureLimit
	for _, tier := range r.tiers {
		if ageDays <= tier.MaxAgeDays {
			limit = tier.DailyLimit
			break
		}
	}

	if account.DailyLimitOverride != nil {
		override := *account.DailyLimitOverride
		if override < 0 {
			override = 0
		}
		if override < limit {
			limit = override
		}
	}

	return limit
}
