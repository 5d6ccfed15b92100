package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"waflow/internal/constants"
	"waflow/internal/models"
	"waflow/internal/security"
)

var (
	ErrMissingGatewayURL = models.ConfigError{Message: "missing gateway API URL"}
	ErrMissingDBPath     = models.ConfigError{Message: "missing database path"}
)

// LoadConfig reads the JSON config file, fills defaults, applies
// environment overrides and validates the result.
func LoadConfig(path string) (*models.Config, error) {
	// Validate config file path to prevent directory traversal
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyDefaults(&config)
	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(c *models.Config) {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = constants.DefaultRetentionDays
	}

	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}
	if c.Server.WebhookRateLimit <= 0 {
		c.Server.WebhookRateLimit = constants.DefaultWebhookRateLimit
	}
	if c.Server.WebhookRateBurst <= 0 {
		c.Server.WebhookRateBurst = constants.DefaultWebhookRateBurst
	}

	if c.Gateway.TimeoutSec <= 0 {
		c.Gateway.TimeoutSec = constants.DefaultGatewayTimeoutSec
	}
	if c.Gateway.RetryCount <= 0 {
		c.Gateway.RetryCount = constants.DefaultGatewayRetryCount
	}

	if c.Dispatch.PollIntervalSec <= 0 {
		c.Dispatch.PollIntervalSec = constants.DefaultPollIntervalSec
	}
	if c.Dispatch.BatchSize <= 0 {
		c.Dispatch.BatchSize = constants.DefaultBatchSize
	}
	if c.Dispatch.PacingMinSec <= 0 {
		c.Dispatch.PacingMinSec = constants.DefaultPacingMinSec
	}
	if c.Dispatch.PacingMaxSec <= 0 {
		c.Dispatch.PacingMaxSec = constants.DefaultPacingMaxSec
	}
	if c.Dispatch.ComposeDelaySec <= 0 {
		c.Dispatch.ComposeDelaySec = constants.DefaultComposeDelaySec
	}
	if c.Dispatch.WorkerPoolSize <= 0 {
		c.Dispatch.WorkerPoolSize = constants.DefaultWorkerPoolSize
	}

	if c.Warmup.MatureLimit <= 0 {
		c.Warmup.MatureLimit = constants.DefaultMatureDailyLimit
	}

	if c.Risk.SuspensionCeiling <= 0 {
		c.Risk.SuspensionCeiling = constants.DefaultSuspensionCeiling
	}
	if c.Risk.DecayPoints <= 0 {
		c.Risk.DecayPoints = constants.DefaultDecayPoints
	}
	if c.Risk.CleanWindowHours <= 0 {
		c.Risk.CleanWindowHours = constants.DefaultCleanWindowHours
	}
	if c.Risk.BonusCleanDays <= 0 {
		c.Risk.BonusCleanDays = constants.DefaultBonusCleanDays
	}
	if c.Risk.BonusDecayPoints <= 0 {
		c.Risk.BonusDecayPoints = constants.DefaultBonusDecayPoints
	}
	if c.Risk.DecayCronSpec == "" {
		c.Risk.DecayCronSpec = constants.DefaultDecayCronSpec
	}

	if c.ContentGate.BlockThreshold <= 0 {
		c.ContentGate.BlockThreshold = constants.DefaultContentBlockThreshold
	}
	if c.DuplicateGate.MaxRepeats <= 0 {
		c.DuplicateGate.MaxRepeats = constants.DefaultDuplicateMaxRepeats
	}
	if c.DuplicateGate.LookbackHours <= 0 {
		c.DuplicateGate.LookbackHours = constants.DefaultDuplicateLookbackHrs
	}
	if c.DuplicateGate.SimilarityThreshold <= 0 {
		c.DuplicateGate.SimilarityThreshold = constants.DefaultSimilarityThreshold
	}

	if c.Anomaly.WindowMinutes <= 0 {
		c.Anomaly.WindowMinutes = constants.DefaultAnomalyWindowMinutes
	}
	if c.Anomaly.FailureRatioThreshold <= 0 {
		c.Anomaly.FailureRatioThreshold = constants.DefaultFailureRatioThreshold
	}
	if c.Anomaly.MinWindowSamples <= 0 {
		c.Anomaly.MinWindowSamples = constants.DefaultMinWindowSamples
	}
	if c.Anomaly.ConsecutiveFailures <= 0 {
		c.Anomaly.ConsecutiveFailures = constants.DefaultConsecutiveFailures
	}
	if c.Anomaly.StalePendingMinutes <= 0 {
		c.Anomaly.StalePendingMinutes = constants.DefaultStalePendingMinutes
	}
	if c.Anomaly.StalePendingThreshold <= 0 {
		c.Anomaly.StalePendingThreshold = constants.DefaultStalePendingThreshold
	}

	if c.SendTime.WorkStartHour <= 0 {
		c.SendTime.WorkStartHour = constants.DefaultWorkStartHour
	}
	if c.SendTime.WorkEndHour <= 0 {
		c.SendTime.WorkEndHour = constants.DefaultWorkEndHour
	}
	if c.SendTime.GateThreshold <= 0 {
		c.SendTime.GateThreshold = constants.DefaultSendTimeGateThreshold
	}

	if c.Health.CheckIntervalMinutes <= 0 {
		c.Health.CheckIntervalMinutes = constants.DefaultHealthCheckIntervalMins
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryInitialBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultRetryMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultRetryMaxAttempts
	}
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("WAFLOW_GATEWAY_URL"); url != "" {
		c.Gateway.APIBaseURL = url
	}
	// Secrets come from the environment only, never the config file.
	if key := os.Getenv("WAFLOW_GATEWAY_API_KEY"); key != "" {
		c.Gateway.APIKey = key
	}
	if secret := os.Getenv("WAFLOW_WEBHOOK_SECRET"); secret != "" {
		c.Server.WebhookSecret = secret
	}
	if token := os.Getenv("WAFLOW_ADMIN_TOKEN"); token != "" {
		c.Server.AdminToken = token
	}
	if path := os.Getenv("WAFLOW_DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if level := os.Getenv("WAFLOW_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if port := os.Getenv("WAFLOW_PORT"); port != "" {
		if v, err := strconv.Atoi(port); err == nil && v > 0 {
			c.Server.Port = v
		}
	}
}

func validate(c *models.Config) error {
	if c.Gateway.APIBaseURL == "" {
		return ErrMissingGatewayURL
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}

	if c.Dispatch.PacingMaxSec < c.Dispatch.PacingMinSec {
		return models.ConfigError{Message: "pacingMaxSec must be >= pacingMinSec"}
	}
	if c.SendTime.WorkEndHour <= c.SendTime.WorkStartHour {
		return models.ConfigError{Message: "workEndHour must be after workStartHour"}
	}

	for i, tier := range c.Warmup.Tiers {
		if tier.MaxAgeDays <= 0 || tier.DailyLimit < 0 {
			return models.ConfigError{Message: fmt.Sprintf("invalid warmup tier %d", i)}
		}
		if i > 0 && tier.MaxAgeDays <= c.Warmup.Tiers[i-1].MaxAgeDays {
			return models.ConfigError{Message: "warmup tiers must be sorted by maxAgeDays ascending"}
		}
	}

	isProduction := os.Getenv("WAFLOW_ENV") == "production"
	if isProduction {
		if c.Server.WebhookSecret == "" {
			return models.ConfigError{Message: "webhook secret is required in production (set WAFLOW_WEBHOOK_SECRET)"}
		}
		if len(c.Server.WebhookSecret) < 32 {
			return models.ConfigError{Message: "webhook secret must be at least 32 characters long"}
		}
		if c.Server.AdminToken == "" {
			return models.ConfigError{Message: "admin token is required in production (set WAFLOW_ADMIN_TOKEN)"}
		}
		if c.LogLevel == "debug" {
			return models.ConfigError{Message: "debug logging should not be used in production (security risk)"}
		}
	} else if c.Server.WebhookSecret == "" {
		fmt.Fprintf(os.Stderr, "WARNING: webhook secret not set. Set WAFLOW_WEBHOOK_SECRET to authenticate gateway callbacks.\n")
	}

	return nil
}
