package constants

// Dispatch defaults
const (
	DefaultPollIntervalSec = 30
	DefaultBatchSize       = 10
	DefaultPacingMinSec    = 20
	DefaultPacingMaxSec    = 40
	DefaultComposeDelaySec = 3
	DefaultWorkerPoolSize  = 5
)

// Warmup default for accounts past the last tier
const (
	DefaultMatureDailyLimit = 200
)

// Risk engine defaults
const (
	DefaultSuspensionCeiling = 100
	DefaultDecayPoints       = 5
	DefaultCleanWindowHours  = 24
	DefaultBonusCleanDays    = 7
	DefaultBonusDecayPoints  = 10
	DefaultDecayCronSpec     = "0 3 * * *"
)

// Content and duplicate gate defaults
const (
	DefaultContentBlockThreshold = 20
	DefaultDuplicateMaxRepeats   = 5
	DefaultDuplicateLookbackHrs  = 24
	DefaultSimilarityThreshold   = 0.85
)

// Anomaly, health and send-time defaults
const (
	DefaultAnomalyWindowMinutes    = 60
	DefaultFailureRatioThreshold   = 0.5
	DefaultMinWindowSamples        = 10
	DefaultConsecutiveFailures     = 5
	DefaultStalePendingMinutes     = 30
	DefaultStalePendingThreshold   = 3
	DefaultHealthCheckIntervalMins = 15
	DefaultSendTimeGateThreshold   = 0.5
	DefaultWorkStartHour           = 9
	DefaultWorkEndHour             = 18
)

// Gateway client defaults
const (
	DefaultGatewayTimeoutSec      = 30
	DefaultGatewayRetryCount      = 3
	DefaultSessionReadyTimeoutSec = 60
	DefaultSessionPollIntervalSec = 2
	DefaultSessionMonitorSec      = 60
	DefaultContactPageSize        = 100
)

// Server defaults
const (
	DefaultServerPort            = 8084
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 30
	DefaultWebhookRateLimit      = 20.0
	DefaultWebhookRateBurst      = 40
	ServerErrorChannelSize       = 1
	DefaultEventFeedBufferSize   = 64
)

// Input validation bounds
const (
	MinPhoneNumberLength = 7
	MaxPhoneNumberLength = 20
	MaxSessionNameLength = 64
	MaxTemplateLength    = 4096
	MaxWebhookBodyBytes  = 1 << 20
)

// Retry and storage defaults
const (
	DefaultRetryInitialBackoffMs = 1000
	DefaultRetryMaxBackoffMs     = 60000
	DefaultRetryMaxAttempts      = 5
	DefaultDatabaseRetryAttempts = 3
	DefaultRetentionDays         = 90
)
