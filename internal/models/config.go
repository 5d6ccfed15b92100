package models

// ConfigError indicates an invalid or incomplete configuration file.
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return "config error: " + e.Message
}

// Config is the full application configuration, loaded from JSON with
// environment overrides on top.
type Config struct {
	LogLevel      string              `json:"logLevel"`
	RetentionDays int                 `json:"retentionDays"`
	Server        ServerConfig        `json:"server"`
	Gateway       GatewayConfig       `json:"gateway"`
	Database      DatabaseConfig      `json:"database"`
	Dispatch      DispatchConfig      `json:"dispatch"`
	Warmup        WarmupConfig        `json:"warmup"`
	Risk          RiskConfig          `json:"risk"`
	ContentGate   ContentGateConfig   `json:"contentGate"`
	DuplicateGate DuplicateGateConfig `json:"duplicateGate"`
	Anomaly       AnomalyConfig       `json:"anomaly"`
	SendTime      SendTimeConfig      `json:"sendTime"`
	Health        HealthConfig        `json:"health"`
	Retry         RetryConfig         `json:"retry"`
	Tracing       TracingConfig       `json:"tracing"`
}

type ServerConfig struct {
	Port            int    `json:"port"`
	ReadTimeoutSec  int    `json:"readTimeoutSec"`
	WriteTimeoutSec int    `json:"writeTimeoutSec"`
	IdleTimeoutSec  int    `json:"idleTimeoutSec"`
	AdminToken      string `json:"-"`
	WebhookSecret   string `json:"-"`
	// Requests per second allowed on the webhook endpoint, with burst.
	WebhookRateLimit float64 `json:"webhookRateLimit"`
	WebhookRateBurst int     `json:"webhookRateBurst"`
}

type GatewayConfig struct {
	APIBaseURL string `json:"apiBaseUrl"`
	APIKey     string `json:"-"`
	TimeoutSec int    `json:"timeoutSec"`
	RetryCount int    `json:"retryCount"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

type DispatchConfig struct {
	PollIntervalSec int  `json:"pollIntervalSec"`
	BatchSize       int  `json:"batchSize"`
	PacingMinSec    int  `json:"pacingMinSec"`
	PacingMaxSec    int  `json:"pacingMaxSec"`
	ComposeDelaySec int  `json:"composeDelaySec"`
	WorkerPoolSize  int  `json:"workerPoolSize"`
	TypingIndicator bool `json:"typingIndicator"`
}

// WarmupTier caps daily volume for accounts connected at most MaxAgeDays.
type WarmupTier struct {
	MaxAgeDays int `json:"maxAgeDays"`
	DailyLimit int `json:"dailyLimit"`
}

type WarmupConfig struct {
	// Tiers must be sorted by MaxAgeDays ascending. Accounts older than
	// the last tier get MatureLimit.
	Tiers       []WarmupTier `json:"tiers"`
	MatureLimit int          `json:"matureLimit"`
}

type RiskConfig struct {
	SuspensionCeiling int    `json:"suspensionCeiling"`
	DecayPoints       int    `json:"decayPoints"`
	CleanWindowHours  int    `json:"cleanWindowHours"`
	BonusCleanDays    int    `json:"bonusCleanDays"`
	BonusDecayPoints  int    `json:"bonusDecayPoints"`
	DecayCronSpec     string `json:"decayCronSpec"`
}

type ContentGateConfig struct {
	BlockThreshold int `json:"blockThreshold"`
}

type DuplicateGateConfig struct {
	MaxRepeats          int     `json:"maxRepeats"`
	LookbackHours       int     `json:"lookbackHours"`
	SimilarityThreshold float64 `json:"similarityThreshold"`
}

type AnomalyConfig struct {
	WindowMinutes         int     `json:"windowMinutes"`
	FailureRatioThreshold float64 `json:"failureRatioThreshold"`
	MinWindowSamples      int     `json:"minWindowSamples"`
	ConsecutiveFailures   int     `json:"consecutiveFailures"`
	StalePendingMinutes   int     `json:"stalePendingMinutes"`
	StalePendingThreshold int     `json:"stalePendingThreshold"`
}

type SendTimeConfig struct {
	Enabled       bool    `json:"enabled"`
	WorkStartHour int     `json:"workStartHour"`
	WorkEndHour   int     `json:"workEndHour"`
	GateThreshold float64 `json:"gateThreshold"`
}

type HealthConfig struct {
	CheckIntervalMinutes int `json:"checkIntervalMinutes"`
}

type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	UseStdout      bool    `json:"useStdout"`
	ServiceName    string  `json:"serviceName"`
	ServiceVersion string  `json:"serviceVersion"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlpEndpoint"`
	SampleRate     float64 `json:"sampleRate"`
}
