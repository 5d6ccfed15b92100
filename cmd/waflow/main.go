package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"waflow/internal/config"
	"waflow/internal/constants"
	"waflow/internal/database"
	"waflow/internal/models"
	"waflow/internal/retry"
	"waflow/internal/service"
	"waflow/internal/tracing"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes sensitive information)")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("waflow %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	// Best effort: a missing .env file is fine, the environment wins.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting waflow")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	configureLogLevel(logger, cfg)

	tracingManager := tracing.NewTracingManager(tracing.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
		UseStdout:      cfg.Tracing.UseStdout,
	}, logger)

	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// Initialize database with exponential backoff retry
	var db *database.Database
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
		Jitter:       true,
	})
	err = backoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	defer db.Close()

	gateway := newGatewayProvider(cfg.Gateway, logger)
	hub := service.NewEventHub()

	rate := service.NewRateController(cfg.Warmup)
	contentGate := service.NewContentGate(cfg.ContentGate)
	duplicateGate := service.NewDuplicateGate(db, cfg.DuplicateGate)
	riskEngine := service.NewRiskEngine(db, cfg.Risk, hub, logger)
	anomaly := service.NewAnomalyDetector(db, riskEngine, cfg.Anomaly, logger)
	engagement := service.NewEngagementTracker(db, db, logger)
	sendTime := service.NewSendTimeOptimizer(db, cfg.SendTime, logger)
	healthMonitor := service.NewHealthMonitor(db, db, db, anomaly, cfg.Health, cfg.Anomaly, logger)
	webhookProcessor := service.NewWebhookProcessor(db, db, db, engagement, anomaly, hub, logger)
	contactSync := service.NewContactSync(db, gateway, logger)

	dispatcher := service.NewDispatcher(service.DispatcherDeps{
		Accounts:  db,
		Campaigns: db,
		Messages:  db,
		Peers:     db,
		Rate:      rate,
		Content:   contentGate,
		Dupes:     duplicateGate,
		SendTime:  sendTime,
		Anomaly:   anomaly,
		Guard:     service.NewCampaignGuard(),
		Gateway:   gateway,
		Hub:       hub,
	}, cfg.Dispatch, logger)

	syncStartupContacts(ctx, db, contactSync, logger)

	scheduler, err := startScheduledJobs(cfg, db, riskEngine, engagement, logger)
	if err != nil {
		return fmt.Errorf("failed to start scheduled jobs: %w", err)
	}
	defer scheduler.Stop()

	go dispatcher.Start(ctx)
	defer dispatcher.Stop()

	go healthMonitor.Start(ctx)
	defer healthMonitor.Stop()

	sessionMonitor := service.NewSessionMonitor(db, gateway,
		time.Duration(constants.DefaultSessionMonitorSec)*time.Second, logger)
	go sessionMonitor.Start(ctx)
	defer sessionMonitor.Stop()

	server := NewServer(cfg, ServerDeps{
		DB:          db,
		Dispatcher:  dispatcher,
		Rate:        rate,
		RiskEngine:  riskEngine,
		Engagement:  engagement,
		SendTime:    sendTime,
		Health:      healthMonitor,
		Webhooks:    webhookProcessor,
		ContactSync: contactSync,
		Hub:         hub,
		Gateway:     gateway,
	}, logger)

	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	logger.Info("Server shutdown completed")
	return nil
}

func configureLogLevel(logger *logrus.Logger, cfg *models.Config) {
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
		return
	}
	if cfg.LogLevel == "" {
		logger.SetLevel(logrus.InfoLevel)
		return
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
		logger.SetLevel(logrus.InfoLevel)
		return
	}
	if level > logrus.InfoLevel {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

// startScheduledJobs wires the cron jobs: nightly risk decay, engagement
// score refresh, and message retention cleanup.
func startScheduledJobs(cfg *models.Config, db *database.Database, riskEngine *service.RiskEngine, engagement *service.EngagementTracker, logger *logrus.Logger) (*cron.Cron, error) {
	scheduler := cron.New()

	_, err := scheduler.AddFunc(cfg.Risk.DecayCronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := riskEngine.RunDecaySweep(ctx, time.Now()); err != nil {
			logger.WithError(err).Error("Risk decay sweep failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid decay cron spec %q: %w", cfg.Risk.DecayCronSpec, err)
	}

	_, err = scheduler.AddFunc("30 3 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		accounts, err := db.ListAccounts(ctx)
		if err != nil {
			logger.WithError(err).Error("Failed to list accounts for engagement refresh")
			return
		}
		now := time.Now()
		for _, account := range accounts {
			if err := engagement.RefreshScores(ctx, account.ID, now); err != nil {
				logger.WithError(err).WithField("accountId", account.ID).Error("Engagement refresh failed")
			}
		}
	})
	if err != nil {
		return nil, err
	}

	_, err = scheduler.AddFunc("0 4 * * *", func() {
		if err := db.CleanupOldMessages(cfg.RetentionDays); err != nil {
			logger.WithError(err).Error("Message retention cleanup failed")
		}
	})
	if err != nil {
		return nil, err
	}

	scheduler.Start()
	logger.WithField("decaySpec", cfg.Risk.DecayCronSpec).Info("Scheduled jobs started")
	return scheduler, nil
}

// syncStartupContacts mirrors the gateway contact list for every known
// account, a few sessions at a time so a big fleet does not hammer the
// gateway on boot.
func syncStartupContacts(ctx context.Context, db *database.Database, contactSync *service.ContactSync, logger *logrus.Logger) {
	accounts, err := db.ListAccounts(ctx)
	if err != nil {
		logger.WithError(err).Warn("Failed to list accounts for startup contact sync")
		return
	}
	if len(accounts) == 0 {
		return
	}

	semaphore := make(chan struct{}, 5)
	var wg sync.WaitGroup

	logger.WithField("accounts", len(accounts)).Info("Starting contact sync")
	for i := range accounts {
		account := accounts[i]
		if account.Status != models.AccountStatusActive {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			synced, err := contactSync.SyncAccount(ctx, &account)
			if err != nil {
				logger.WithError(err).WithField("accountId", account.ID).Warn("Startup contact sync failed")
				return
			}
			logger.WithFields(logrus.Fields{
				"accountId": account.ID,
				"synced":    synced,
			}).Info("Startup contact sync finished")
		}()
	}
	wg.Wait()
}
