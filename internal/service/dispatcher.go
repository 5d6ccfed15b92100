package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"waflow/internal/constants"
	apperrors "waflow/internal/errors"
	"waflow/internal/metrics"
	"waflow/internal/models"
	"waflow/internal/privacy"
	"waflow/internal/tracing"
	"waflow/pkg/whatsapp/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Dispatcher is the periodic wake-up driver. Each pass lists running
// campaigns on active accounts, oldest start first, and hands each one
// to a bounded worker pool. Within a campaign, sends are strictly
// sequential with randomized pacing between them; the pacing is the
// anti-detection control, so there is never inner concurrency.
type Dispatcher struct {
	accounts  AccountStore
	campaigns CampaignStore
	messages  MessageStore
	peers     PeerStore

	rate     *RateController
	content  *ContentGate
	dupes    *DuplicateGate
	sendTime *SendTimeOptimizer
	anomaly  *AnomalyDetector
	guard    CampaignGuard
	gateway  GatewayProvider
	hub      *EventHub

	cfg    models.DispatchConfig
	logger *logrus.Logger

	rng    *rand.Rand
	rngMu  sync.Mutex
	slots  chan struct{}
	wg     sync.WaitGroup
	stopCh chan struct{}
}

// DispatcherDeps bundles the collaborators the dispatcher orchestrates.
type DispatcherDeps struct {
	Accounts  AccountStore
	Campaigns CampaignStore
	Messages  MessageStore
	Peers     PeerStore
	Rate      *RateController
	Content   *ContentGate
	Dupes     *DuplicateGate
	SendTime  *SendTimeOptimizer
	Anomaly   *AnomalyDetector
	Guard     CampaignGuard
	Gateway   GatewayProvider
	Hub       *EventHub
}

func NewDispatcher(deps DispatcherDeps, cfg models.DispatchConfig, logger *logrus.Logger) *Dispatcher {
	if cfg.PollIntervalSec <= 0 {
		cfg.PollIntervalSec = constants.DefaultPollIntervalSec
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = constants.DefaultBatchSize
	}
	if cfg.PacingMinSec <= 0 {
		cfg.PacingMinSec = constants.DefaultPacingMinSec
	}
	if cfg.PacingMaxSec < cfg.PacingMinSec {
		cfg.PacingMaxSec = cfg.PacingMinSec + (constants.DefaultPacingMaxSec - constants.DefaultPacingMinSec)
	}
	if cfg.ComposeDelaySec <= 0 {
		cfg.ComposeDelaySec = constants.DefaultComposeDelaySec
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = constants.DefaultWorkerPoolSize
	}

	return &Dispatcher{
		accounts:  deps.Accounts,
		campaigns: deps.Campaigns,
		messages:  deps.Messages,
		peers:     deps.Peers,
		rate:      deps.Rate,
		content:   deps.Content,
		dupes:     deps.Dupes,
		sendTime:  deps.SendTime,
		anomaly:   deps.Anomaly,
		guard:     deps.Guard,
		gateway:   deps.Gateway,
		hub:       deps.Hub,
		cfg:       cfg,
		logger:    logger,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		slots:     make(chan struct{}, cfg.WorkerPoolSize),
		stopCh:    make(chan struct{}),
	}
}

// Start runs the poll loop: an immediate pass, then one per interval,
// until the context is cancelled or Stop is called. It returns after
// all in-flight campaign tasks have drained.
func (d *Dispatcher) Start(ctx context.Context) {
	interval := time.Duration(d.cfg.PollIntervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.logger.WithFields(logrus.Fields{
		"interval": interval,
		"workers":  d.cfg.WorkerPoolSize,
	}).Info("Starting dispatcher")

	d.runPass(ctx)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Dispatcher context cancelled, draining")
			d.wg.Wait()
			return
		case <-d.stopCh:
			d.logger.Info("Dispatcher stop signal received, draining")
			d.wg.Wait()
			return
		case <-ticker.C:
			d.runPass(ctx)
		}
	}
}

// Stop signals the poll loop to exit. Start returns once running
// campaign tasks finish.
func (d *Dispatcher) Stop() {
	close(d.stopCh)
}

// DispatcherStatus is a point-in-time snapshot for the operator API.
type DispatcherStatus struct {
	PollIntervalSec int  `json:"pollIntervalSec"`
	WorkerPoolSize  int  `json:"workerPoolSize"`
	ActiveWorkers   int  `json:"activeWorkers"`
	BatchSize       int  `json:"batchSize"`
	PacingMinSec    int  `json:"pacingMinSec"`
	PacingMaxSec    int  `json:"pacingMaxSec"`
	TypingIndicator bool `json:"typingIndicator"`
}

func (d *Dispatcher) Status() DispatcherStatus {
	return DispatcherStatus{
		PollIntervalSec: d.cfg.PollIntervalSec,
		WorkerPoolSize:  d.cfg.WorkerPoolSize,
		ActiveWorkers:   len(d.slots),
		BatchSize:       d.cfg.BatchSize,
		PacingMinSec:    d.cfg.PacingMinSec,
		PacingMaxSec:    d.cfg.PacingMaxSec,
		TypingIndicator: d.cfg.TypingIndicator,
	}
}

// runPass fans eligible campaigns out to the worker pool. Campaigns
// already mid-batch are skipped by the guard; when the pool is full the
// remaining campaigns wait for the next pass rather than queueing.
func (d *Dispatcher) runPass(ctx context.Context) {
	campaigns, err := d.campaigns.ListDispatchableCampaigns(ctx)
	if err != nil {
		d.logger.WithError(err).Error("Failed to list dispatchable campaigns")
		return
	}

	for i := range campaigns {
		campaign := campaigns[i]

		if !d.guard.TryAcquire(campaign.ID) {
			continue
		}

		select {
		case d.slots <- struct{}{}:
		case <-ctx.Done():
			d.guard.Release(campaign.ID)
			return
		default:
			d.guard.Release(campaign.ID)
			d.logger.WithField("campaignId", campaign.ID).Debug("Worker pool full, deferring campaign")
			continue
		}

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			defer func() { <-d.slots }()
			defer d.guard.Release(campaign.ID)
			d.processCampaign(ctx, &campaign)
		}()
	}
}

func (d *Dispatcher) processCampaign(ctx context.Context, campaign *models.Campaign) {
	ctx, span := tracing.StartSpan(ctx, "dispatcher.processCampaign",
		attribute.Int64("campaign.id", campaign.ID),
		attribute.Int64("account.id", campaign.AccountID),
	)
	defer span.End()

	log := d.logger.WithFields(logrus.Fields{
		"campaignId": campaign.ID,
		"accountId":  campaign.AccountID,
	})

	account, err := d.accounts.GetAccount(ctx, campaign.AccountID)
	if err != nil {
		log.WithError(err).Error("Failed to load campaign account")
		tracing.RecordError(ctx, err)
		return
	}
	if account == nil || account.Status != models.AccountStatusActive {
		log.Debug("Account no longer active, skipping campaign")
		return
	}

	now := time.Now()
	limit := d.rate.DailyLimit(account, now)
	sentToday, err := d.messages.CountSentToday(ctx, account.ID, now)
	if err != nil {
		log.WithError(err).Error("Failed to count today's sends")
		tracing.RecordError(ctx, err)
		return
	}

	remaining := limit - sentToday
	if remaining <= 0 {
		log.WithFields(logrus.Fields{"limit": limit, "sentToday": sentToday}).Debug("Daily quota exhausted")
		return
	}

	batch := remaining
	if batch > d.cfg.BatchSize {
		batch = d.cfg.BatchSize
	}

	recipients, err := d.campaigns.GetPendingRecipients(ctx, campaign.ID, batch)
	if err != nil {
		log.WithError(err).Error("Failed to fetch pending recipients")
		tracing.RecordError(ctx, err)
		return
	}
	if len(recipients) == 0 {
		d.checkCompletion(ctx, campaign, log)
		return
	}

	if d.sendTime != nil && d.sendTime.Enabled() {
		if !d.sendTime.ShouldSendNow(ctx, account.ID, recipients[0].ChatID, now) {
			log.Debug("Send-time gate below threshold, deferring batch")
			return
		}
	}

	client := d.gateway.ClientFor(account.SessionName)

	for i := range recipients {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		default:
		}

		recipient := &recipients[i]
		attempted := d.dispatchOne(ctx, account, campaign, recipient, client, log)

		// Pacing applies only after a real gateway attempt; gate
		// rejections consume no quota and no pacing delay.
		if attempted && i < len(recipients)-1 {
			if !d.pace(ctx) {
				return
			}
		}
	}

	d.checkCompletion(ctx, campaign, log)
}

// dispatchOne handles a single recipient end to end and reports whether
// a gateway send was actually attempted.
func (d *Dispatcher) dispatchOne(ctx context.Context, account *models.Account, campaign *models.Campaign, recipient *models.Recipient, client types.GatewayClient, log *logrus.Entry) bool {
	body := RenderTemplate(campaign.Template, recipient.Attributes)

	content := d.content.Assess(body)
	if content.Blocked {
		d.blockRecipient(ctx, campaign, recipient, apperrors.NewContentBlockedError(content.Score, content.Reasons).Error(), log)
		return false
	}

	dup, err := d.dupes.Check(ctx, account.ID, body, time.Now())
	if err != nil {
		log.WithError(err).WithField("recipientId", recipient.ID).Error("Duplicate check failed")
		return false
	}
	if dup.Blocked {
		d.blockRecipient(ctx, campaign, recipient, apperrors.NewDuplicateBlockedError(dup.ContentHash, dup.RecentCount, d.dupes.MaxRepeats()).Error(), log)
		return false
	}
	if dup.NearDuplicate {
		log.WithFields(logrus.Fields{
			"recipientId": recipient.ID,
			"similarity":  dup.Similarity,
		}).Warn("Near-duplicate content, sending anyway")
	}

	msg := &models.Message{
		ID:          uuid.New().String(),
		AccountID:   account.ID,
		CampaignID:  campaign.ID,
		RecipientID: recipient.ID,
		ChatID:      recipient.ChatID,
		Body:        body,
		ContentHash: dup.ContentHash,
		Status:      models.MessageStatusPending,
	}
	if err := d.messages.CreateMessage(ctx, msg); err != nil {
		log.WithError(err).WithField("recipientId", recipient.ID).Error("Failed to create message")
		return false
	}

	if d.cfg.TypingIndicator {
		if err := client.StartTyping(ctx, recipient.ChatID); err != nil {
			log.WithError(err).Debug("Typing indicator failed")
		}
	}
	if !d.sleep(ctx, time.Duration(d.cfg.ComposeDelaySec)*time.Second) {
		return false
	}
	if d.cfg.TypingIndicator {
		if err := client.StopTyping(ctx, recipient.ChatID); err != nil {
			log.WithError(err).Debug("Stopping typing indicator failed")
		}
	}

	resp, sendErr := client.SendText(ctx, recipient.ChatID, body)
	now := time.Now()

	if sendErr != nil {
		if err := d.messages.MarkMessageFailed(ctx, msg.ID, sendErr.Error()); err != nil {
			log.WithError(err).WithField("messageId", msg.ID).Error("Failed to record send failure")
		}
		log.WithError(sendErr).WithField("recipientId", recipient.ID).Warn("Gateway send failed")
		metrics.IncrementCounter("messages_failed_total", map[string]string{"session": account.SessionName}, "Failed gateway sends")
		d.anomaly.RecordSendFailure(ctx, account.ID, sendErr)
		d.publish(EventMessageFailed, account.ID, campaign.ID, map[string]string{"error": sendErr.Error()})
		return true
	}

	if err := d.messages.MarkMessageSent(ctx, msg.ID, resp.MessageID, now); err != nil {
		log.WithError(err).WithField("messageId", msg.ID).Error("Failed to record send success")
		return true
	}

	if err := d.peers.SetPeerLastOutbound(ctx, account.ID, recipient.ChatID, now); err != nil {
		log.WithError(err).Debug("Failed to stamp peer last outbound")
	}
	if err := d.accounts.TouchAccountActivity(ctx, account.ID, now); err != nil {
		log.WithError(err).Debug("Failed to touch account activity")
	}

	log.WithFields(logrus.Fields{
		"chatId":    privacy.MaskChatID(recipient.ChatID),
		"messageId": privacy.MaskMessageID(resp.MessageID),
	}).Info("Message sent")
	metrics.IncrementCounter("messages_sent_total", map[string]string{"session": account.SessionName}, "Delivered gateway sends")
	d.publish(EventMessageSent, account.ID, campaign.ID, map[string]string{"chatId": recipient.ChatID})
	return true
}

func (d *Dispatcher) blockRecipient(ctx context.Context, campaign *models.Campaign, recipient *models.Recipient, reason string, log *logrus.Entry) {
	if err := d.campaigns.MarkRecipientBlocked(ctx, recipient.ID, reason); err != nil {
		log.WithError(err).WithField("recipientId", recipient.ID).Error("Failed to mark recipient blocked")
		return
	}
	log.WithFields(logrus.Fields{
		"recipientId": recipient.ID,
		"reason":      reason,
	}).Info("Recipient blocked before send")
	d.publish(EventRecipientBlocked, campaign.AccountID, campaign.ID, map[string]string{"reason": reason})
}

func (d *Dispatcher) checkCompletion(ctx context.Context, campaign *models.Campaign, log *logrus.Entry) {
	completed, err := d.campaigns.CompleteCampaignIfDone(ctx, campaign.ID)
	if err != nil {
		log.WithError(err).Error("Completion check failed")
		tracing.SetSpanStatus(ctx, codes.Error, "completion check failed")
		return
	}
	if completed {
		log.Info("Campaign completed")
		d.publish(EventCampaignComplete, campaign.AccountID, campaign.ID, nil)
	}
}

// pace sleeps a uniform random interval inside the configured range.
func (d *Dispatcher) pace(ctx context.Context) bool {
	d.rngMu.Lock()
	spread := d.cfg.PacingMaxSec - d.cfg.PacingMinSec + 1
	delay := time.Duration(d.cfg.PacingMinSec+d.rng.Intn(spread)) * time.Second
	d.rngMu.Unlock()
	return d.sleep(ctx, delay)
}

func (d *Dispatcher) sleep(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-d.stopCh:
		return false
	case <-timer.C:
		return true
	}
}

func (d *Dispatcher) publish(eventType string, accountID, campaignID int64, detail map[string]string) {
	if d.hub == nil {
		return
	}
	d.hub.Publish(Event{
		Type:       eventType,
		AccountID:  accountID,
		CampaignID: campaignID,
		Detail:     detail,
	})
}
