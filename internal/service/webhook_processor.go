package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"waflow/internal/models"
	"waflow/internal/privacy"

	"github.com/sirupsen/logrus"
)

// WebhookProcessor applies asynchronous gateway events to governor
// state. Callers ack the HTTP callback first and invoke this after; a
// processing failure is logged, never returned to the gateway.
type WebhookProcessor struct {
	accounts   AccountStore
	messages   MessageStore
	peers      PeerStore
	engagement *EngagementTracker
	anomaly    *AnomalyDetector
	hub        *EventHub
	logger     *logrus.Logger
}

func NewWebhookProcessor(accounts AccountStore, messages MessageStore, peers PeerStore, engagement *EngagementTracker, anomaly *AnomalyDetector, hub *EventHub, logger *logrus.Logger) *WebhookProcessor {
	return &WebhookProcessor{
		accounts:   accounts,
		messages:   messages,
		peers:      peers,
		engagement: engagement,
		anomaly:    anomaly,
		hub:        hub,
		logger:     logger,
	}
}

// Process routes one gateway webhook payload by event type.
func (p *WebhookProcessor) Process(ctx context.Context, payload *models.GatewayWebhookPayload) error {
	switch payload.Event {
	case models.EventSessionStatus:
		return p.handleSessionStatus(ctx, payload)
	case models.EventMessageACK:
		return p.handleMessageACK(ctx, payload)
	case models.EventMessage:
		return p.handleInboundMessage(ctx, payload)
	default:
		p.logger.WithField("event", payload.Event).Debug("Ignoring unhandled webhook event")
		return nil
	}
}

// handleSessionStatus flips the account between active and offline.
// WORKING stamps connectedAt (preserved across reconnects); any
// terminal state clears it. Suspended accounts are never reactivated
// from here.
func (p *WebhookProcessor) handleSessionStatus(ctx context.Context, payload *models.GatewayWebhookPayload) error {
	sessionName := payload.Payload.Name
	if sessionName == "" {
		sessionName = payload.Session
	}

	account, err := p.accounts.GetAccountBySession(ctx, sessionName)
	if err != nil {
		return fmt.Errorf("failed to resolve session account: %w", err)
	}
	if account == nil {
		return fmt.Errorf("no account found for session %q", sessionName)
	}

	status := strings.ToUpper(payload.Payload.Status)
	log := p.logger.WithFields(logrus.Fields{
		"accountId": account.ID,
		"session":   sessionName,
		"status":    status,
	})

	switch status {
	case "WORKING":
		if account.Status == models.AccountStatusSuspended {
			log.Warn("Session came up for suspended account, leaving suspended")
			return nil
		}
		if err := p.accounts.SetAccountConnected(ctx, account.ID, time.Now()); err != nil {
			return fmt.Errorf("failed to mark account connected: %w", err)
		}
		log.Info("Account session connected")
	case "STOPPED", "FAILED":
		if err := p.accounts.SetAccountOffline(ctx, account.ID); err != nil {
			return fmt.Errorf("failed to mark account offline: %w", err)
		}
		log.Info("Account session disconnected")
	default:
		log.Debug("Transient session state ignored")
		return nil
	}

	if p.hub != nil {
		p.hub.Publish(Event{
			Type:      EventAccountStatus,
			AccountID: account.ID,
			Detail:    map[string]string{"sessionStatus": status},
		})
	}
	return nil
}

// handleMessageACK advances delivery state for the acked message.
// Regressive acks are rejected by the store and logged at debug.
func (p *WebhookProcessor) handleMessageACK(ctx context.Context, payload *models.GatewayWebhookPayload) error {
	if payload.Payload.ACK == nil {
		return nil
	}

	var next models.MessageStatus
	switch *payload.Payload.ACK {
	case models.ACKDevice:
		next = models.MessageStatusDelivered
	case models.ACKRead, models.ACKPlayed:
		next = models.MessageStatusRead
	case models.ACKError:
		return p.handleErrorACK(ctx, payload)
	default:
		return nil
	}

	at := time.Now()
	if payload.Payload.Timestamp > 0 {
		at = time.Unix(payload.Payload.Timestamp, 0)
	}

	if err := p.messages.AdvanceMessageStatus(ctx, payload.Payload.ID, next, at); err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"gatewayMessageId": privacy.MaskMessageID(payload.Payload.ID),
			"next":             next,
		}).Debug("ACK did not advance message status")
		return nil
	}

	if next == models.MessageStatusRead && p.engagement != nil {
		account, err := p.accounts.GetAccountBySession(ctx, payload.Session)
		if err == nil && account != nil {
			chatID := payload.Payload.To
			if chatID == "" {
				chatID = payload.Payload.From
			}
			if err := p.engagement.HandleReadAck(ctx, account.ID, chatID); err != nil {
				p.logger.WithError(err).Debug("Failed to record read ack for peer")
			}
		}
	}
	return nil
}

// handleErrorACK records a send failure the gateway reported only after
// the synchronous send call had succeeded. The message and its campaign
// counters flip to failed, and the failure feeds the anomaly window the
// same way an inline send error does.
func (p *WebhookProcessor) handleErrorACK(ctx context.Context, payload *models.GatewayWebhookPayload) error {
	msg, err := p.messages.GetMessageByGatewayID(ctx, payload.Payload.ID)
	if err != nil {
		return fmt.Errorf("failed to resolve acked message: %w", err)
	}
	if msg == nil {
		p.logger.WithField("gatewayMessageId", privacy.MaskMessageID(payload.Payload.ID)).Debug("Error ack for unknown message")
		return nil
	}
	if msg.Status != models.MessageStatusPending && msg.Status != models.MessageStatusSent {
		// Already failed, or already confirmed delivered/read; a late
		// error ack cannot unwind either.
		return nil
	}

	const reason = "gateway reported send error"
	if err := p.messages.MarkMessageFailed(ctx, msg.ID, reason); err != nil {
		return fmt.Errorf("failed to record error ack: %w", err)
	}
	p.logger.WithFields(logrus.Fields{
		"accountId":        msg.AccountID,
		"gatewayMessageId": privacy.MaskMessageID(payload.Payload.ID),
	}).Warn("Gateway error ack failed message")

	if p.hub != nil {
		p.hub.Publish(Event{
			Type:       EventMessageFailed,
			AccountID:  msg.AccountID,
			CampaignID: msg.CampaignID,
			Detail:     map[string]string{"error": reason},
		})
	}
	if p.anomaly != nil {
		p.anomaly.RecordSendFailure(ctx, msg.AccountID, fmt.Errorf("%s for message %s", reason, msg.ID))
	}
	return nil
}

// handleInboundMessage routes replies to the engagement tracker. Echoes
// of our own messages only refresh the last-outbound marker.
func (p *WebhookProcessor) handleInboundMessage(ctx context.Context, payload *models.GatewayWebhookPayload) error {
	account, err := p.accounts.GetAccountBySession(ctx, payload.Session)
	if err != nil {
		return fmt.Errorf("failed to resolve session account: %w", err)
	}
	if account == nil {
		return fmt.Errorf("no account found for session %q", payload.Session)
	}

	at := time.Now()
	if payload.Payload.Timestamp > 0 {
		at = time.Unix(payload.Payload.Timestamp, 0)
	}

	if payload.Payload.FromMe {
		// A self-sent message from another device still counts as
		// outbound contact for the fast-reply window.
		if err := p.peers.SetPeerLastOutbound(ctx, account.ID, payload.Payload.To, at); err != nil {
			p.logger.WithError(err).Debug("Failed to refresh last outbound marker")
		}
		return nil
	}

	if err := p.engagement.HandleReply(ctx, account.ID, payload.Payload.From, at); err != nil {
		return fmt.Errorf("failed to track reply: %w", err)
	}
	return nil
}
