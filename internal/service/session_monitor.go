package service

import (
	"context"
	"time"

	"waflow/internal/models"
	"waflow/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
)

// SessionMonitor is the polling backstop behind the session.status
// webhook: it probes each account's gateway session on an interval and
// reconciles the stored status when a webhook was missed. Suspended
// accounts are probed but never reactivated.
type SessionMonitor struct {
	accounts      AccountStore
	gateway       GatewayProvider
	logger        *logrus.Logger
	checkInterval time.Duration
	stopCh        chan struct{}
}

func NewSessionMonitor(accounts AccountStore, gateway GatewayProvider, checkInterval time.Duration, logger *logrus.Logger) *SessionMonitor {
	if checkInterval <= 0 {
		checkInterval = 5 * time.Minute
	}
	return &SessionMonitor{
		accounts:      accounts,
		gateway:       gateway,
		logger:        logger,
		checkInterval: checkInterval,
		stopCh:        make(chan struct{}),
	}
}

func (m *SessionMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	m.logger.WithField("interval", m.checkInterval).Info("Starting session monitor")

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Session monitor context cancelled, stopping")
			return
		case <-m.stopCh:
			m.logger.Info("Session monitor stop signal received, stopping")
			return
		case <-ticker.C:
			m.checkSessions(ctx)
		}
	}
}

func (m *SessionMonitor) Stop() {
	close(m.stopCh)
}

func (m *SessionMonitor) checkSessions(ctx context.Context) {
	accounts, err := m.accounts.ListAccounts(ctx)
	if err != nil {
		m.logger.WithError(err).Error("Failed to list accounts for session check")
		return
	}

	for i := range accounts {
		account := &accounts[i]
		if account.Status == models.AccountStatusPending || account.Status == models.AccountStatusSuspended {
			continue
		}
		m.reconcile(ctx, account)
	}
}

func (m *SessionMonitor) reconcile(ctx context.Context, account *models.Account) {
	log := m.logger.WithFields(logrus.Fields{
		"accountId": account.ID,
		"session":   account.SessionName,
	})

	client := m.gateway.ClientFor(account.SessionName)
	session, err := client.GetSessionStatus(ctx)
	if err != nil {
		log.WithError(err).Warn("Session probe failed")
		if account.Status == models.AccountStatusActive {
			if err := m.accounts.SetAccountOffline(ctx, account.ID); err != nil {
				log.WithError(err).Error("Failed to mark unreachable account offline")
			}
		}
		return
	}

	working := session.Status == types.SessionStatusWorking
	switch {
	case working && account.Status != models.AccountStatusActive:
		if err := m.accounts.SetAccountConnected(ctx, account.ID, time.Now()); err != nil {
			log.WithError(err).Error("Failed to reconcile account to active")
			return
		}
		log.Info("Session reconciled to active")
	case !working && account.Status == models.AccountStatusActive:
		if err := m.accounts.SetAccountOffline(ctx, account.ID); err != nil {
			log.WithError(err).Error("Failed to reconcile account to offline")
			return
		}
		log.WithField("gatewayStatus", session.Status).Info("Session reconciled to offline")
	}
}
