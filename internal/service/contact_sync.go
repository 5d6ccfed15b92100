package service

import (
	"context"
	"fmt"
	"strings"

	"waflow/internal/constants"
	"waflow/internal/models"
	"waflow/internal/privacy"

	"github.com/sirupsen/logrus"
)

// ContactSync mirrors the gateway's contact list into the peers table.
// Contacts that disappear from the gateway are soft deleted and restored
// automatically if they come back.
type ContactSync struct {
	peers   PeerStore
	gateway GatewayProvider
	logger  *logrus.Logger
}

func NewContactSync(peers PeerStore, gateway GatewayProvider, logger *logrus.Logger) *ContactSync {
	return &ContactSync{
		peers:   peers,
		gateway: gateway,
		logger:  logger,
	}
}

// SyncAccount pages through the gateway contact list and upserts each
// entry as a peer. Returns the number of contacts seen.
func (s *ContactSync) SyncAccount(ctx context.Context, account *models.Account) (int, error) {
	client := s.gateway.ClientFor(account.SessionName)

	seen := make(map[string]struct{})
	offset := 0
	for {
		contacts, err := client.GetAllContacts(ctx, constants.DefaultContactPageSize, offset)
		if err != nil {
			return len(seen), fmt.Errorf("failed to list contacts: %w", err)
		}
		if len(contacts) == 0 {
			break
		}

		for i := range contacts {
			contact := &contacts[i]
			if contact.IsGroup || contact.IsBlocked {
				continue
			}

			peer := &models.Peer{
				AccountID:   account.ID,
				ChatID:      contact.ID,
				PhoneNumber: contact.Number,
				Name:        contact.DisplayName(),
			}
			if err := s.peers.UpsertPeer(ctx, peer); err != nil {
				s.logger.WithError(err).WithField("chatId", privacy.MaskChatID(contact.ID)).Warn("Failed to upsert peer")
				continue
			}
			seen[contact.ID] = struct{}{}
		}

		if len(contacts) < constants.DefaultContactPageSize {
			break
		}
		offset += constants.DefaultContactPageSize
	}

	s.softDeleteMissing(ctx, account.ID, seen)

	s.logger.WithFields(logrus.Fields{
		"accountId": account.ID,
		"contacts":  len(seen),
	}).Info("Contact sync finished")
	return len(seen), nil
}

func (s *ContactSync) softDeleteMissing(ctx context.Context, accountID int64, seen map[string]struct{}) {
	existing, err := s.peers.ListPeerChatIDs(ctx, accountID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list peers for sync removal")
		return
	}

	for _, chatID := range existing {
		if _, ok := seen[chatID]; ok {
			continue
		}
		if err := s.peers.SoftDeletePeer(ctx, accountID, chatID); err != nil {
			s.logger.WithError(err).WithField("chatId", privacy.MaskChatID(chatID)).Warn("Failed to soft delete peer")
		}
	}
}

// ValidatePeer asks the gateway whether the peer's phone number is
// registered and stores the outcome.
func (s *ContactSync) ValidatePeer(ctx context.Context, account *models.Account, chatID string) (bool, error) {
	phone := strings.TrimSuffix(chatID, "@c.us")

	client := s.gateway.ClientFor(account.SessionName)
	status, err := client.CheckNumberStatus(ctx, phone)
	if err != nil {
		return false, fmt.Errorf("failed to check number status: %w", err)
	}

	if err := s.peers.SetPeerValidated(ctx, account.ID, chatID, status.NumberExists); err != nil {
		return status.NumberExists, fmt.Errorf("failed to store validation: %w", err)
	}
	return status.NumberExists, nil
}
