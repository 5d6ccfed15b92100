package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"waflow/internal/models"
)

const peerColumns = `id, account_id, chat_id, phone_number, name, engagement_score, reply_count,
	read_count, complaint_count, last_reply_at, last_outbound_at, whatsapp_validated, is_deleted,
	created_at, updated_at`

func (d *Database) scanPeer(row interface {
	Scan(dest ...interface{}) error
}) (*models.Peer, error) {
	p := &models.Peer{}
	var encPhone, encName string
	err := row.Scan(
		&p.ID,
		&p.AccountID,
		&p.ChatID,
		&encPhone,
		&encName,
		&p.EngagementScore,
		&p.ReplyCount,
		&p.ReadCount,
		&p.ComplaintCount,
		&p.LastReplyAt,
		&p.LastOutboundAt,
		&p.Validated,
		&p.IsDeleted,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan peer: %w", err)
	}

	p.PhoneNumber, err = d.encryptor.DecryptIfEnabled(encPhone)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt phone number: %w", err)
	}
	p.Name, err = d.encryptor.DecryptIfEnabled(encName)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt peer name: %w", err)
	}
	return p, nil
}

// UpsertPeer inserts or refreshes a peer from contact sync. A previously
// soft-deleted peer that reappears is restored; engagement counters and
// the validation flag are preserved on conflict, since sync only knows
// the contact's current name and number.
func (d *Database) UpsertPeer(ctx context.Context, peer *models.Peer) error {
	encPhone, err := d.encryptor.EncryptIfEnabled(peer.PhoneNumber)
	if err != nil {
		return fmt.Errorf("failed to encrypt phone number: %w", err)
	}
	encName, err := d.encryptor.EncryptIfEnabled(peer.Name)
	if err != nil {
		return fmt.Errorf("failed to encrypt peer name: %w", err)
	}

	return retryDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, `
			INSERT INTO peers (account_id, chat_id, phone_number, name, whatsapp_validated)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(account_id, chat_id) DO UPDATE SET
				phone_number = excluded.phone_number,
				name = excluded.name,
				is_deleted = 0,
				updated_at = CURRENT_TIMESTAMP`,
			peer.AccountID, peer.ChatID, encPhone, encName, peer.Validated)
		if err != nil {
			return fmt.Errorf("failed to upsert peer: %w", err)
		}
		return nil
	}, "upsert peer")
}

func (d *Database) GetPeer(ctx context.Context, accountID int64, chatID string) (*models.Peer, error) {
	query := `SELECT ` + peerColumns + ` FROM peers WHERE account_id = ? AND chat_id = ?`
	return d.scanPeer(d.db.QueryRowContext(ctx, query, accountID, chatID))
}

// RecordPeerReply bumps reply bookkeeping and stores the recomputed
// score in one statement.
func (d *Database) RecordPeerReply(ctx context.Context, accountID int64, chatID string, score int, at time.Time) error {
	return retryDBOperation(ctx, func() error {
		res, err := d.db.ExecContext(ctx, `
			UPDATE peers
			SET reply_count = reply_count + 1,
			    last_reply_at = ?,
			    engagement_score = ?,
			    updated_at = CURRENT_TIMESTAMP
			WHERE account_id = ? AND chat_id = ?`,
			at.UTC(), score, accountID, chatID)
		if err != nil {
			return fmt.Errorf("failed to record peer reply: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("no peer found for account %d chat %s", accountID, chatID)
		}
		return nil
	}, "record peer reply")
}

func (d *Database) SetPeerEngagementScore(ctx context.Context, peerID int64, score int) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE peers SET engagement_score = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		score, peerID)
	if err != nil {
		return fmt.Errorf("failed to set engagement score: %w", err)
	}
	return nil
}

func (d *Database) SetPeerLastOutbound(ctx context.Context, accountID int64, chatID string, at time.Time) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE peers SET last_outbound_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE account_id = ? AND chat_id = ?`,
		at.UTC(), accountID, chatID)
	if err != nil {
		return fmt.Errorf("failed to set last outbound: %w", err)
	}
	return nil
}

func (d *Database) IncrementPeerReadCount(ctx context.Context, accountID int64, chatID string) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE peers SET read_count = read_count + 1, updated_at = CURRENT_TIMESTAMP
		WHERE account_id = ? AND chat_id = ?`, accountID, chatID)
	if err != nil {
		return fmt.Errorf("failed to increment read count: %w", err)
	}
	return nil
}

// SetPeerValidated records the outcome of a gateway registration check.
func (d *Database) SetPeerValidated(ctx context.Context, accountID int64, chatID string, validated bool) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE peers SET whatsapp_validated = ?, updated_at = CURRENT_TIMESTAMP
		WHERE account_id = ? AND chat_id = ?`, validated, accountID, chatID)
	if err != nil {
		return fmt.Errorf("failed to set peer validation: %w", err)
	}
	return nil
}

// SoftDeletePeer marks a peer removed by contact sync; it stays
// restorable via UpsertPeer.
func (d *Database) SoftDeletePeer(ctx context.Context, accountID int64, chatID string) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE peers SET is_deleted = 1, updated_at = CURRENT_TIMESTAMP
		WHERE account_id = ? AND chat_id = ?`, accountID, chatID)
	if err != nil {
		return fmt.Errorf("failed to soft delete peer: %w", err)
	}
	return nil
}

// ListTopPeers returns live peers ranked by engagement score, highest
// first, for campaign prioritization.
func (d *Database) ListTopPeers(ctx context.Context, accountID int64, limit int) ([]models.Peer, error) {
	if limit <= 0 {
		limit = 1000
	}
	query := `SELECT ` + peerColumns + ` FROM peers
		WHERE account_id = ? AND is_deleted = 0
		ORDER BY engagement_score DESC, reply_count DESC
		LIMIT ?`
	rows, err := d.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list top peers: %w", err)
	}
	defer rows.Close()

	var peers []models.Peer
	for rows.Next() {
		p, err := d.scanPeer(rows)
		if err != nil {
			return nil, err
		}
		peers = append(peers, *p)
	}
	return peers, rows.Err()
}

// ListPeerChatIDs returns the chat IDs of every live peer, with none of
// the ranking or row cap of ListTopPeers. Contact sync prunes against
// this so accounts of any size get fully reconciled.
func (d *Database) ListPeerChatIDs(ctx context.Context, accountID int64) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT chat_id FROM peers WHERE account_id = ? AND is_deleted = 0`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list peer chat IDs: %w", err)
	}
	defer rows.Close()

	var chatIDs []string
	for rows.Next() {
		var chatID string
		if err := rows.Scan(&chatID); err != nil {
			return nil, fmt.Errorf("failed to scan chat ID: %w", err)
		}
		chatIDs = append(chatIDs, chatID)
	}
	return chatIDs, rows.Err()
}

// CountPeersByTier aggregates live peers into engagement tiers.
func (d *Database) CountPeersByTier(ctx context.Context, accountID int64) (map[models.EngagementTier]int, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT engagement_score FROM peers WHERE account_id = ? AND is_deleted = 0`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to count peers by tier: %w", err)
	}
	defer rows.Close()

	tiers := map[models.EngagementTier]int{}
	for rows.Next() {
		var score int
		if err := rows.Scan(&score); err != nil {
			return nil, fmt.Errorf("failed to scan peer score: %w", err)
		}
		tiers[models.TierForScore(score)]++
	}
	return tiers, rows.Err()
}
