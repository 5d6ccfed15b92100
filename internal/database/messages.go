package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"waflow/internal/models"
)

const messageColumns = `id, account_id, campaign_id, recipient_id, chat_id, body, content_hash,
	status, gateway_message_id, replied, failure_reason, sent_at, delivered_at, read_at,
	created_at, updated_at`

func scanMessage(row interface {
	Scan(dest ...interface{}) error
}) (*models.Message, error) {
	m := &models.Message{}
	err := row.Scan(
		&m.ID,
		&m.AccountID,
		&m.CampaignID,
		&m.RecipientID,
		&m.ChatID,
		&m.Body,
		&m.ContentHash,
		&m.Status,
		&m.GatewayMessageID,
		&m.Replied,
		&m.FailureReason,
		&m.SentAt,
		&m.DeliveredAt,
		&m.ReadAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}
	return m, nil
}

// CreateMessage records a send attempt in pending state before the
// gateway call happens.
func (d *Database) CreateMessage(ctx context.Context, msg *models.Message) error {
	return retryDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, `
			INSERT INTO messages (id, account_id, campaign_id, recipient_id, chat_id, body, content_hash, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			msg.ID, msg.AccountID, msg.CampaignID, msg.RecipientID,
			msg.ChatID, msg.Body, msg.ContentHash, models.MessageStatusPending)
		if err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}
		return nil
	}, "create message")
}

// MarkMessageSent commits the successful outcome atomically: message to
// sent, recipient to sent, campaign sentCount incremented. The gateway
// call itself happened outside this boundary; a crash between the remote
// send and this commit is the accepted at-most-once gap.
func (d *Database) MarkMessageSent(ctx context.Context, messageID string, gatewayMessageID string, at time.Time) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		var campaignID, recipientID int64
		err := tx.QueryRowContext(ctx,
			`SELECT campaign_id, recipient_id FROM messages WHERE id = ? AND status = ?`,
			messageID, models.MessageStatusPending).Scan(&campaignID, &recipientID)
		if err == sql.ErrNoRows {
			return fmt.Errorf("no pending message with ID %s", messageID)
		}
		if err != nil {
			return fmt.Errorf("failed to load message for outcome: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE messages SET status = ?, gateway_message_id = ?, sent_at = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			models.MessageStatusSent, gatewayMessageID, at.UTC(), messageID); err != nil {
			return fmt.Errorf("failed to mark message sent: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE recipients SET status = ?, sent_at = ? WHERE id = ?`,
			models.RecipientStatusSent, at.UTC(), recipientID); err != nil {
			return fmt.Errorf("failed to mark recipient sent: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE campaigns SET sent_count = sent_count + 1, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`, campaignID); err != nil {
			return fmt.Errorf("failed to increment sent count: %w", err)
		}
		return nil
	})
}

// MarkMessageFailed commits the failed outcome atomically: message and
// recipient to failed, campaign failedCount incremented.
func (d *Database) MarkMessageFailed(ctx context.Context, messageID string, reason string) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		var campaignID, recipientID int64
		err := tx.QueryRowContext(ctx,
			`SELECT campaign_id, recipient_id FROM messages WHERE id = ? AND status IN (?, ?)`,
			messageID, models.MessageStatusPending, models.MessageStatusSent).Scan(&campaignID, &recipientID)
		if err == sql.ErrNoRows {
			return fmt.Errorf("no failable message with ID %s", messageID)
		}
		if err != nil {
			return fmt.Errorf("failed to load message for outcome: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE messages SET status = ?, failure_reason = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			models.MessageStatusFailed, reason, messageID); err != nil {
			return fmt.Errorf("failed to mark message failed: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE recipients SET status = ?, failure_reason = ? WHERE id = ?`,
			models.RecipientStatusFailed, reason, recipientID); err != nil {
			return fmt.Errorf("failed to mark recipient failed: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE campaigns SET failed_count = failed_count + 1, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`, campaignID); err != nil {
			return fmt.Errorf("failed to increment failed count: %w", err)
		}
		return nil
	})
}

// AdvanceMessageStatus applies a gateway ack (delivered/read) while
// enforcing the forward-only transition invariant. Regressions are
// rejected with an error; an equal status is a silent no-op since acks
// can arrive more than once.
func (d *Database) AdvanceMessageStatus(ctx context.Context, gatewayMessageID string, next models.MessageStatus, at time.Time) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		var id string
		var current models.MessageStatus
		err := tx.QueryRowContext(ctx,
			`SELECT id, status FROM messages WHERE gateway_message_id = ?`,
			gatewayMessageID).Scan(&id, &current)
		if err == sql.ErrNoRows {
			return fmt.Errorf("no message found with gateway ID %s", gatewayMessageID)
		}
		if err != nil {
			return fmt.Errorf("failed to load message for ack: %w", err)
		}

		if current == next {
			return nil
		}
		if !current.CanTransition(next) {
			return fmt.Errorf("illegal message transition %s -> %s for %s", current, next, id)
		}

		var column string
		switch next {
		case models.MessageStatusDelivered:
			column = "delivered_at"
		case models.MessageStatusRead:
			column = "read_at"
		default:
			return fmt.Errorf("unsupported ack status %s", next)
		}

		// A read ack can arrive without a prior delivered ack; stamp
		// delivered_at too so window stats stay consistent.
		query := fmt.Sprintf(`
			UPDATE messages SET status = ?, %s = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`, column)
		if _, err := tx.ExecContext(ctx, query, next, at.UTC(), id); err != nil {
			return fmt.Errorf("failed to advance message status: %w", err)
		}
		if next == models.MessageStatusRead {
			if _, err := tx.ExecContext(ctx,
				`UPDATE messages SET delivered_at = COALESCE(delivered_at, ?) WHERE id = ?`,
				at.UTC(), id); err != nil {
				return fmt.Errorf("failed to backfill delivered_at: %w", err)
			}
		}
		return nil
	})
}

// MarkMessageReplied flags the newest outbound message to the chat as
// replied, for reply-rate stats.
func (d *Database) MarkMessageReplied(ctx context.Context, accountID int64, chatID string) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE messages SET replied = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = (
			SELECT id FROM messages
			WHERE account_id = ? AND chat_id = ? AND status != ?
			ORDER BY created_at DESC LIMIT 1
		)`, accountID, chatID, models.MessageStatusFailed)
	if err != nil {
		return fmt.Errorf("failed to mark message replied: %w", err)
	}
	return nil
}

func (d *Database) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = ?`
	return scanMessage(d.db.QueryRowContext(ctx, query, id))
}

// GetMessageByGatewayID resolves the target of a gateway ack. Returns
// nil when the gateway ID is unknown, which happens for messages sent
// outside the governor.
func (d *Database) GetMessageByGatewayID(ctx context.Context, gatewayMessageID string) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE gateway_message_id = ?`
	return scanMessage(d.db.QueryRowContext(ctx, query, gatewayMessageID))
}

// CountSentToday counts attempts that consumed quota since the start of
// the UTC day: everything except gate-blocked recipients, which never
// created a message row.
func (d *Database) CountSentToday(ctx context.Context, accountID int64, now time.Time) (int, error) {
	dayStart := time.Date(now.UTC().Year(), now.UTC().Month(), now.UTC().Day(), 0, 0, 0, 0, time.UTC)
	var count int
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE account_id = ? AND created_at >= ? AND status IN (?, ?, ?)`,
		accountID, dayStart,
		models.MessageStatusSent, models.MessageStatusDelivered, models.MessageStatusRead).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sent today: %w", err)
	}
	return count, nil
}

// CountRecentByHash counts how many times the account has sent this
// exact normalized content within the lookback window.
func (d *Database) CountRecentByHash(ctx context.Context, accountID int64, contentHash string, since time.Time) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE account_id = ? AND content_hash = ? AND created_at >= ? AND status != ?`,
		accountID, contentHash, since.UTC(), models.MessageStatusFailed).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages by hash: %w", err)
	}
	return count, nil
}

// RecentDistinctBodies returns the account's recent distinct message
// bodies, newest first, for near-duplicate comparison.
func (d *Database) RecentDistinctBodies(ctx context.Context, accountID int64, since time.Time, limit int) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT body FROM messages
		WHERE account_id = ? AND created_at >= ?
		GROUP BY content_hash
		ORDER BY MAX(created_at) DESC
		LIMIT ?`, accountID, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent bodies: %w", err)
	}
	defer rows.Close()

	var bodies []string
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan body: %w", err)
		}
		bodies = append(bodies, body)
	}
	return bodies, rows.Err()
}

// RecentOutcomes returns the newest limit outcomes for the account, most
// recent first.
func (d *Database) RecentOutcomes(ctx context.Context, accountID int64, limit int) ([]models.MessageOutcome, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT status, created_at FROM messages
		WHERE account_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent outcomes: %w", err)
	}
	defer rows.Close()
	return collectOutcomes(rows)
}

// OutcomesSince returns all outcomes for the account inside the window.
func (d *Database) OutcomesSince(ctx context.Context, accountID int64, since time.Time) ([]models.MessageOutcome, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT status, created_at FROM messages
		WHERE account_id = ? AND created_at >= ?
		ORDER BY created_at DESC`, accountID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	defer rows.Close()
	return collectOutcomes(rows)
}

func collectOutcomes(rows *sql.Rows) ([]models.MessageOutcome, error) {
	var outcomes []models.MessageOutcome
	for rows.Next() {
		var o models.MessageOutcome
		if err := rows.Scan(&o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// CountStalePending counts messages stuck in pending since before the
// cutoff: attempts whose gateway call never resolved either way.
func (d *Database) CountStalePending(ctx context.Context, accountID int64, cutoff time.Time) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE account_id = ? AND status = ? AND created_at < ?`,
		accountID, models.MessageStatusPending, cutoff.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count stale pending: %w", err)
	}
	return count, nil
}

func (d *Database) CleanupOldMessages(retentionDays int) error {
	_, err := d.db.Exec(`
		DELETE FROM messages
		WHERE created_at < datetime('now', '-' || ? || ' days')
		  AND status != ?`, retentionDays, models.MessageStatusPending)
	if err != nil {
		return fmt.Errorf("failed to cleanup old messages: %w", err)
	}
	return nil
}
