package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"waflow/internal/models"
)

func scanRecipient(row interface {
	Scan(dest ...interface{}) error
}) (*models.Recipient, error) {
	r := &models.Recipient{}
	var attrs string
	err := row.Scan(
		&r.ID,
		&r.CampaignID,
		&r.ChatID,
		&attrs,
		&r.Status,
		&r.FailureReason,
		&r.SentAt,
		&r.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan recipient: %w", err)
	}
	if attrs != "" {
		if err := json.Unmarshal([]byte(attrs), &r.Attributes); err != nil {
			return nil, fmt.Errorf("failed to decode recipient attributes: %w", err)
		}
	}
	return r, nil
}

func (d *Database) AddRecipients(ctx context.Context, campaignID int64, recipients []models.Recipient) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO recipients (campaign_id, chat_id, attributes, status) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare recipient insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range recipients {
			attrs := r.Attributes
			if attrs == nil {
				attrs = map[string]string{}
			}
			encoded, err := json.Marshal(attrs)
			if err != nil {
				return fmt.Errorf("failed to encode recipient attributes: %w", err)
			}
			if _, err := stmt.ExecContext(ctx, campaignID, r.ChatID, string(encoded), models.RecipientStatusPending); err != nil {
				return fmt.Errorf("failed to insert recipient %s: %w", r.ChatID, err)
			}
		}
		return nil
	})
}

// GetPendingRecipients returns up to limit pending recipients of the
// campaign, oldest-created first.
func (d *Database) GetPendingRecipients(ctx context.Context, campaignID int64, limit int) ([]models.Recipient, error) {
	query := `
		SELECT id, campaign_id, chat_id, attributes, status, failure_reason, sent_at, created_at
		FROM recipients
		WHERE campaign_id = ? AND status = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`
	rows, err := d.db.QueryContext(ctx, query, campaignID, models.RecipientStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending recipients: %w", err)
	}
	defer rows.Close()

	var recipients []models.Recipient
	for rows.Next() {
		r, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, *r)
	}
	return recipients, rows.Err()
}

func (d *Database) CountRecipients(ctx context.Context, campaignID int64) (total, pending int, err error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM recipients WHERE campaign_id = ?
	`
	err = d.db.QueryRowContext(ctx, query, models.RecipientStatusPending, campaignID).Scan(&total, &pending)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count recipients: %w", err)
	}
	return total, pending, nil
}

// MarkRecipientBlocked fails a recipient that a pre-send gate rejected.
// No message row exists for gate rejections; the reason is the gate's
// actionable explanation.
func (d *Database) MarkRecipientBlocked(ctx context.Context, recipientID int64, reason string) error {
	return retryDBOperation(ctx, func() error {
		res, err := d.db.ExecContext(ctx, `
			UPDATE recipients SET status = ?, failure_reason = ?
			WHERE id = ? AND status = ?`,
			models.RecipientStatusFailed, reason, recipientID, models.RecipientStatusPending)
		if err != nil {
			return fmt.Errorf("failed to mark recipient blocked: %w", err)
		}
		return requireRowsAffected(res, "pending recipient", recipientID)
	}, "mark recipient blocked")
}
