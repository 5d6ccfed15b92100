package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"waflow/internal/models"
)

const campaignColumns = `id, account_id, name, status, template, sent_count, failed_count,
	started_at, created_at, updated_at`

func scanCampaign(row interface {
	Scan(dest ...interface{}) error
}) (*models.Campaign, error) {
	c := &models.Campaign{}
	err := row.Scan(
		&c.ID,
		&c.AccountID,
		&c.Name,
		&c.Status,
		&c.Template,
		&c.SentCount,
		&c.FailedCount,
		&c.StartedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan campaign: %w", err)
	}
	return c, nil
}

func (d *Database) CreateCampaign(ctx context.Context, accountID int64, name, template string) (*models.Campaign, error) {
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO campaigns (account_id, name, status, template) VALUES (?, ?, ?, ?)`,
		accountID, name, models.CampaignStatusDraft, template)
	if err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign id: %w", err)
	}
	return d.GetCampaign(ctx, id)
}

func (d *Database) GetCampaign(ctx context.Context, id int64) (*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = ?`
	return scanCampaign(d.db.QueryRowContext(ctx, query, id))
}

// ListDispatchableCampaigns returns running campaigns whose owning account
// is active, oldest start first. Fairness is by campaign age, not by
// backlog size.
func (d *Database) ListDispatchableCampaigns(ctx context.Context) ([]models.Campaign, error) {
	query := `
		SELECT c.id, c.account_id, c.name, c.status, c.template, c.sent_count, c.failed_count,
		       c.started_at, c.created_at, c.updated_at
		FROM campaigns c
		JOIN accounts a ON a.id = c.account_id
		WHERE c.status = ? AND a.status = ?
		ORDER BY c.started_at ASC
	`
	rows, err := d.db.QueryContext(ctx, query, models.CampaignStatusRunning, models.AccountStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list dispatchable campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, rows.Err()
}

func (d *Database) UpdateCampaignStatus(ctx context.Context, id int64, status models.CampaignStatus) error {
	return retryDBOperation(ctx, func() error {
		res, err := d.db.ExecContext(ctx,
			`UPDATE campaigns SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			status, id)
		if err != nil {
			return fmt.Errorf("failed to update campaign status: %w", err)
		}
		return requireRowsAffected(res, "campaign", id)
	}, "update campaign status")
}

// StartCampaign moves a draft or paused campaign to running and stamps
// startedAt on the first start only.
func (d *Database) StartCampaign(ctx context.Context, id int64, at time.Time) error {
	res, err := d.db.ExecContext(ctx, `
		UPDATE campaigns
		SET status = ?, started_at = COALESCE(started_at, ?), updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status IN (?, ?)`,
		models.CampaignStatusRunning, at.UTC(), id,
		models.CampaignStatusDraft, models.CampaignStatusPaused)
	if err != nil {
		return fmt.Errorf("failed to start campaign: %w", err)
	}
	return requireRowsAffected(res, "startable campaign", id)
}

// CompleteCampaignIfDone marks the campaign completed when it has
// recipients and none remain pending. Returns true only on the run that
// performed the transition, so repeated checks are idempotent.
func (d *Database) CompleteCampaignIfDone(ctx context.Context, id int64) (bool, error) {
	res, err := d.db.ExecContext(ctx, `
		UPDATE campaigns
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
		  AND (SELECT COUNT(*) FROM recipients WHERE campaign_id = ?) > 0
		  AND (SELECT COUNT(*) FROM recipients WHERE campaign_id = ? AND status = ?) = 0`,
		models.CampaignStatusCompleted, id, models.CampaignStatusRunning,
		id, id, models.RecipientStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to complete campaign: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}

func (d *Database) ListCampaignsByAccount(ctx context.Context, accountID int64) ([]models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE account_id = ? ORDER BY id`
	rows, err := d.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, rows.Err()
}
