package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"waflow/internal/models"
)

// RiskApplyResult reports what ApplyRiskEvent did inside its transaction.
type RiskApplyResult struct {
	NewScore        int
	Suspended       bool
	PausedCampaigns int64
}

// ApplyRiskEvent appends the event and adjusts the account's score,
// clamped to [0,100]. When the score reaches the ceiling, or suspension
// is forced, it suspends the account and pauses all of its running
// campaigns.
// Everything happens in one transaction so suspension and campaign
// pausing land together or not at all.
func (d *Database) ApplyRiskEvent(ctx context.Context, ev *models.RiskEvent, ceiling int, forceSuspend bool) (*RiskApplyResult, error) {
	result := &RiskApplyResult{}

	err := d.withTx(ctx, func(tx *sql.Tx) error {
		metadata := ev.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		encoded, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to encode risk metadata: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO risk_events (id, account_id, kind, severity, score_delta, metadata)
			VALUES (?, ?, ?, ?, ?, ?)`,
			ev.ID, ev.AccountID, ev.Kind, ev.Severity, ev.ScoreDelta, string(encoded)); err != nil {
			return fmt.Errorf("failed to append risk event: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE accounts
			SET risk_score = MIN(100, MAX(0, risk_score + ?)), updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`, ev.ScoreDelta, ev.AccountID); err != nil {
			return fmt.Errorf("failed to adjust risk score: %w", err)
		}

		if err := tx.QueryRowContext(ctx,
			`SELECT risk_score FROM accounts WHERE id = ?`, ev.AccountID).Scan(&result.NewScore); err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("no account found with ID %d", ev.AccountID)
			}
			return fmt.Errorf("failed to read back risk score: %w", err)
		}

		if !forceSuspend && result.NewScore < ceiling {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE accounts SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			models.AccountStatusSuspended, ev.AccountID); err != nil {
			return fmt.Errorf("failed to suspend account: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE campaigns SET status = ?, updated_at = CURRENT_TIMESTAMP
			WHERE account_id = ? AND status = ?`,
			models.CampaignStatusPaused, ev.AccountID, models.CampaignStatusRunning)
		if err != nil {
			return fmt.Errorf("failed to pause campaigns: %w", err)
		}
		result.PausedCampaigns, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get paused campaign count: %w", err)
		}
		result.Suspended = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ResetRiskScore zeroes the score and logs the administrative action.
// It does not reactivate the account or its campaigns.
func (d *Database) ResetRiskScore(ctx context.Context, accountID int64, eventID string, operator string) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		var current int
		err := tx.QueryRowContext(ctx,
			`SELECT risk_score FROM accounts WHERE id = ?`, accountID).Scan(&current)
		if err == sql.ErrNoRows {
			return fmt.Errorf("no account found with ID %d", accountID)
		}
		if err != nil {
			return fmt.Errorf("failed to read risk score: %w", err)
		}

		metadata, err := json.Marshal(map[string]string{"operator": operator})
		if err != nil {
			return fmt.Errorf("failed to encode reset metadata: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO risk_events (id, account_id, kind, severity, score_delta, metadata)
			VALUES (?, ?, ?, ?, ?, ?)`,
			eventID, accountID, models.RiskEventManualReset, models.RiskSeverityTemporary,
			-current, string(metadata)); err != nil {
			return fmt.Errorf("failed to log manual reset: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE accounts SET risk_score = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			accountID); err != nil {
			return fmt.Errorf("failed to reset risk score: %w", err)
		}
		return nil
	})
}

// LatestRiskEventAt returns the timestamp of the newest risk event for
// the account, or nil when the log is empty.
func (d *Database) LatestRiskEventAt(ctx context.Context, accountID int64) (*time.Time, error) {
	var at sql.NullTime
	err := d.db.QueryRowContext(ctx,
		`SELECT MAX(created_at) FROM risk_events WHERE account_id = ?`, accountID).Scan(&at)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest risk event: %w", err)
	}
	if !at.Valid {
		return nil, nil
	}
	t := at.Time
	return &t, nil
}

func (d *Database) ListRiskEvents(ctx context.Context, accountID int64, limit int) ([]models.RiskEvent, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, account_id, kind, severity, score_delta, metadata, created_at
		FROM risk_events
		WHERE account_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list risk events: %w", err)
	}
	defer rows.Close()

	var events []models.RiskEvent
	for rows.Next() {
		var ev models.RiskEvent
		var metadata string
		if err := rows.Scan(&ev.ID, &ev.AccountID, &ev.Kind, &ev.Severity, &ev.ScoreDelta, &metadata, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan risk event: %w", err)
		}
		if metadata != "" {
			if err := json.Unmarshal([]byte(metadata), &ev.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode risk metadata: %w", err)
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// DecayCandidate is an at-risk account considered by the decay sweep.
type DecayCandidate struct {
	AccountID   int64
	RiskScore   int
	LastEventAt *time.Time
}

// ListDecayCandidates returns accounts with a positive risk score plus
// their newest risk event timestamp. Decay events themselves are not
// counted, otherwise yesterday's sweep would reset today's clean window.
func (d *Database) ListDecayCandidates(ctx context.Context) ([]DecayCandidate, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT a.id, a.risk_score, MAX(e.created_at)
		FROM accounts a
		LEFT JOIN risk_events e ON e.account_id = a.id AND e.kind != ?
		WHERE a.risk_score > 0
		GROUP BY a.id, a.risk_score`, models.RiskEventDecay)
	if err != nil {
		return nil, fmt.Errorf("failed to list decay candidates: %w", err)
	}
	defer rows.Close()

	var candidates []DecayCandidate
	for rows.Next() {
		var c DecayCandidate
		var at sql.NullTime
		if err := rows.Scan(&c.AccountID, &c.RiskScore, &at); err != nil {
			return nil, fmt.Errorf("failed to scan decay candidate: %w", err)
		}
		if at.Valid {
			t := at.Time
			c.LastEventAt = &t
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// ApplyDecayBatch subtracts decay points from each account and logs one
// decay event per account, all in a single transaction per sweep pass.
func (d *Database) ApplyDecayBatch(ctx context.Context, decays []models.RiskEvent) error {
	if len(decays) == 0 {
		return nil
	}
	return d.withTx(ctx, func(tx *sql.Tx) error {
		for i := range decays {
			ev := &decays[i]
			metadata := ev.Metadata
			if metadata == nil {
				metadata = map[string]string{}
			}
			encoded, err := json.Marshal(metadata)
			if err != nil {
				return fmt.Errorf("failed to encode decay metadata: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO risk_events (id, account_id, kind, severity, score_delta, metadata)
				VALUES (?, ?, ?, ?, ?, ?)`,
				ev.ID, ev.AccountID, models.RiskEventDecay, models.RiskSeverityTemporary,
				ev.ScoreDelta, string(encoded)); err != nil {
				return fmt.Errorf("failed to log decay event: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE accounts
				SET risk_score = MAX(0, risk_score + ?), updated_at = CURRENT_TIMESTAMP
				WHERE id = ?`, ev.ScoreDelta, ev.AccountID); err != nil {
				return fmt.Errorf("failed to apply decay: %w", err)
			}
		}
		return nil
	})
}
