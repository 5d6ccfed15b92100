package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"waflow/internal/models"
)

const accountColumns = `id, name, session_name, status, risk_score, daily_limit_override,
	connected_at, last_active_at, created_at, updated_at`

func scanAccount(row interface {
	Scan(dest ...interface{}) error
}) (*models.Account, error) {
	acct := &models.Account{}
	err := row.Scan(
		&acct.ID,
		&acct.Name,
		&acct.SessionName,
		&acct.Status,
		&acct.RiskScore,
		&acct.DailyLimitOverride,
		&acct.ConnectedAt,
		&acct.LastActiveAt,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	return acct, nil
}

func (d *Database) CreateAccount(ctx context.Context, name, sessionName string) (*models.Account, error) {
	query := `
		INSERT INTO accounts (name, session_name, status)
		VALUES (?, ?, ?)
	`
	res, err := d.db.ExecContext(ctx, query, name, sessionName, models.AccountStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get account id: %w", err)
	}
	return d.GetAccount(ctx, id)
}

func (d *Database) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`
	return scanAccount(d.db.QueryRowContext(ctx, query, id))
}

func (d *Database) GetAccountBySession(ctx context.Context, sessionName string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE session_name = ?`
	return scanAccount(d.db.QueryRowContext(ctx, query, sessionName))
}

func (d *Database) ListAccounts(ctx context.Context) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY id`
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *acct)
	}
	return accounts, rows.Err()
}

// UpdateAccountStatus flips the account status; transitions are owned by
// the governor, so no state-machine check happens at this layer.
func (d *Database) UpdateAccountStatus(ctx context.Context, id int64, status models.AccountStatus) error {
	return retryDBOperation(ctx, func() error {
		res, err := d.db.ExecContext(ctx,
			`UPDATE accounts SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			status, id)
		if err != nil {
			return fmt.Errorf("failed to update account status: %w", err)
		}
		return requireRowsAffected(res, "account", id)
	}, "update account status")
}

// SetAccountConnected stamps connectedAt on session open. The timestamp
// is preserved across reconnects so warmup age keeps accruing; it is only
// set when currently null.
func (d *Database) SetAccountConnected(ctx context.Context, id int64, at time.Time) error {
	return retryDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, `
			UPDATE accounts
			SET status = ?,
			    connected_at = COALESCE(connected_at, ?),
			    last_active_at = ?,
			    updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			models.AccountStatusActive, at.UTC(), at.UTC(), id)
		if err != nil {
			return fmt.Errorf("failed to mark account connected: %w", err)
		}
		return nil
	}, "set account connected")
}

// SetAccountOffline clears the live-session state on session close.
// connectedAt is cleared, which zeroes the account's rate quota.
func (d *Database) SetAccountOffline(ctx context.Context, id int64) error {
	return retryDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, `
			UPDATE accounts
			SET status = ?, connected_at = NULL, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND status != ?`,
			models.AccountStatusOffline, id, models.AccountStatusSuspended)
		if err != nil {
			return fmt.Errorf("failed to mark account offline: %w", err)
		}
		return nil
	}, "set account offline")
}

func (d *Database) SetDailyLimitOverride(ctx context.Context, id int64, limit *int) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE accounts SET daily_limit_override = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		limit, id)
	if err != nil {
		return fmt.Errorf("failed to set daily limit override: %w", err)
	}
	return nil
}

func (d *Database) TouchAccountActivity(ctx context.Context, id int64, at time.Time) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE accounts SET last_active_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to touch account activity: %w", err)
	}
	return nil
}

func requireRowsAffected(res sql.Result, entity string, id int64) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("no %s found with ID %d", entity, id)
	}
	return nil
}
