package database

import (
	"context"
	"fmt"
	"time"

	"waflow/internal/models"
)

// WindowStats aggregates message outcomes for one account over a rolling
// window; the health monitor turns these into rates.
type WindowStats struct {
	Total     int
	Sent      int
	Delivered int
	Read      int
	Failed    int
	Replied   int
}

// GetWindowStats aggregates outcomes since the given time. Delivered and
// read are cumulative: a read message counts as delivered too.
func (d *Database) GetWindowStats(ctx context.Context, accountID int64, since time.Time) (*WindowStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status IN (?, ?, ?) THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status IN (?, ?) THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN replied = 1 THEN 1 ELSE 0 END), 0)
		FROM messages
		WHERE account_id = ? AND created_at >= ?
	`
	stats := &WindowStats{}
	err := d.db.QueryRowContext(ctx, query,
		models.MessageStatusSent, models.MessageStatusDelivered, models.MessageStatusRead,
		models.MessageStatusDelivered, models.MessageStatusRead,
		models.MessageStatusRead,
		models.MessageStatusFailed,
		accountID, since.UTC(),
	).Scan(&stats.Total, &stats.Sent, &stats.Delivered, &stats.Read, &stats.Failed, &stats.Replied)
	if err != nil {
		return nil, fmt.Errorf("failed to get window stats: %w", err)
	}
	return stats, nil
}

// ReadTimestamps returns when the peer read past messages, newest first,
// capped at limit. Source data for the send-time optimizer.
func (d *Database) ReadTimestamps(ctx context.Context, accountID int64, chatID string, limit int) ([]time.Time, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT read_at FROM messages
		WHERE account_id = ? AND chat_id = ? AND read_at IS NOT NULL
		ORDER BY read_at DESC
		LIMIT ?`, accountID, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get read timestamps: %w", err)
	}
	defer rows.Close()

	var stamps []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan read timestamp: %w", err)
		}
		stamps = append(stamps, t)
	}
	return stamps, rows.Err()
}

// HeatmapCell is one hour-of-day × day-of-week bucket of send and read
// activity.
type HeatmapCell struct {
	Weekday int `json:"weekday"`
	Hour    int `json:"hour"`
	Sent    int `json:"sent"`
	Read    int `json:"read"`
}

// ActivityHeatmap buckets the account's outbound activity by weekday and
// hour over the given window.
func (d *Database) ActivityHeatmap(ctx context.Context, accountID int64, since time.Time) ([]HeatmapCell, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT CAST(strftime('%w', created_at) AS INTEGER),
		       CAST(strftime('%H', created_at) AS INTEGER),
		       COUNT(*),
		       COALESCE(SUM(CASE WHEN read_at IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM messages
		WHERE account_id = ? AND created_at >= ?
		GROUP BY 1, 2
		ORDER BY 1, 2`, accountID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to build activity heatmap: %w", err)
	}
	defer rows.Close()

	var cells []HeatmapCell
	for rows.Next() {
		var c HeatmapCell
		if err := rows.Scan(&c.Weekday, &c.Hour, &c.Sent, &c.Read); err != nil {
			return nil, fmt.Errorf("failed to scan heatmap cell: %w", err)
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}
