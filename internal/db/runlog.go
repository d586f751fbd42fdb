package db

import (
	"context"
	"database/sql"

	"listing-crawler/pkg/models"
)

// RecordRunLog inserts a new execution log row and returns its id
func (dbs *DBService) RecordRunLog(ctx context.Context, rl models.RunLog) (int64, error) {
	res, err := dbs.db.ExecContext(ctx,
		`INSERT INTO execution_logs (start_time, end_time, duration_ms, total_pages, total_items, new_items, duplicate_items, status, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rl.StartTime, rl.EndTime, rl.DurationMs, rl.TotalPages, rl.TotalItems,
		rl.NewItems, rl.DuplicateItems, string(rl.Status), nullString(rl.ErrorMessage),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateRunLog overwrites the counters, status and end time of a log row
func (dbs *DBService) UpdateRunLog(ctx context.Context, id int64, rl models.RunLog) error {
	_, err := dbs.db.ExecContext(ctx,
		`UPDATE execution_logs SET end_time = ?, duration_ms = ?, total_pages = ?, total_items = ?,
		 new_items = ?, duplicate_items = ?, status = ?, error_message = ? WHERE id = ?`,
		rl.EndTime, rl.DurationMs, rl.TotalPages, rl.TotalItems,
		rl.NewItems, rl.DuplicateItems, string(rl.Status), nullString(rl.ErrorMessage), id,
	)
	return err
}

// GetRecentRunLogs returns the newest execution logs first
func (dbs *DBService) GetRecentRunLogs(ctx context.Context, limit int) ([]models.RunLog, error) {
	rows, err := dbs.db.QueryContext(ctx,
		`SELECT id, start_time, end_time, duration_ms, total_pages, total_items, new_items, duplicate_items, status, error_message
		 FROM execution_logs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.RunLog
	for rows.Next() {
		var rl models.RunLog
		var end sql.NullTime
		var duration sql.NullInt64
		var status string
		var msg sql.NullString
		if err := rows.Scan(&rl.ID, &rl.StartTime, &end, &duration, &rl.TotalPages, &rl.TotalItems,
			&rl.NewItems, &rl.DuplicateItems, &status, &msg); err != nil {
			return nil, err
		}
		if end.Valid {
			t := end.Time
			rl.EndTime = &t
		}
		rl.DurationMs = duration.Int64
		rl.Status = models.RunStatus(status)
		rl.ErrorMessage = msg.String
		logs = append(logs, rl)
	}
	return logs, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

