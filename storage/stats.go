package storage

import (
	"fmt"
	"time"
)

// DailyStats represents statistics for a single day
type DailyStats struct {
	Date         string `json:"date"`
	Total        int    `json:"total"`
	SuccessCount int    `json:"success_count"`
	FailureCount int    `json:"failure_count"`
}

// TargetStats represents statistics grouped by target application
type TargetStats struct {
	Target        string  `json:"target"`
	Total         int     `json:"total"`
	SuccessCount  int     `json:"success_count"`
	FailureCount  int     `json:"failure_count"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// OverallStats represents overall statistics
type OverallStats struct {
	Total         int     `json:"total"`
	Invocations   int     `json:"invocations"`
	SuccessCount  int     `json:"success_count"`
	FailureCount  int     `json:"failure_count"`
	WarningCount  int     `json:"warning_count"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

func since(now time.Time, days int) string {
	return now.AddDate(0, 0, -days).UTC().Format(timeLayout)
}

// GetDailyStats retrieves statistics grouped by date for the last N days
func (db *DB) GetDailyStats(now time.Time, days int) ([]DailyStats, error) {
	query := `
		SELECT
			DATE(timestamp) as date,
			COUNT(*) as total,
			COALESCE(SUM(CASE WHEN succeeded = 1 THEN 1 ELSE 0 END), 0) as success_count,
			COALESCE(SUM(CASE WHEN succeeded = 0 THEN 1 ELSE 0 END), 0) as failure_count
		FROM pastes
		WHERE timestamp >= ?
		GROUP BY DATE(timestamp)
		ORDER BY date DESC
	`

	rows, err := db.conn.Query(query, since(now, days))
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	var stats []DailyStats
	for rows.Next() {
		var s DailyStats
		if err := rows.Scan(&s.Date, &s.Total, &s.SuccessCount, &s.FailureCount); err != nil {
			return nil, fmt.Errorf("failed to scan daily stats: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// GetTargetStats retrieves statistics grouped by target for the last N days
func (db *DB) GetTargetStats(now time.Time, days int) ([]TargetStats, error) {
	query := `
		SELECT
			target,
			COUNT(*) as total,
			COALESCE(SUM(CASE WHEN succeeded = 1 THEN 1 ELSE 0 END), 0) as success_count,
			COALESCE(SUM(CASE WHEN succeeded = 0 THEN 1 ELSE 0 END), 0) as failure_count,
			COALESCE(AVG(duration_ms), 0) as avg_duration_ms
		FROM pastes
		WHERE timestamp >= ?
		GROUP BY target
		ORDER BY total DESC, target
	`

	rows, err := db.conn.Query(query, since(now, days))
	if err != nil {
		return nil, fmt.Errorf("failed to query target stats: %w", err)
	}
	defer rows.Close()

	var stats []TargetStats
	for rows.Next() {
		var s TargetStats
		if err := rows.Scan(&s.Target, &s.Total, &s.SuccessCount, &s.FailureCount, &s.AvgDurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan target stats: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// GetOverallStats retrieves overall statistics for the last N days
func (db *DB) GetOverallStats(now time.Time, days int) (*OverallStats, error) {
	query := `
		SELECT
			COUNT(*) as total,
			COUNT(DISTINCT invocation_id) as invocations,
			COALESCE(SUM(CASE WHEN succeeded = 1 THEN 1 ELSE 0 END), 0) as success_count,
			COALESCE(SUM(CASE WHEN succeeded = 0 THEN 1 ELSE 0 END), 0) as failure_count,
			COALESCE(SUM(CASE WHEN warning_key != '' THEN 1 ELSE 0 END), 0) as warning_count,
			COALESCE(AVG(duration_ms), 0) as avg_duration_ms
		FROM pastes
		WHERE timestamp >= ?
	`

	var stats OverallStats
	err := db.conn.QueryRow(query, since(now, days)).Scan(
		&stats.Total,
		&stats.Invocations,
		&stats.SuccessCount,
		&stats.FailureCount,
		&stats.WarningCount,
		&stats.AvgDurationMs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query overall stats: %w", err)
	}

	return &stats, nil
}
