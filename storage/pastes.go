package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a paste ID does not exist.
var ErrNotFound = errors.New("paste not found")

// Paste is one outcome of a paste invocation. An invocation that processes a
// batch of files records one Paste per outcome under the same InvocationID.
type Paste struct {
	ID           int64          `json:"id"`
	InvocationID string         `json:"invocation_id"`
	Timestamp    time.Time      `json:"timestamp"`
	ContentKind  string         `json:"content_kind"`
	Target       string         `json:"target"`
	Policy       string         `json:"policy"`
	Succeeded    bool           `json:"succeeded"`
	MessageKey   string         `json:"message_key"`
	WarningKey   string         `json:"warning_key,omitempty"`
	Params       map[string]any `json:"params,omitempty"`
	DurationMs   int64          `json:"duration_ms"`
}

// SavePaste saves a paste outcome to the database
func (db *DB) SavePaste(p *Paste) error {
	params, err := json.Marshal(p.Params)
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
	}

	query := `
		INSERT INTO pastes (
			invocation_id, timestamp, content_kind, target, policy,
			succeeded, message_key, warning_key, params, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.conn.Exec(query,
		p.InvocationID, p.Timestamp.UTC().Format(timeLayout), p.ContentKind, p.Target, p.Policy,
		p.Succeeded, p.MessageKey, p.WarningKey, string(params), p.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to save paste: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	p.ID = id
	return nil
}

// GetPastes retrieves pastes, newest first, with pagination
func (db *DB) GetPastes(limit, offset int) ([]Paste, error) {
	query := `
		SELECT
			id, invocation_id, timestamp, content_kind, target, policy,
			succeeded, message_key, warning_key, params, duration_ms
		FROM pastes
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := db.conn.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query pastes: %w", err)
	}
	defer rows.Close()

	var pastes []Paste
	for rows.Next() {
		var p Paste
		var ts, params string

		err := rows.Scan(
			&p.ID, &p.InvocationID, &ts, &p.ContentKind, &p.Target, &p.Policy,
			&p.Succeeded, &p.MessageKey, &p.WarningKey, &params, &p.DurationMs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan paste: %w", err)
		}

		if p.Timestamp, err = time.ParseInLocation(timeLayout, ts, time.UTC); err != nil {
			return nil, fmt.Errorf("invalid timestamp %q: %w", ts, err)
		}
		if err := json.Unmarshal([]byte(params), &p.Params); err != nil {
			return nil, fmt.Errorf("invalid params for paste %d: %w", p.ID, err)
		}

		pastes = append(pastes, p)
	}

	return pastes, rows.Err()
}

// GetPasteCount returns the total number of recorded outcomes
func (db *DB) GetPasteCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM pastes").Scan(&count)
	return count, err
}

// DeleteBefore removes history older than cutoff and reports how many rows went.
func (db *DB) DeleteBefore(cutoff time.Time) (int64, error) {
	result, err := db.conn.Exec(`DELETE FROM pastes WHERE timestamp < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return result.RowsAffected()
}

// DeletePaste deletes a paste by ID
func (db *DB) DeletePaste(id int64) error {
	result, err := db.conn.Exec(`DELETE FROM pastes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete paste: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
