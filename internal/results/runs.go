package results

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/faultdns/faultdns/internal/responder"
)

// RunRecord is one row of run history.
type RunRecord struct {
	ID         int64      `json:"id"`
	ScenarioID string     `json:"scenario_id"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	// Queries counts the persisted log entries; zero while the run is
	// still live, since the live log stays in memory until FinishRun.
	Queries int `json:"queries"`
}

// RecordRun inserts a new run and returns its assigned ID.
func (db *DB) RecordRun(scenarioID string, startedAt time.Time) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.Exec(
		"INSERT INTO runs (scenario_id, started_at) VALUES (?, ?)",
		scenarioID, formatTime(startedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	return id, nil
}

// FinishRun closes a run: it stamps the end time and flushes the run's
// query log in one transaction. The entry slice may be empty. Finishing a
// run twice is an error; the first flush wins.
func (db *DB) FinishRun(runID int64, endedAt time.Time, entries []responder.QueryLogEntry) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("UPDATE runs SET ended_at = ? WHERE id = ? AND ended_at IS NULL", formatTime(endedAt), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %d: %w", runID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run not found or already finished: %d", runID)
	}

	if err := insertQueries(tx, runID, entries); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %d: %w", runID, err)
	}

	return nil
}

// ListRuns returns run history, newest first. A limit of zero or less
// returns everything.
func (db *DB) ListRuns(limit int) ([]RunRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	query := `
		SELECT r.id, r.scenario_id, r.started_at, r.ended_at, COUNT(q.id)
		FROM runs r
		LEFT JOIN queries q ON q.run_id = r.id
		GROUP BY r.id
		ORDER BY r.id DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var (
			r       RunRecord
			started string
			ended   sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.ScenarioID, &started, &ended, &r.Queries); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("failed to parse run start: %w", err)
		}
		if ended.Valid {
			t, err := parseTime(ended.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse run end: %w", err)
			}
			r.EndedAt = &t
		}
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}
