package results

import (
	"fmt"
	"time"

	"github.com/faultdns/faultdns/internal/scorer"
)

// VerdictRecord is one graded verdict as stored.
type VerdictRecord struct {
	ID        int64     `json:"id"`
	RunID     int64     `json:"run_id"`
	Verdict   string    `json:"verdict"`
	Matched   bool      `json:"matched"`
	Ambiguous bool      `json:"ambiguous"`
	Expected  string    `json:"expected"`
	Got       string    `json:"got,omitempty"`
	Rationale string    `json:"rationale"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordVerdict stores a submitted verdict together with its grade and
// returns the assigned ID. A run may collect any number of verdicts.
func (db *DB) RecordVerdict(runID int64, verdict string, res scorer.Result, at time.Time) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	r, err := db.conn.Exec(`
		INSERT INTO verdicts (run_id, verdict, matched, ambiguous, expected, got, rationale, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, verdict, res.Matched, res.Ambiguous, string(res.Expected), string(res.Got), res.Rationale, formatTime(at))
	if err != nil {
		return 0, fmt.Errorf("failed to record verdict for run %d: %w", runID, err)
	}

	id, err := r.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get verdict id: %w", err)
	}

	return id, nil
}

// VerdictsForRun returns the verdicts submitted against a run, oldest first.
func (db *DB) VerdictsForRun(runID int64) ([]VerdictRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT id, run_id, verdict, matched, ambiguous, expected, got, rationale, created_at
		FROM verdicts
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query verdicts for run %d: %w", runID, err)
	}
	defer rows.Close()

	var verdicts []VerdictRecord
	for rows.Next() {
		var (
			v       VerdictRecord
			created string
		)
		if err := rows.Scan(&v.ID, &v.RunID, &v.Verdict, &v.Matched, &v.Ambiguous, &v.Expected, &v.Got, &v.Rationale, &created); err != nil {
			return nil, fmt.Errorf("failed to scan verdict: %w", err)
		}
		if v.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("failed to parse verdict time: %w", err)
		}
		verdicts = append(verdicts, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating verdicts: %w", err)
	}

	return verdicts, nil
}
