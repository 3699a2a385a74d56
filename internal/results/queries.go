package results

import (
	"database/sql"
	"fmt"

	"github.com/faultdns/faultdns/internal/responder"
)

// insertQueries appends log entries for a run inside an open transaction.
func insertQueries(tx *sql.Tx, runID int64, entries []responder.QueryLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`
		INSERT INTO queries (run_id, at, transport, remote, qname, qtype, rcode, flags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare query insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(runID, formatTime(e.Time), e.Transport, e.Remote, e.QName, e.QType, e.RCode, e.Flags); err != nil {
			return fmt.Errorf("failed to insert query for run %d: %w", runID, err)
		}
	}

	return nil
}

// QueriesForRun returns the persisted log of a finished run in append order.
func (db *DB) QueriesForRun(runID int64) ([]responder.QueryLogEntry, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT at, transport, remote, qname, qtype, rcode, flags
		FROM queries
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query log for run %d: %w", runID, err)
	}
	defer rows.Close()

	var entries []responder.QueryLogEntry
	for rows.Next() {
		var (
			e  responder.QueryLogEntry
			at string
		)
		if err := rows.Scan(&at, &e.Transport, &e.Remote, &e.QName, &e.QType, &e.RCode, &e.Flags); err != nil {
			return nil, fmt.Errorf("failed to scan query: %w", err)
		}
		if e.Time, err = parseTime(at); err != nil {
			return nil, fmt.Errorf("failed to parse query time: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queries: %w", err)
	}

	return entries, nil
}
