// Package replaylog is an optional, SQLite-backed collaborator for
// persisting a Battle's full_log output for post-battle analytics. The
// engine itself never opens a Store (persistence across process restarts
// is a non-goal); a host process that wants a durable record of finished
// battles constructs one explicitly and feeds it battle.FullLog output
// after a battle ends.
package replaylog

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS replay_log (
	battle_id TEXT NOT NULL,
	seq       INTEGER NOT NULL,
	line      TEXT NOT NULL,
	PRIMARY KEY (battle_id, seq)
);
`

// Store persists battle logs in a SQLite database at a file path (or
// ":memory:" for a process-local store, mainly useful in tests).
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite-backed replay log store.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("replaylog: storage path is required")
	}
	dsn := path + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000"
	if path == ":memory:" {
		dsn = path
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("replaylog: open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("replaylog: ping sqlite db: %w", err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("replaylog: create table: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// AppendLog stores lines as battleID's full log, replacing anything
// previously recorded for the same battle (so a host calling this more
// than once for a growing log does not duplicate rows).
func (s *Store) AppendLog(battleID string, lines []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("replaylog: begin transaction: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM replay_log WHERE battle_id = ?`, battleID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("replaylog: clear prior log: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO replay_log (battle_id, seq, line) VALUES (?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("replaylog: prepare insert: %w", err)
	}
	defer stmt.Close()
	for i, line := range lines {
		if _, err := stmt.Exec(battleID, i, line); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("replaylog: insert line %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// ReadLog returns battleID's stored log lines in order, or an empty slice
// if nothing has been recorded for it.
func (s *Store) ReadLog(battleID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT line FROM replay_log WHERE battle_id = ? ORDER BY seq ASC`, battleID)
	if err != nil {
		return nil, fmt.Errorf("replaylog: query: %w", err)
	}
	defer rows.Close()
	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("replaylog: scan: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
