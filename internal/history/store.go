// Package history implements the transition audit log for kat-planner.
//
// It records every successful stage transition in SQLite so a completed or
// expired session's path through the workflow survives the session store's
// reaper. History is an independent subsystem: if it fails to initialize,
// planning tools keep working and the server simply runs without auditing.
package history

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// Transition is one recorded stage move. FromStage is empty for the
// creation event.
type Transition struct {
	ID        int64  `json:"id"`
	SessionID string `json:"session_id"`
	FromStage string `json:"from_stage,omitempty"`
	ToStage   string `json:"to_stage"`
	Subject   string `json:"subject"`
	CreatedAt string `json:"created_at"` // RFC3339
}

// Config holds history store configuration.
type Config struct {
	DataDir string
}

// DefaultConfig returns the default configuration, storing the database
// under ~/.kat-planner/.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir: filepath.Join(home, ".kat-planner"),
	}
}

// Store is the transition audit log backed by SQLite.
type Store struct {
	db *sql.DB
}

// New creates a Store with the given configuration. It creates the data
// directory if needed, opens SQLite with WAL mode, and runs migrations.
func New(cfg Config) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("history: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "history.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("history: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("history: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS transitions (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			from_stage TEXT NOT NULL DEFAULT '',
			to_stage   TEXT NOT NULL,
			subject    TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_transitions_session
			ON transitions(session_id, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record inserts one transition row.
func (s *Store) Record(sessionID, fromStage, toStage, subject string) error {
	_, err := s.db.Exec(
		`INSERT INTO transitions (session_id, from_stage, to_stage, subject, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID, fromStage, toStage, subject,
		timeNow().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("history: recording transition: %w", err)
	}
	return nil
}

// RecordTransition satisfies the workflow's Recorder interface. Failures
// are logged, never surfaced — auditing must not fail the workflow.
func (s *Store) RecordTransition(sessionID, fromStage, toStage, subject string) {
	if err := s.Record(sessionID, fromStage, toStage, subject); err != nil {
		log.Printf("WARNING: %v", err)
	}
}

// BySession returns all transitions for a session, oldest first.
func (s *Store) BySession(sessionID string) ([]Transition, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, from_stage, to_stage, subject, created_at
		 FROM transitions WHERE session_id = ? ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("history: querying session %q: %w", sessionID, err)
	}
	defer rows.Close()
	return scanTransitions(rows)
}

// Recent returns the most recent transitions across all sessions,
// newest first, capped at limit.
func (s *Store) Recent(limit int) ([]Transition, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, session_id, from_stage, to_stage, subject, created_at
		 FROM transitions ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history: querying recent: %w", err)
	}
	defer rows.Close()
	return scanTransitions(rows)
}

func scanTransitions(rows *sql.Rows) ([]Transition, error) {
	var result []Transition
	for rows.Next() {
		var t Transition
		if err := rows.Scan(&t.ID, &t.SessionID, &t.FromStage, &t.ToStage, &t.Subject, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("history: scanning row: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterating rows: %w", err)
	}
	return result, nil
}
