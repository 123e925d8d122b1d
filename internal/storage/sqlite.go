package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Session is one recorded run in the history store.
type Session struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Direction string     `json:"direction"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Status    string     `json:"status"`
}

// Line is one persisted translation line.
type Line struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	SourceText string    `json:"source_text"`
	Translated string    `json:"translated_text"`
	IsError    bool      `json:"is_error"`
	CreatedAt  time.Time `json:"created_at"`
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "lingo-relay.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			direction TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			status TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS lines (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			source_text TEXT NOT NULL,
			translated_text TEXT NOT NULL,
			is_error INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
		);
	`); err != nil {
		return fmt.Errorf("create lines table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)"); err != nil {
		return fmt.Errorf("create sessions index: %w", err)
	}
	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_lines_session_id ON lines(session_id, created_at)"); err != nil {
		return fmt.Errorf("create lines index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) CreateSession(id, name, direction string, startedAt time.Time) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("session id is required")
	}

	_, err := s.db.Exec(
		"INSERT INTO sessions (id, name, direction, started_at, status) VALUES (?, ?, ?, ?, 'active')",
		id, name, direction, startedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) EndSession(id string, endedAt time.Time) error {
	_, err := s.db.Exec(
		"UPDATE sessions SET ended_at = ?, status = 'ended' WHERE id = ?",
		endedAt.UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendLine(line Line) error {
	isError := 0
	if line.IsError {
		isError = 1
	}

	_, err := s.db.Exec(
		"INSERT INTO lines (id, session_id, source_text, translated_text, is_error, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		line.ID, line.SessionID, line.SourceText, line.Translated, isError, line.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert line: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListSessions() ([]Session, error) {
	rows, err := s.db.Query(
		"SELECT id, name, direction, started_at, ended_at, status FROM sessions ORDER BY started_at DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var startedAt string
		var endedAt sql.NullString
		if err := rows.Scan(&sess.ID, &sess.Name, &sess.Direction, &startedAt, &endedAt, &sess.Status); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		if endedAt.Valid {
			t, perr := time.Parse(time.RFC3339Nano, endedAt.String)
			if perr == nil {
				sess.EndedAt = &t
			}
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *SQLiteStore) GetLines(sessionID string) ([]Line, error) {
	rows, err := s.db.Query(
		"SELECT id, session_id, source_text, translated_text, is_error, created_at FROM lines WHERE session_id = ? ORDER BY created_at ASC",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query lines: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var lines []Line
	for rows.Next() {
		var line Line
		var isError int
		var createdAt string
		if err := rows.Scan(&line.ID, &line.SessionID, &line.SourceText, &line.Translated, &isError, &createdAt); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		line.IsError = isError != 0
		line.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
