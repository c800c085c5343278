package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store provides read-write access to the readback history database.
type Store struct {
	db *sql.DB
}

const schema = `
	CREATE TABLE IF NOT EXISTS turns (
		id TEXT PRIMARY KEY,
		sessionId TEXT NOT NULL,
		frequency REAL NOT NULL,
		feedback TEXT,
		controllerText TEXT,
		audioUrl TEXT,
		completed INTEGER NOT NULL DEFAULT 0,
		createdAt REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(sessionId, createdAt);
`

// Open opens (creating if needed) the database at path with WAL enabled.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveTurn inserts one analyzed turn.
func (s *Store) SaveTurn(t Turn) error {
	_, err := s.db.Exec(`
		INSERT INTO turns (id, sessionId, frequency, feedback, controllerText, audioUrl, completed, createdAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.SessionID, t.Frequency, t.Feedback, t.ControllerText, t.AudioURL,
		boolToInt(t.Completed), unixFromTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

// TurnsForSession returns all turns of a session, oldest first.
func (s *Store) TurnsForSession(sessionID string) ([]Turn, error) {
	rows, err := s.db.Query(`
		SELECT id, sessionId, frequency, feedback, controllerText, audioUrl, completed, createdAt
		FROM turns
		WHERE sessionId = ?
		ORDER BY createdAt ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// LatestTurn returns the most recent turn of a session, or nil when the
// session has none. Used to hydrate a resumed session without a network call.
func (s *Store) LatestTurn(sessionID string) (*Turn, error) {
	row := s.db.QueryRow(`
		SELECT id, sessionId, frequency, feedback, controllerText, audioUrl, completed, createdAt
		FROM turns
		WHERE sessionId = ?
		ORDER BY createdAt DESC
		LIMIT 1
	`, sessionID)

	t, err := scanTurn(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// RecentSessions summarizes the most recently practiced sessions.
func (s *Store) RecentSessions(limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT sessionId, COUNT(*), MAX(completed), MAX(createdAt)
		FROM turns
		GROUP BY sessionId
		ORDER BY MAX(createdAt) DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sums []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		var completed int
		var lastAt float64
		if err := rows.Scan(&sum.SessionID, &sum.Turns, &completed, &lastAt); err != nil {
			return nil, fmt.Errorf("scan session summary: %w", err)
		}
		sum.Completed = completed != 0
		sum.LastAt = timeFromUnix(lastAt)
		sums = append(sums, sum)
	}
	return sums, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTurn(row rowScanner) (Turn, error) {
	var t Turn
	var feedback, controllerText, audioURL sql.NullString
	var completed int
	var createdAt float64

	if err := row.Scan(&t.ID, &t.SessionID, &t.Frequency,
		&feedback, &controllerText, &audioURL, &completed, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return Turn{}, err
		}
		return Turn{}, fmt.Errorf("scan turn: %w", err)
	}

	t.Feedback = feedback.String
	t.ControllerText = controllerText.String
	t.AudioURL = audioURL.String
	t.Completed = completed != 0
	t.CreatedAt = timeFromUnix(createdAt)
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
