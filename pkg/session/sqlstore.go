package session

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	preset        TEXT NOT NULL,
	started_at    INTEGER NOT NULL,
	ended_at      INTEGER,
	average_focus REAL,
	minutes       INTEGER,
	coins         INTEGER,
	xp            INTEGER,
	pet_happiness INTEGER
);
CREATE INDEX IF NOT EXISTS sessions_user ON sessions (user_id, started_at);
CREATE TABLE IF NOT EXISTS focus_logs (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions (id),
	score      INTEGER NOT NULL,
	at         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS focus_logs_session ON focus_logs (session_id, at);
`

// SQLStore implements Store on SQLite.
type SQLStore struct {
	db *sql.DB
}

var _ Store = &SQLStore{} // Compile-time check

// NewSQLStore opens (or creates) a SQLite database at path. Use
// ":memory:" for a throwaway store.
func NewSQLStore(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite store at %q: %w", path, err)
	}
	// Limit SQLite to a single open connection to avoid "database is locked" errors
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to SQLite store: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Create stores a new session.
func (s *SQLStore) Create(sess *Session) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, user_id, preset, started_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.Preset, sess.StartedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", sess.ID, err)
	}
	return s.Update(sess)
}

// Get retrieves a session by ID.
func (s *SQLStore) Get(id string) (*Session, error) {
	row := s.db.QueryRow(selectSession+` WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return sess, nil
}

// Update replaces an existing session.
func (s *SQLStore) Update(sess *Session) error {
	var ended sql.NullInt64
	if sess.EndedAt != nil {
		ended = sql.NullInt64{Int64: sess.EndedAt.UnixMilli(), Valid: true}
	}
	var (
		avg                           sql.NullFloat64
		minutes, coins, xp, happiness sql.NullInt64
	)
	if r := sess.Result; r != nil {
		avg = sql.NullFloat64{Float64: r.AverageFocus, Valid: true}
		minutes = sql.NullInt64{Int64: int64(r.Minutes), Valid: true}
		coins = sql.NullInt64{Int64: int64(r.Coins), Valid: true}
		xp = sql.NullInt64{Int64: int64(r.XP), Valid: true}
		happiness = sql.NullInt64{Int64: int64(r.PetHappiness), Valid: true}
	}

	res, err := s.db.Exec(`
		UPDATE sessions
		SET user_id = ?, preset = ?, started_at = ?, ended_at = ?,
		    average_focus = ?, minutes = ?, coins = ?, xp = ?, pet_happiness = ?
		WHERE id = ?`,
		sess.UserID, sess.Preset, sess.StartedAt.UnixMilli(), ended,
		avg, minutes, coins, xp, happiness, sess.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", sess.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, sess.ID)
	}
	return nil
}

// List returns a user's sessions, newest first.
func (s *SQLStore) List(userID string) ([]*Session, error) {
	rows, err := s.db.Query(selectSession+` WHERE user_id = ? ORDER BY started_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// AddLog appends a focus log to its session.
func (s *SQLStore) AddLog(l FocusLog) error {
	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM sessions WHERE id = ?`, l.SessionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, l.SessionID)
	}
	if err != nil {
		return fmt.Errorf("failed to check session %s: %w", l.SessionID, err)
	}

	_, err = s.db.Exec(
		`INSERT INTO focus_logs (id, session_id, score, at) VALUES (?, ?, ?, ?)`,
		l.ID, l.SessionID, l.Score, l.At.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert focus log: %w", err)
	}
	return nil
}

// Logs returns a session's focus logs, oldest first.
func (s *SQLStore) Logs(sessionID string) ([]FocusLog, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, score, at FROM focus_logs WHERE session_id = ? ORDER BY at, rowid`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query focus logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []FocusLog
	for rows.Next() {
		var (
			l  FocusLog
			at int64
		)
		if err := rows.Scan(&l.ID, &l.SessionID, &l.Score, &at); err != nil {
			return nil, fmt.Errorf("failed to scan focus log: %w", err)
		}
		l.At = time.UnixMilli(at)
		out = append(out, l)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

const selectSession = `
	SELECT id, user_id, preset, started_at, ended_at,
	       average_focus, minutes, coins, xp, pet_happiness
	FROM sessions`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var (
		sess                          Session
		started                       int64
		ended                         sql.NullInt64
		avg                           sql.NullFloat64
		minutes, coins, xp, happiness sql.NullInt64
	)
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.Preset, &started, &ended,
		&avg, &minutes, &coins, &xp, &happiness); err != nil {
		return nil, err
	}

	sess.StartedAt = time.UnixMilli(started)
	if ended.Valid {
		t := time.UnixMilli(ended.Int64)
		sess.EndedAt = &t
	}
	if avg.Valid {
		sess.Result = &Rewards{
			AverageFocus: avg.Float64,
			Minutes:      int(minutes.Int64),
			Coins:        int(coins.Int64),
			XP:           int(xp.Int64),
			PetHappiness: int(happiness.Int64),
		}
	}
	return &sess, nil
}
