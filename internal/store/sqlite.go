package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pbazhin/studyhub/internal/domain"
)

// SQLiteStore persists study sessions and their membership sets.
//
// Every mutation is an atomic conditional statement (INSERT OR IGNORE,
// conditional UPDATE, DELETE) rather than read-modify-write, so logically
// concurrent requests cannot lose updates between a read and a write.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at the given path and runs
// migrations.
func Open(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	normalized := filepath.ToSlash(path)
	dsn := "file:" + normalized + "?cache=shared" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(ON)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			creator_id TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			active INTEGER NOT NULL DEFAULT 1,
			mic_only INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_creator_active ON sessions(creator_id, active);`,

		`CREATE TABLE IF NOT EXISTS session_participants (
			session_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			PRIMARY KEY (session_id, user_id)
		);`,
		`CREATE TABLE IF NOT EXISTS raised_hands (
			session_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			PRIMARY KEY (session_id, user_id)
		);`,

		`CREATE TABLE IF NOT EXISTS join_records (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('joined', 'left')),
			joined_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_join_records_lookup ON join_records(session_id, user_id, status);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// CreateSession persists a new session with empty membership sets.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess *domain.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, name, creator_id, description, active, mic_only, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Name, sess.CreatorID, sess.Description,
		boolInt(sess.Active), boolInt(sess.MicOnly),
		formatTime(sess.CreatedAt), formatTime(sess.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// SessionByID loads a session with its participant and raised-hand sets.
func (s *SQLiteStore) SessionByID(ctx context.Context, id string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, creator_id, description, active, mic_only, created_at, updated_at
		 FROM sessions WHERE id = ?`, id)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if err := s.loadMembers(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Sessions lists sessions matching the filter, newest first.
func (s *SQLiteStore) Sessions(ctx context.Context, filter domain.SessionFilter) ([]domain.Session, error) {
	query := `SELECT id, name, creator_id, description, active, mic_only, created_at, updated_at FROM sessions`
	var (
		where []string
		args  []any
	)
	if filter.CreatorID != "" {
		where = append(where, "creator_id = ?")
		args = append(args, filter.CreatorID)
	}
	if filter.Active != nil {
		where = append(where, "active = ?")
		args = append(args, boolInt(*filter.Active))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		out = append(out, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	for i := range out {
		if err := s.loadMembers(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// HasActiveJoin reports whether an active join record exists for the pair.
func (s *SQLiteStore) HasActiveJoin(ctx context.Context, sessionID, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM join_records WHERE session_id = ? AND user_id = ? AND status = 'joined' LIMIT 1`,
		sessionID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("active join lookup: %w", err)
	}
	return true, nil
}

// RecordJoin writes the join record and adds the user to the participant set
// in one transaction. The set-add is idempotent.
func (s *SQLiteStore) RecordJoin(ctx context.Context, sessionID, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record join: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now().UTC())
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO join_records (id, session_id, user_id, status, joined_at, updated_at)
		 VALUES (?, ?, ?, 'joined', ?, ?)`,
		domain.NewObjectID(), sessionID, userID, now, now); err != nil {
		return fmt.Errorf("record join: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO session_participants (session_id, user_id) VALUES (?, ?)`,
		sessionID, userID); err != nil {
		return fmt.Errorf("record join: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE id = ?`, now, sessionID); err != nil {
		return fmt.Errorf("record join: %w", err)
	}
	return tx.Commit()
}

// RemoveParticipant pulls the user from the session's participant set.
// Returns domain.ErrNotFound when the session does not exist.
func (s *SQLiteStore) RemoveParticipant(ctx context.Context, sessionID, userID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, sessionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}

	now := formatTime(time.Now().UTC())
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM session_participants WHERE session_id = ? AND user_id = ?`,
		sessionID, userID); err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE id = ?`, now, sessionID); err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	return nil
}

// MarkLeft flips the active join record to left. ok reports whether an
// active record existed.
func (s *SQLiteStore) MarkLeft(ctx context.Context, sessionID, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE join_records SET status = 'left', updated_at = ?
		 WHERE session_id = ? AND user_id = ? AND status = 'joined'`,
		formatTime(time.Now().UTC()), sessionID, userID)
	if err != nil {
		return false, fmt.Errorf("mark left: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark left: %w", err)
	}
	return n > 0, nil
}

// AddRaisedHand adds the user to the session's raised-hand set.
// Re-raising is idempotent. Returns domain.ErrNotFound when the session
// does not exist.
func (s *SQLiteStore) AddRaisedHand(ctx context.Context, sessionID, userID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, sessionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("raise hand: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO raised_hands (session_id, user_id) VALUES (?, ?)`,
		sessionID, userID); err != nil {
		return fmt.Errorf("raise hand: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE id = ?`,
		formatTime(time.Now().UTC()), sessionID); err != nil {
		return fmt.Errorf("raise hand: %w", err)
	}
	return nil
}

// UpdateSession applies a non-empty patch and bumps updated_at.
// Returns domain.ErrNotFound when the session does not exist.
func (s *SQLiteStore) UpdateSession(ctx context.Context, id string, patch domain.SessionPatch) error {
	sets := []string{"updated_at = ?"}
	args := []any{formatTime(time.Now().UTC())}
	if patch.Title != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) loadMembers(ctx context.Context, sess *domain.Session) error {
	participants, err := s.memberSet(ctx, "session_participants", sess.ID)
	if err != nil {
		return err
	}
	raised, err := s.memberSet(ctx, "raised_hands", sess.ID)
	if err != nil {
		return err
	}
	sess.Participants = participants
	sess.RaisedHands = raised
	return nil
}

func (s *SQLiteStore) memberSet(ctx context.Context, table, sessionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id FROM "+table+" WHERE session_id = ? ORDER BY user_id", sessionID)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("load %s: %w", table, err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		sess               domain.Session
		active, micOnly    int
		createdAt, updated string
	)
	if err := row.Scan(&sess.ID, &sess.Name, &sess.CreatorID, &sess.Description,
		&active, &micOnly, &createdAt, &updated); err != nil {
		return nil, err
	}
	sess.Active = active != 0
	sess.MicOnly = micOnly != 0
	sess.CreatedAt = parseTime(createdAt)
	sess.UpdatedAt = parseTime(updated)
	return &sess, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
