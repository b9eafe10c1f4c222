package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/numscan/internal/session"
)

// ErrSessionNotFound is returned when no stored session matches a lookup.
var ErrSessionNotFound = errors.New("sqlite: session not found")

// SessionStore saves and loads finished session results.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates a store over an open database.
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db.DB}
}

// Save writes res, replacing any previous row for the same session ID.
func (s *SessionStore) Save(ctx context.Context, res session.Result) error {
	if res.SessionID == uuid.Nil {
		return fmt.Errorf("save session: missing session id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save session: begin: %w", err)
	}
	defer tx.Rollback()

	var parent sql.NullString
	if res.ParentID != uuid.Nil {
		parent = sql.NullString{String: res.ParentID.String(), Valid: true}
	}
	var ended sql.NullInt64
	if !res.EndedAt.IsZero() {
		ended = sql.NullInt64{Int64: res.EndedAt.UnixNano(), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scan_sessions (session_id, parent_id, round, started_at_ns, ended_at_ns, created_at_ns)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET
			parent_id = excluded.parent_id,
			round = excluded.round,
			started_at_ns = excluded.started_at_ns,
			ended_at_ns = excluded.ended_at_ns`,
		res.SessionID.String(), parent, res.Round, res.StartedAt.UnixNano(), ended, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_numbers WHERE session_id = ?`, res.SessionID.String()); err != nil {
		return fmt.Errorf("clear session numbers: %w", err)
	}

	flags := make(map[string][2]bool)
	for _, n := range res.Numbers {
		f := flags[n]
		f[0] = true
		flags[n] = f
	}
	for _, n := range res.CollectedNumbers {
		f := flags[n]
		f[1] = true
		flags[n] = f
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO session_numbers (session_id, number, expected, collected)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare session numbers: %w", err)
	}
	defer stmt.Close()

	for n, f := range flags {
		if _, err := stmt.ExecContext(ctx, res.SessionID.String(), n, boolInt(f[0]), boolInt(f[1])); err != nil {
			return fmt.Errorf("insert session number %q: %w", n, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save session: commit: %w", err)
	}
	return nil
}

// Get loads the session with the given ID.
func (s *SessionStore) Get(ctx context.Context, id uuid.UUID) (session.Result, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, parent_id, round, started_at_ns, ended_at_ns
		FROM scan_sessions WHERE session_id = ?`, id.String())
	return s.load(ctx, row)
}

// Latest loads the most recently started session.
func (s *SessionStore) Latest(ctx context.Context) (session.Result, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, parent_id, round, started_at_ns, ended_at_ns
		FROM scan_sessions ORDER BY started_at_ns DESC, created_at_ns DESC LIMIT 1`)
	return s.load(ctx, row)
}

// List returns up to limit sessions, newest first. A non-positive limit
// returns every session.
func (s *SessionStore) List(ctx context.Context, limit int) ([]session.Result, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id FROM scan_sessions
		ORDER BY started_at_ns DESC, created_at_ns DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("parse session id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	rows.Close()

	out := make([]session.Result, 0, len(ids))
	for _, id := range ids {
		res, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// Delete removes a session and its numbers.
func (s *SessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scan_sessions WHERE session_id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *SessionStore) load(ctx context.Context, row *sql.Row) (session.Result, error) {
	var (
		rawID   string
		parent  sql.NullString
		res     session.Result
		started int64
		ended   sql.NullInt64
	)
	if err := row.Scan(&rawID, &parent, &res.Round, &started, &ended); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Result{}, ErrSessionNotFound
		}
		return session.Result{}, fmt.Errorf("get session: %w", err)
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return session.Result{}, fmt.Errorf("parse session id %q: %w", rawID, err)
	}
	res.SessionID = id
	if parent.Valid {
		if res.ParentID, err = uuid.Parse(parent.String); err != nil {
			return session.Result{}, fmt.Errorf("parse parent id %q: %w", parent.String, err)
		}
	}
	res.StartedAt = time.Unix(0, started).UTC()
	if ended.Valid {
		res.EndedAt = time.Unix(0, ended.Int64).UTC()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT number, expected, collected FROM session_numbers
		WHERE session_id = ?
		ORDER BY length(number), number`, rawID)
	if err != nil {
		return session.Result{}, fmt.Errorf("get session numbers: %w", err)
	}
	defer rows.Close()

	res.Numbers = []string{}
	res.CollectedNumbers = []string{}
	res.MissingNumbers = []string{}
	for rows.Next() {
		var (
			n                   string
			expected, collected bool
		)
		if err := rows.Scan(&n, &expected, &collected); err != nil {
			return session.Result{}, fmt.Errorf("scan session number: %w", err)
		}
		if expected {
			res.Numbers = append(res.Numbers, n)
		}
		if collected {
			res.CollectedNumbers = append(res.CollectedNumbers, n)
		}
		if expected && !collected {
			res.MissingNumbers = append(res.MissingNumbers, n)
		}
	}
	if err := rows.Err(); err != nil {
		return session.Result{}, fmt.Errorf("get session numbers: %w", err)
	}
	return res, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
