package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/axionhq/axion/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db       *sql.DB
	actionMu sync.Mutex // serializes take-and-delete on pending actions
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		allowed_scopes TEXT NOT NULL,
		expires_in_minutes INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		root_path TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);

	CREATE TABLE IF NOT EXISTS actions (
		id TEXT PRIMARY KEY,
		tool TEXT NOT NULL,
		args TEXT NOT NULL,
		need_approval INTEGER NOT NULL,
		reason_brief TEXT,
		risk TEXT NOT NULL,
		session_id TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_actions_session ON actions(session_id);

	CREATE TABLE IF NOT EXISTS logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action_id TEXT NOT NULL,
		tool TEXT NOT NULL,
		args TEXT NOT NULL,
		success INTEGER NOT NULL,
		result TEXT,
		error TEXT,
		created_at INTEGER NOT NULL,
		session_id TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_logs_session ON logs(session_id, id);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// SaveSession persists a session.
func (s *SQLiteStore) SaveSession(ctx context.Context, session *domain.Session) error {
	scopes, err := json.Marshal(session.AllowedScopes)
	if err != nil {
		return fmt.Errorf("marshal scopes: %w", err)
	}

	query := `
	INSERT INTO sessions (id, mode, allowed_scopes, expires_in_minutes, created_at, root_path)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		mode = excluded.mode,
		allowed_scopes = excluded.allowed_scopes,
		expires_in_minutes = excluded.expires_in_minutes,
		root_path = excluded.root_path`

	_, err = s.db.ExecContext(ctx, query,
		session.ID, string(session.Mode), string(scopes),
		session.ExpiresInMinutes, session.CreatedAt.Unix(), session.RootPath,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by id.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	query := `
		SELECT id, mode, allowed_scopes, expires_in_minutes, created_at, root_path
		FROM sessions WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, id)

	var session domain.Session
	var mode, scopesJSON string
	var createdAt int64

	err := row.Scan(&session.ID, &mode, &scopesJSON, &session.ExpiresInMinutes, &createdAt, &session.RootPath)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	session.Mode = domain.Mode(mode)
	session.CreatedAt = time.Unix(createdAt, 0).UTC()
	if err := json.Unmarshal([]byte(scopesJSON), &session.AllowedScopes); err != nil {
		return nil, fmt.Errorf("unmarshal scopes: %w", err)
	}

	return &session, nil
}

// DeleteSession removes a session.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes expired sessions and their pending actions.
func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin expiry transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			slog.Warn("failed to roll back expiry transaction", "error", rbErr)
		}
	}()

	expired := `SELECT id FROM sessions WHERE created_at + expires_in_minutes * 60 < ?`

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM actions WHERE session_id IN (`+expired+`)`, now.Unix()); err != nil {
		return 0, fmt.Errorf("delete actions of expired sessions: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM sessions WHERE created_at + expires_in_minutes * 60 < ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expired sessions rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit expiry transaction: %w", err)
	}
	return deleted, nil
}

// SaveAction persists a pending action.
func (s *SQLiteStore) SaveAction(ctx context.Context, action *domain.Action) error {
	args, err := json.Marshal(action.Args)
	if err != nil {
		return fmt.Errorf("marshal action args: %w", err)
	}

	query := `
	INSERT INTO actions (id, tool, args, need_approval, reason_brief, risk, session_id, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		tool = excluded.tool,
		args = excluded.args,
		need_approval = excluded.need_approval,
		reason_brief = excluded.reason_brief,
		risk = excluded.risk,
		session_id = excluded.session_id`

	var sessionID interface{}
	if action.SessionID != "" {
		sessionID = action.SessionID
	}

	_, err = s.db.ExecContext(ctx, query,
		action.ID, action.Tool, string(args), boolToInt(action.NeedApproval),
		action.ReasonBrief, string(action.Risk), sessionID, action.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save action: %w", err)
	}
	return nil
}

// GetAction retrieves a pending action by id.
func (s *SQLiteStore) GetAction(ctx context.Context, id string) (*domain.Action, error) {
	return s.getAction(ctx, id)
}

func (s *SQLiteStore) getAction(ctx context.Context, id string) (*domain.Action, error) {
	query := `
		SELECT id, tool, args, need_approval, reason_brief, risk, session_id, created_at
		FROM actions WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, id)

	var action domain.Action
	var argsJSON, risk string
	var reasonBrief, sessionID sql.NullString
	var needApproval int
	var createdAt int64

	err := row.Scan(&action.ID, &action.Tool, &argsJSON, &needApproval,
		&reasonBrief, &risk, &sessionID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan action row: %w", err)
	}

	action.NeedApproval = needApproval != 0
	action.ReasonBrief = reasonBrief.String
	action.Risk = domain.Risk(risk)
	action.SessionID = sessionID.String
	action.CreatedAt = time.Unix(createdAt, 0).UTC()
	if err := json.Unmarshal([]byte(argsJSON), &action.Args); err != nil {
		return nil, fmt.Errorf("unmarshal action args: %w", err)
	}

	return &action, nil
}

// TakeAction atomically fetches and removes a pending action. The mutex
// serializes concurrent resolutions so at most one caller wins.
func (s *SQLiteStore) TakeAction(ctx context.Context, id string) (*domain.Action, error) {
	s.actionMu.Lock()
	defer s.actionMu.Unlock()

	action, err := s.getAction(ctx, id)
	if err != nil {
		return nil, err
	}
	if action == nil {
		return nil, ErrActionNotFound
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM actions WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("delete action: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("take action rows affected: %w", err)
	}
	if rows == 0 {
		return nil, ErrActionNotFound
	}

	return action, nil
}

// SaveLog appends an execution log entry.
func (s *SQLiteStore) SaveLog(ctx context.Context, entry *domain.LogEntry) error {
	args, err := json.Marshal(entry.Args)
	if err != nil {
		return fmt.Errorf("marshal log args: %w", err)
	}

	var result interface{}
	if entry.Result != nil {
		data, err := json.Marshal(entry.Result)
		if err != nil {
			return fmt.Errorf("marshal log result: %w", err)
		}
		result = string(data)
	}

	var errMsg interface{}
	if entry.Error != "" {
		errMsg = entry.Error
	}

	query := `
	INSERT INTO logs (action_id, tool, args, success, result, error, created_at, session_id)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		entry.ActionID, entry.Tool, string(args), boolToInt(entry.Success),
		result, errMsg, entry.CreatedAt.Unix(), entry.SessionID,
	)
	if err != nil {
		return fmt.Errorf("save log: %w", err)
	}
	return nil
}

// GetLogs returns the log entries for a session in insertion order.
func (s *SQLiteStore) GetLogs(ctx context.Context, sessionID string) ([]*domain.LogEntry, error) {
	query := `
		SELECT action_id, tool, args, success, result, error, created_at, session_id
		FROM logs WHERE session_id = ? ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close log rows", "error", closeErr)
		}
	}()

	var entries []*domain.LogEntry
	for rows.Next() {
		var entry domain.LogEntry
		var argsJSON string
		var result, errMsg sql.NullString
		var success int
		var createdAt int64

		if err := rows.Scan(&entry.ActionID, &entry.Tool, &argsJSON, &success,
			&result, &errMsg, &createdAt, &entry.SessionID); err != nil {
			return nil, fmt.Errorf("scan log row: %w", err)
		}

		entry.Success = success != 0
		entry.Error = errMsg.String
		entry.CreatedAt = time.Unix(createdAt, 0).UTC()
		if err := json.Unmarshal([]byte(argsJSON), &entry.Args); err != nil {
			return nil, fmt.Errorf("unmarshal log args: %w", err)
		}
		if result.Valid {
			if err := json.Unmarshal([]byte(result.String), &entry.Result); err != nil {
				return nil, fmt.Errorf("unmarshal log result: %w", err)
			}
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate logs: %w", err)
	}
	return entries, nil
}

// GetSetting returns the value stored for key, or def when absent.
func (s *SQLiteStore) GetSetting(ctx context.Context, key, def string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key)

	var value string
	err := row.Scan(&value)
	if err == sql.ErrNoRows {
		return def, nil
	}
	if err != nil {
		return "", fmt.Errorf("scan setting: %w", err)
	}
	return value, nil
}

// SaveSetting stores a value for key, replacing any previous value.
func (s *SQLiteStore) SaveSetting(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO settings (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value`

	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("save setting: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
