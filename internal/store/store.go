// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/axionhq/axion/internal/domain"
)

// ErrActionNotFound is returned by TakeAction when no pending action
// exists for the id, including when a concurrent resolution already
// consumed it.
var ErrActionNotFound = errors.New("action not found")

// Repository defines the interface for persisting sessions, pending
// actions, execution logs, and settings.
type Repository interface {
	// SaveSession persists a session.
	SaveSession(ctx context.Context, session *domain.Session) error

	// GetSession retrieves a session by id. Returns (nil, nil) when the
	// session does not exist.
	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// DeleteSession removes a session.
	DeleteSession(ctx context.Context, id string) error

	// DeleteExpiredSessions removes sessions whose expiry instant lies
	// before now, together with their pending actions. Returns the
	// number of sessions removed.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// SaveAction persists a pending action.
	SaveAction(ctx context.Context, action *domain.Action) error

	// GetAction retrieves a pending action by id. Returns (nil, nil)
	// when the action does not exist.
	GetAction(ctx context.Context, id string) (*domain.Action, error)

	// TakeAction atomically fetches and removes a pending action. At
	// most one caller can take a given action; every other caller gets
	// ErrActionNotFound.
	TakeAction(ctx context.Context, id string) (*domain.Action, error)

	// SaveLog appends an execution log entry.
	SaveLog(ctx context.Context, entry *domain.LogEntry) error

	// GetLogs returns the log entries for a session in insertion order.
	GetLogs(ctx context.Context, sessionID string) ([]*domain.LogEntry, error)

	// GetSetting returns the value stored for key, or def when absent.
	GetSetting(ctx context.Context, key, def string) (string, error)

	// SaveSetting stores a value for key, replacing any previous value.
	SaveSetting(ctx context.Context, key, value string) error

	// Ping verifies store connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying resources.
	Close() error
}
