package store

import (
	"context"
	"sync"
	"time"

	"github.com/axionhq/axion/internal/domain"
)

// MemoryStore implements Repository with in-process maps. It backs the
// memory storage mode and most tests. All operations are atomic per key.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	actions  map[string]domain.Action
	logs     map[string][]domain.LogEntry // session id -> ordered entries
	settings map[string]string
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]domain.Session),
		actions:  make(map[string]domain.Action),
		logs:     make(map[string][]domain.LogEntry),
		settings: make(map[string]string),
	}
}

// SaveSession persists a session.
func (m *MemoryStore) SaveSession(_ context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = *session
	return nil
}

// GetSession retrieves a session by id.
func (m *MemoryStore) GetSession(_ context.Context, id string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

// DeleteSession removes a session.
func (m *MemoryStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// DeleteExpiredSessions removes expired sessions and their pending actions.
func (m *MemoryStore) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, session := range m.sessions {
		if !session.Expired(now) {
			continue
		}
		delete(m.sessions, id)
		deleted++
		for actionID, action := range m.actions {
			if action.SessionID == id {
				delete(m.actions, actionID)
			}
		}
	}
	return deleted, nil
}

// SaveAction persists a pending action.
func (m *MemoryStore) SaveAction(_ context.Context, action *domain.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[action.ID] = *action
	return nil
}

// GetAction retrieves a pending action by id.
func (m *MemoryStore) GetAction(_ context.Context, id string) (*domain.Action, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	action, ok := m.actions[id]
	if !ok {
		return nil, nil
	}
	return &action, nil
}

// TakeAction atomically fetches and removes a pending action.
func (m *MemoryStore) TakeAction(_ context.Context, id string) (*domain.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	action, ok := m.actions[id]
	if !ok {
		return nil, ErrActionNotFound
	}
	delete(m.actions, id)
	return &action, nil
}

// SaveLog appends an execution log entry.
func (m *MemoryStore) SaveLog(_ context.Context, entry *domain.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[entry.SessionID] = append(m.logs[entry.SessionID], *entry)
	return nil
}

// GetLogs returns the log entries for a session in insertion order.
func (m *MemoryStore) GetLogs(_ context.Context, sessionID string) ([]*domain.LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]*domain.LogEntry, 0, len(m.logs[sessionID]))
	for i := range m.logs[sessionID] {
		entry := m.logs[sessionID][i]
		entries = append(entries, &entry)
	}
	return entries, nil
}

// GetSetting returns the value stored for key, or def when absent.
func (m *MemoryStore) GetSetting(_ context.Context, key, def string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if value, ok := m.settings[key]; ok {
		return value, nil
	}
	return def, nil
}

// SaveSetting stores a value for key.
func (m *MemoryStore) SaveSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

// Ping always succeeds for the in-memory store.
func (m *MemoryStore) Ping(_ context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }
