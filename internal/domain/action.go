package domain

import (
	"time"
)

// Risk is the coarse risk classification of a tool.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Action is a proposed tool invocation. Actions that require approval are
// persisted as pending until exactly one allow/deny decision resolves them;
// actions that do not require approval are executed synchronously and are
// never persisted as pending.
type Action struct {
	ID           string         `json:"id"`
	Tool         string         `json:"tool"`
	Args         map[string]any `json:"args"`
	NeedApproval bool           `json:"need_approval"`
	ReasonBrief  string         `json:"reason_brief"`
	Risk         Risk           `json:"risk"`
	SessionID    string         `json:"session_id,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// ActionResult is the outcome of one execution attempt (or denial).
type ActionResult struct {
	ActionID string         `json:"action_id"`
	Success  bool           `json:"success"`
	Result   map[string]any `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// LogEntry is an immutable record of one execution attempt. Log entries
// always belong to a session; auto-executed actions produce one as well.
type LogEntry struct {
	ActionID  string         `json:"action_id"`
	Tool      string         `json:"tool"`
	Args      map[string]any `json:"args"`
	Success   bool           `json:"success"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id"`
}
