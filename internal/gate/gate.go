// Package gate orchestrates interpretation, policy checks, approval
// gating, sandboxed execution, and logging.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/axionhq/axion/internal/domain"
	"github.com/axionhq/axion/internal/policy"
	"github.com/axionhq/axion/internal/store"
	"github.com/google/uuid"
)

// Decision values accepted by ResolveAction.
const (
	DecisionAllow = "allow"
	DecisionDeny  = "deny"
)

// deniedError is the fixed error recorded when a user denies an action.
const deniedError = "User denied action"

var (
	// ErrSessionNotFound is returned when an operation references a
	// session that does not exist (or has been swept).
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidDecision is returned for decisions other than allow/deny.
	ErrInvalidDecision = errors.New("invalid decision")
	// ErrInvalidMode is returned for unrecognized operating modes.
	ErrInvalidMode = errors.New("invalid session mode")
)

// Interpreter maps an utterance to a ParseResult. Satisfied by
// parser.Parser.
type Interpreter interface {
	Interpret(ctx context.Context, utterance string) domain.ParseResult
}

// Executor runs a tool and returns its result payload. Satisfied by
// sandbox.Executor.
type Executor interface {
	Execute(ctx context.Context, tool string, args map[string]any) (map[string]any, error)
}

// ExecutorFactory builds an executor rooted at the given directory.
// Sessions can carry different sandbox roots, so executors are built per
// resolution rather than once at startup.
type ExecutorFactory func(root string) (Executor, error)

// Notifier pushes an event to a session's live subscriber, best effort.
// Satisfied by notify.Hub.
type Notifier interface {
	Notify(sessionID, event string, data any)
}

// Config holds gate settings.
type Config struct {
	// DefaultRoot is the sandbox root used when no root_path setting is
	// stored and for pending actions that carry no session.
	DefaultRoot string
	// MaxSessionMinutes is the expiry duration recorded on new sessions.
	MaxSessionMinutes int
}

// Gate composes the interpreter, policy engine, executor, store, and
// notification channel.
type Gate struct {
	repo      store.Repository
	parser    Interpreter
	notifier  Notifier
	executors ExecutorFactory
	cfg       Config
}

// New creates a Gate.
func New(repo store.Repository, parser Interpreter, notifier Notifier, executors ExecutorFactory, cfg Config) *Gate {
	return &Gate{
		repo:      repo,
		parser:    parser,
		notifier:  notifier,
		executors: executors,
		cfg:       cfg,
	}
}

// PlanResult is the outcome of one ProposePlan call: the proposed
// actions plus the results of those executed without approval.
type PlanResult struct {
	Actions     []*domain.Action       `json:"actions"`
	AutoResults []*domain.ActionResult `json:"auto_results"`
}

// StartSession creates a new session in the given mode. Scopes are
// derived from the mode and immutable for the session's life; the
// sandbox root is read from the settings store at creation time.
func (g *Gate) StartSession(ctx context.Context, mode domain.Mode) (*domain.Session, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	root, err := g.repo.GetSetting(ctx, "root_path", g.cfg.DefaultRoot)
	if err != nil {
		return nil, fmt.Errorf("read root path setting: %w", err)
	}

	session := &domain.Session{
		ID:               uuid.NewString(),
		Mode:             mode,
		AllowedScopes:    policy.AllowedScopes(mode),
		ExpiresInMinutes: g.cfg.MaxSessionMinutes,
		CreatedAt:        time.Now().UTC(),
		RootPath:         root,
	}

	if err := g.repo.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	slog.Info("Session started", "session_id", session.ID, "mode", session.Mode, "root", session.RootPath)
	return session, nil
}

// ProposePlan interprets an utterance and either executes the resulting
// action directly or persists it for approval. An unknown intent
// produces zero actions.
func (g *Gate) ProposePlan(ctx context.Context, sessionID, utterance string) (*PlanResult, error) {
	session, err := g.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	parsed := g.parser.Interpret(ctx, utterance)
	if parsed.Intent == domain.IntentUnknown {
		return &PlanResult{Actions: []*domain.Action{}, AutoResults: []*domain.ActionResult{}}, nil
	}

	risk := policy.ClassifyRisk(parsed.Intent)
	action := &domain.Action{
		ID:           uuid.NewString(),
		Tool:         parsed.Intent,
		Args:         parsed.Args,
		Risk:         risk,
		NeedApproval: policy.NeedsApproval(risk, session.Mode),
		ReasonBrief:  "proposed by " + string(parsed.Source),
		SessionID:    session.ID,
		CreatedAt:    time.Now().UTC(),
	}

	plan := &PlanResult{Actions: []*domain.Action{action}, AutoResults: []*domain.ActionResult{}}

	if action.NeedApproval {
		if err := g.repo.SaveAction(ctx, action); err != nil {
			return nil, fmt.Errorf("save pending action: %w", err)
		}
		slog.Info("Action pending approval",
			"action_id", action.ID, "tool", action.Tool, "risk", action.Risk, "session_id", session.ID)
		return plan, nil
	}

	// No approval needed: execute synchronously within this request. The
	// action is never persisted as pending.
	result := g.run(ctx, session, action)
	plan.AutoResults = append(plan.AutoResults, result)
	return plan, nil
}

// ResolveAction applies an allow/deny decision to a pending action.
// The action is taken from the store atomically, so concurrent
// resolutions of the same id execute at most once; the losers get
// store.ErrActionNotFound.
func (g *Gate) ResolveAction(ctx context.Context, actionID, decision string) (*domain.ActionResult, error) {
	if decision != DecisionAllow && decision != DecisionDeny {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}

	action, err := g.repo.TakeAction(ctx, actionID)
	if err != nil {
		return nil, err
	}

	var session *domain.Session
	if action.SessionID != "" {
		session, err = g.repo.GetSession(ctx, action.SessionID)
		if err != nil {
			return nil, fmt.Errorf("get session: %w", err)
		}
		if session == nil {
			return nil, ErrSessionNotFound
		}
	}

	if decision == DecisionDeny {
		result := &domain.ActionResult{ActionID: action.ID, Success: false, Error: deniedError}
		g.record(ctx, session, action, result)
		slog.Info("Action denied", "action_id", action.ID, "tool", action.Tool)
		return result, nil
	}

	if session != nil {
		return g.run(ctx, session, action), nil
	}

	// Sessionless actions (standalone privilege requests) execute against
	// the default root and produce no log entry, since log entries always
	// require an owning session.
	result := g.executeTool(ctx, g.cfg.DefaultRoot, action)
	return result, nil
}

// RequestPrivilege creates a privilege-elevation action. It is always
// high risk, always requires approval, and never executes directly.
func (g *Gate) RequestPrivilege(ctx context.Context, sessionID string, need []string, targetPath string, expiresMinutes int, reason string) (*domain.Action, error) {
	action := &domain.Action{
		ID:   uuid.NewString(),
		Tool: policy.ToolPrivilegeRequest,
		Args: map[string]any{
			"need":            need,
			"target_path":     targetPath,
			"expires_minutes": expiresMinutes,
			"reason_brief":    reason,
		},
		Risk:         domain.RiskHigh,
		NeedApproval: true,
		ReasonBrief:  reason,
		SessionID:    sessionID,
		CreatedAt:    time.Now().UTC(),
	}

	if err := g.repo.SaveAction(ctx, action); err != nil {
		return nil, fmt.Errorf("save privilege request: %w", err)
	}

	slog.Info("Privilege requested",
		"action_id", action.ID, "target_path", targetPath, "expires_minutes", expiresMinutes)
	return action, nil
}

// run executes an action for a session, records the log entry, and
// notifies the session's subscriber.
func (g *Gate) run(ctx context.Context, session *domain.Session, action *domain.Action) *domain.ActionResult {
	result := g.executeTool(ctx, session.RootPath, action)
	g.record(ctx, session, action, result)
	return result
}

// executeTool builds an executor for the root and runs the action.
// Execution errors are expected conditions: they are captured in the
// result, never returned.
func (g *Gate) executeTool(ctx context.Context, root string, action *domain.Action) *domain.ActionResult {
	exec, err := g.executors(root)
	if err != nil {
		slog.Error("Failed to build executor", "error", err, "root", root, "action_id", action.ID)
		return &domain.ActionResult{ActionID: action.ID, Success: false, Error: err.Error()}
	}

	payload, err := exec.Execute(ctx, action.Tool, action.Args)
	if err != nil {
		slog.Warn("Tool execution failed", "action_id", action.ID, "tool", action.Tool, "error", err)
		return &domain.ActionResult{ActionID: action.ID, Success: false, Error: err.Error()}
	}

	return &domain.ActionResult{ActionID: action.ID, Success: true, Result: payload}
}

// record writes the log entry for a resolution and sends the best-effort
// notification. Neither failure propagates: the resolution itself has
// already happened.
func (g *Gate) record(ctx context.Context, session *domain.Session, action *domain.Action, result *domain.ActionResult) {
	if session == nil {
		return
	}

	entry := &domain.LogEntry{
		ActionID:  action.ID,
		Tool:      action.Tool,
		Args:      action.Args,
		Success:   result.Success,
		Result:    result.Result,
		Error:     result.Error,
		CreatedAt: time.Now().UTC(),
		SessionID: session.ID,
	}
	if err := g.repo.SaveLog(ctx, entry); err != nil {
		slog.Error("Failed to save log entry", "error", err, "action_id", action.ID)
	}

	if g.notifier != nil {
		g.notifier.Notify(session.ID, "tool_result", result)
	}
}
