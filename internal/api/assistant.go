package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/axionhq/axion/internal/config"
	"github.com/axionhq/axion/internal/domain"
	"github.com/axionhq/axion/internal/gate"
	"github.com/axionhq/axion/internal/store"
	"github.com/go-chi/chi/v5"
)

// Settings keys used by the root-path endpoints.
const (
	settingRootPath = "root_path"
	settingFirstRun = "first_run"
)

// AssistantHandler exposes the action gate over HTTP.
type AssistantHandler struct {
	gate *gate.Gate
	repo store.Repository
	cfg  *config.Config
}

// NewAssistantHandler creates the handler for the assistant endpoints.
func NewAssistantHandler(g *gate.Gate, repo store.Repository, cfg *config.Config) *AssistantHandler {
	return &AssistantHandler{gate: g, repo: repo, cfg: cfg}
}

// RegisterRoutes registers the assistant routes.
func (h *AssistantHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/", h.Root)
		r.Post("/session/start", h.StartSession)
		r.Post("/plan", h.CreatePlan)
		r.Post("/action/approve", h.ApproveAction)
		r.Get("/logs", h.GetLogs)
		r.Get("/settings/root", h.GetRootSettings)
		r.Post("/settings/root", h.SetRootPath)
		r.Post("/settings/privilege_request", h.RequestPrivilege)
	})
}

// Root is a liveness greeting.
func (h *AssistantHandler) Root(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"message": "Hello World"})
}

type sessionStartRequest struct {
	Mode string `json:"mode"`
}

// StartSession creates a new session. The mode defaults to normal.
func (h *AssistantHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req sessionStartRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Mode == "" {
		req.Mode = string(domain.ModeNormal)
	}

	session, err := h.gate.StartSession(r.Context(), domain.Mode(req.Mode))
	if errors.Is(err, gate.ErrInvalidMode) {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.Error("Failed to start session", "error", err)
		Error(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	JSON(w, http.StatusOK, session)
}

type planRequest struct {
	SessionID string `json:"session_id"`
	Utterance string `json:"utterance"`
}

// CreatePlan interprets an utterance and returns the proposed actions
// plus any auto-execution results.
func (h *AssistantHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if !decode(w, r, &req) {
		return
	}

	plan, err := h.gate.ProposePlan(r.Context(), req.SessionID, req.Utterance)
	if errors.Is(err, gate.ErrSessionNotFound) {
		Error(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		slog.Error("Failed to create plan", "error", err, "session_id", req.SessionID)
		Error(w, http.StatusInternalServerError, "failed to create plan")
		return
	}

	JSON(w, http.StatusOK, plan)
}

type approvalRequest struct {
	ActionID string `json:"action_id"`
	Decision string `json:"decision"`
}

// ApproveAction resolves a pending action with an allow/deny decision.
func (h *AssistantHandler) ApproveAction(w http.ResponseWriter, r *http.Request) {
	var req approvalRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.gate.ResolveAction(r.Context(), req.ActionID, req.Decision)
	switch {
	case errors.Is(err, store.ErrActionNotFound):
		Error(w, http.StatusNotFound, "Action not found")
		return
	case errors.Is(err, gate.ErrSessionNotFound):
		Error(w, http.StatusNotFound, "Session not found")
		return
	case errors.Is(err, gate.ErrInvalidDecision):
		Error(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("Failed to resolve action", "error", err, "action_id", req.ActionID)
		Error(w, http.StatusInternalServerError, "failed to resolve action")
		return
	}

	JSON(w, http.StatusOK, result)
}

// GetLogs returns the execution log for a session.
func (h *AssistantHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		Error(w, http.StatusBadRequest, "session_id is required")
		return
	}

	logs, err := h.repo.GetLogs(r.Context(), sessionID)
	if err != nil {
		slog.Error("Failed to get logs", "error", err, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "failed to get logs")
		return
	}
	if logs == nil {
		logs = []*domain.LogEntry{}
	}

	JSON(w, http.StatusOK, map[string]interface{}{"logs": logs})
}

// GetRootSettings returns the current sandbox root settings.
func (h *AssistantHandler) GetRootSettings(w http.ResponseWriter, r *http.Request) {
	root, err := h.repo.GetSetting(r.Context(), settingRootPath, h.cfg.SandboxRoot)
	if err != nil {
		slog.Error("Failed to read root setting", "error", err)
		Error(w, http.StatusInternalServerError, "failed to read settings")
		return
	}
	firstRun, err := h.repo.GetSetting(r.Context(), settingFirstRun, "true")
	if err != nil {
		slog.Error("Failed to read first_run setting", "error", err)
		Error(w, http.StatusInternalServerError, "failed to read settings")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"root":      root,
		"first_run": firstRun == "true",
	})
}

type rootPathRequest struct {
	Path string `json:"path"`
}

// SetRootPath updates the sandbox root used by sessions created from now
// on. An empty path resets to the configured default.
func (h *AssistantHandler) SetRootPath(w http.ResponseWriter, r *http.Request) {
	var req rootPathRequest
	if !decode(w, r, &req) {
		return
	}

	path := strings.TrimSpace(req.Path)
	if path == "" {
		path = h.cfg.SandboxRoot
	}

	if err := h.repo.SaveSetting(r.Context(), settingRootPath, path); err != nil {
		slog.Error("Failed to save root setting", "error", err)
		Error(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	if err := h.repo.SaveSetting(r.Context(), settingFirstRun, "false"); err != nil {
		slog.Error("Failed to save first_run setting", "error", err)
		Error(w, http.StatusInternalServerError, "failed to save settings")
		return
	}

	slog.Info("Sandbox root updated", "root", path)
	JSON(w, http.StatusOK, map[string]string{"root": path})
}

type privilegeRequest struct {
	SessionID      string   `json:"session_id,omitempty"`
	Need           []string `json:"need"`
	TargetPath     string   `json:"target_path"`
	ExpiresMinutes int      `json:"expires_minutes"`
	ReasonBrief    string   `json:"reason_brief"`
}

// RequestPrivilege creates a privilege-elevation action that must flow
// through approval.
func (h *AssistantHandler) RequestPrivilege(w http.ResponseWriter, r *http.Request) {
	req := privilegeRequest{ExpiresMinutes: 15}
	if !decode(w, r, &req) {
		return
	}

	action, err := h.gate.RequestPrivilege(r.Context(),
		req.SessionID, req.Need, req.TargetPath, req.ExpiresMinutes, req.ReasonBrief)
	if err != nil {
		slog.Error("Failed to create privilege request", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create privilege request")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"action": action})
}
