package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/claude-afk/afk/internal/config"
	"github.com/claude-afk/afk/internal/middleware"
	"github.com/claude-afk/afk/internal/service"
	"github.com/claude-afk/afk/internal/sse"
)

// DecisionWatchers hands out per-decision event subscriptions. *sse.Broker implements it.
type DecisionWatchers interface {
	Subscribe(decisionID string) *sse.Watcher
	Unsubscribe(w *sse.Watcher)
}

type DecisionHandler struct {
	decisionService *service.DecisionService
	broker          DecisionWatchers
	auth            func(http.Handler) http.Handler
	notifyLimit     func(http.Handler) http.Handler
}

// NewDecisionHandler wires the notify and decision endpoints. auth is required;
// notifyLimit may be nil.
func NewDecisionHandler(
	decisionService *service.DecisionService,
	broker DecisionWatchers,
	auth func(http.Handler) http.Handler,
	notifyLimit func(http.Handler) http.Handler,
) *DecisionHandler {
	return &DecisionHandler{
		decisionService: decisionService,
		broker:          broker,
		auth:            auth,
		notifyLimit:     notifyLimit,
	}
}

// NotifyRoutes is mounted at /notify.
func (h *DecisionHandler) NotifyRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.auth)
	if h.notifyLimit != nil {
		r.Use(h.notifyLimit)
	}

	r.Post("/", h.Notify)
	r.Post("/simple", h.NotifySimple)

	return r
}

// Routes is mounted at /decision. The events stream is exempt from the
// request timeout since it stays open for the whole decision window.
func (h *DecisionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Post("/{decisionId}/submit", h.Submit)
		r.With(h.auth).Get("/{decisionId}/status", h.Status)
	})
	r.With(h.auth).Get("/{decisionId}/events", h.Events)

	return r
}

// POST /notify
func (h *DecisionHandler) Notify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title     string `json:"title"`
		Message   string `json:"message"`
		ToolUseID string `json:"tool_use_id"`
		SessionID string `json:"session_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	decisionID, err := h.decisionService.Notify(r.Context(), middleware.GetDeviceToken(r.Context()), service.NotifyInput{
		Title:     req.Title,
		Message:   req.Message,
		ToolUseID: req.ToolUseID,
		SessionID: req.SessionID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"decisionId": decisionID,
	})
}

// POST /notify/simple
func (h *DecisionHandler) NotifySimple(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title   string `json:"title"`
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.decisionService.NotifySimple(r.Context(), middleware.GetDeviceToken(r.Context()), req.Title, req.Message); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GET /decision/{decisionId}/status
func (h *DecisionHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.decisionService.GetDecisionStatus(r.Context(), chi.URLParam(r, "decisionId"), middleware.GetDeviceToken(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// POST /decision/{decisionId}/submit
// Called by the device's notification handler; the tool use id is the proof of possession.
func (h *DecisionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Decision  string `json:"decision"`
		ToolUseID string `json:"toolUseId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.decisionService.SubmitDecision(r.Context(), chi.URLParam(r, "decisionId"), service.SubmitInput{
		Decision:  req.Decision,
		ToolUseID: req.ToolUseID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{"success": result.Success}
	if result.Decision != nil {
		resp["decision"] = *result.Decision
	}
	if result.Message != "" {
		resp["message"] = result.Message
	}
	writeJSON(w, http.StatusOK, resp)
}
