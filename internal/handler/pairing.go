package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/claude-afk/afk/internal/model"
	"github.com/claude-afk/afk/internal/service"
)

type PairingHandler struct {
	pairingService *service.PairingService
	initiateLimit  func(http.Handler) http.Handler
}

// NewPairingHandler wires the pairing endpoints. initiateLimit may be nil.
func NewPairingHandler(pairingService *service.PairingService, initiateLimit func(http.Handler) http.Handler) *PairingHandler {
	return &PairingHandler{
		pairingService: pairingService,
		initiateLimit:  initiateLimit,
	}
}

func (h *PairingHandler) Routes() chi.Router {
	r := chi.NewRouter()

	if h.initiateLimit != nil {
		r.With(h.initiateLimit).Post("/initiate", h.Initiate)
	} else {
		r.Post("/initiate", h.Initiate)
	}
	r.Get("/{pairingId}/status", h.Status)
	r.Post("/{pairingToken}/complete", h.Complete)

	return r
}

// POST /pairing/initiate
func (h *PairingHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	result, err := h.pairingService.InitiatePairing(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to initiate pairing")
		writeError(w, err)
		return
	}

	resp := map[string]any{
		"pairingId":    result.PairingID,
		"pairingToken": result.PairingToken,
	}
	if result.PairingURL != "" {
		resp["pairingUrl"] = result.PairingURL
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /pairing/{pairingId}/status
func (h *PairingHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.pairingService.GetPairingStatus(r.Context(), chi.URLParam(r, "pairingId"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"complete":    status.Complete,
		"deviceToken": status.DeviceToken,
	})
}

// POST /pairing/{pairingToken}/complete
func (h *PairingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subscription *model.PushSubscription `json:"subscription"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.pairingService.CompletePairing(r.Context(), chi.URLParam(r, "pairingToken"), req.Subscription); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
