package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/claude-afk/afk/internal/errors"
	"github.com/claude-afk/afk/internal/middleware"
	"github.com/claude-afk/afk/internal/model"
	"github.com/claude-afk/afk/internal/sse"
)

const statusEvent = "status"

// GET /decision/{decisionId}/events
// Streams the decision status until it leaves pending.
func (h *DecisionHandler) Events(w http.ResponseWriter, r *http.Request) {
	decisionID := chi.URLParam(r, "decisionId")
	deviceToken := middleware.GetDeviceToken(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperrors.Internal("Streaming not supported"))
		return
	}

	ctx := r.Context()
	status, expiresAt, err := h.decisionService.WatchStatus(ctx, decisionID, deviceToken)
	if err != nil {
		writeError(w, err)
		return
	}

	watcher := h.broker.Subscribe(decisionID)
	defer h.broker.Unsubscribe(watcher)

	// re-read once subscribed so a resolution between the two is not lost
	if status.Status == model.DecisionStatusPending {
		if status, _, err = h.decisionService.WatchStatus(ctx, decisionID, deviceToken); err != nil {
			writeError(w, err)
			return
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := sendEvent(w, flusher, statusEvent, status); err != nil || status.Status != model.DecisionStatusPending {
		return
	}

	log.Debug().Str("decisionId", decisionID).Msg("sse decision watch established")

	heartbeat := time.NewTicker(sse.HeartbeatInterval)
	defer heartbeat.Stop()

	// small grace so the expiry read lands strictly after expiresAt
	expiry := time.NewTimer(time.Until(expiresAt) + 10*time.Millisecond)
	defer expiry.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-watcher.Done:
			return

		case event := <-watcher.Events:
			if event.Type != sse.EventDecisionResolved {
				continue
			}
			sendRawEvent(w, flusher, sse.Event{Type: statusEvent, Data: event.Data})
			return

		case <-expiry.C:
			status, _, err := h.decisionService.WatchStatus(ctx, decisionID, deviceToken)
			if err != nil {
				log.Warn().Err(err).Str("decisionId", decisionID).Msg("failed to read decision at expiry")
				return
			}
			sendEvent(w, flusher, statusEvent, status)
			return

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return sendRawEvent(w, flusher, sse.Event{Type: eventType, Data: jsonData})
}

func sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
