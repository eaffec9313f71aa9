package audit

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventPairingInitiated EventType = "pairing_initiated"
	EventPairingCompleted EventType = "pairing_completed"
	EventPairingReplay    EventType = "pairing_replay"
	EventAuthFailure      EventType = "auth_failure"
	EventTamperRejected   EventType = "tamper_rejected"
	EventDecisionResolved EventType = "decision_resolved"
	EventRateLimitExceed  EventType = "rate_limit_exceeded"
)

// Event is one security-relevant action. Device must already be masked.
type Event struct {
	Type       EventType
	PairingID  string
	DecisionID string
	Device     string
	IP         string
	UserAgent  string
	Details    map[string]any
}

// Log writes event at info level on the global logger, tagged audit=security
// so the stream can be filtered out of request logs.
func Log(ctx context.Context, event Event) {
	e := log.Info().
		Str("audit", "security").
		Str("event_type", string(event.Type))

	optional(e, "pairing_id", event.PairingID)
	optional(e, "decision_id", event.DecisionID)
	optional(e, "device", event.Device)
	optional(e, "ip", event.IP)
	optional(e, "user_agent", event.UserAgent)

	if len(event.Details) > 0 {
		e.Fields(event.Details)
	}
	e.Ctx(ctx).Timestamp().Msg("security audit event")
}

func optional(e *zerolog.Event, key, value string) {
	if value != "" {
		e.Str(key, value)
	}
}

func LogFromRequest(r *http.Request, event Event) {
	event.IP = ClientIP(r)
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// peer address without its port.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
