package device

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/claude-afk/afk/internal/model"
	"github.com/claude-afk/afk/internal/push"
)

// Host is the environment that displays notifications and keeps the process
// alive. WaitUntil must not let the process go idle before task returns.
type Host interface {
	ShowNotification(ctx context.Context, n Notification) error
	CloseNotification(n Notification)
	FocusOrOpenWindow(ctx context.Context, url string) error
	WaitUntil(task func(ctx context.Context) error)
}

// Submitter delivers the user's choice back to the relay.
type Submitter interface {
	Submit(ctx context.Context, decisionID, toolUseID string, decision model.DecisionOutcome) error
}

// Handler reacts to push lifecycle events. It holds no state between events.
type Handler struct {
	host      Host
	submitter Submitter
}

func NewHandler(host Host, submitter Submitter) *Handler {
	return &Handler{host: host, submitter: submitter}
}

// OnPush displays the received payload.
func (h *Handler) OnPush(raw []byte) {
	n := ParseNotification(raw)
	h.host.WaitUntil(func(ctx context.Context) error {
		return h.host.ShowNotification(ctx, n)
	})
}

// OnNotificationClick handles a click on the body (action == "") or on an action button.
func (h *Handler) OnNotificationClick(n Notification, action string) {
	h.host.CloseNotification(n)

	if action == push.ActionAllow && n.isDecision() {
		h.host.WaitUntil(h.submitTask(n, model.DecisionAllow))
		return
	}

	h.host.WaitUntil(func(ctx context.Context) error {
		return h.host.FocusOrOpenWindow(ctx, "/")
	})
}

// OnNotificationClose handles a dismissal without an action.
func (h *Handler) OnNotificationClose(n Notification) {
	if !n.isDecision() || n.Data.DecisionID == "" {
		return
	}
	h.host.WaitUntil(h.submitTask(n, model.DecisionDismiss))
}

// submitTask is fire-and-forget: failures are logged and never retried.
func (h *Handler) submitTask(n Notification, decision model.DecisionOutcome) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		err := h.submitter.Submit(ctx, n.Data.DecisionID, n.Data.ToolUseID, decision)
		if err != nil {
			log.Error().
				Err(err).
				Str("decisionId", n.Data.DecisionID).
				Str("decision", string(decision)).
				Msg("failed to submit decision")
		}
		return nil
	}
}
