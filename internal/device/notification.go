package device

import (
	"encoding/json"

	"github.com/claude-afk/afk/internal/push"
)

// Notification is what the host renders. It carries the payload metadata so
// later click and close events need no other state.
type Notification struct {
	Title              string
	Body               string
	Icon               string
	Badge              string
	Tag                string
	Renotify           bool
	RequireInteraction bool
	Actions            []push.Action
	Data               push.PayloadData
}

func (n Notification) isDecision() bool {
	return n.Data.Type == push.DataTypeDecision
}

// wirePayload mirrors push.Payload with every field optional.
type wirePayload struct {
	Title              *string           `json:"title"`
	Body               *string           `json:"body"`
	Icon               *string           `json:"icon"`
	Badge              *string           `json:"badge"`
	Tag                *string           `json:"tag"`
	Renotify           *bool             `json:"renotify"`
	RequireInteraction *bool             `json:"requireInteraction"`
	Actions            []push.Action     `json:"actions"`
	Data               *push.PayloadData `json:"data"`
}

// ParseNotification never fails: malformed or missing fields fall back to
// the default display.
func ParseNotification(raw []byte) Notification {
	n := Notification{
		Title:              push.DefaultTitle,
		Icon:               push.DefaultIcon,
		Badge:              push.DefaultBadge,
		Tag:                push.DefaultTag,
		RequireInteraction: true,
		Actions:            []push.Action{},
	}

	var p wirePayload
	if len(raw) == 0 || json.Unmarshal(raw, &p) != nil {
		return n
	}

	if p.Title != nil && *p.Title != "" {
		n.Title = *p.Title
	}
	if p.Body != nil {
		n.Body = *p.Body
	}
	if p.Icon != nil && *p.Icon != "" {
		n.Icon = *p.Icon
	}
	if p.Badge != nil && *p.Badge != "" {
		n.Badge = *p.Badge
	}
	if p.Tag != nil && *p.Tag != "" {
		n.Tag = *p.Tag
	}
	if p.Renotify != nil {
		n.Renotify = *p.Renotify
	}
	if p.RequireInteraction != nil {
		n.RequireInteraction = *p.RequireInteraction
	}
	if p.Actions != nil {
		n.Actions = p.Actions
	}
	if p.Data != nil {
		n.Data = *p.Data
	}
	return n
}
