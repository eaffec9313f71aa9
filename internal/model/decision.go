package model

import "time"

type DecisionOutcome string

const (
	DecisionAllow   DecisionOutcome = "allow"
	DecisionDismiss DecisionOutcome = "dismiss"
)

func (d DecisionOutcome) Valid() bool {
	return d == DecisionAllow || d == DecisionDismiss
}

type DecisionStatus string

const (
	DecisionStatusPending DecisionStatus = "pending"
	DecisionStatusDecided DecisionStatus = "decided"
	DecisionStatusExpired DecisionStatus = "expired"
)

// PendingDecision is one approval request for a single tool invocation.
// Decision is nil until resolved and is written at most once.
type PendingDecision struct {
	ID              string           `db:"id" json:"id"`
	DeviceToken     string           `db:"device_token" json:"-"`
	ToolUseID       string           `db:"tool_use_id" json:"toolUseId"`
	ClaudeSessionID string           `db:"claude_session_id" json:"sessionId"`
	Title           string           `db:"title" json:"title"`
	Message         string           `db:"message" json:"message"`
	Decision        *DecisionOutcome `db:"decision" json:"decision"`
	CreatedAt       time.Time        `db:"created_at" json:"createdAt"`
	DecidedAt       *time.Time       `db:"decided_at" json:"decidedAt,omitempty"`
	ExpiresAt       time.Time        `db:"expires_at" json:"expiresAt"`
}

func (d *PendingDecision) IsDecided() bool {
	return d.Decision != nil
}

// IsExpiredAt reports whether now is strictly past the decision window.
func (d *PendingDecision) IsExpiredAt(now time.Time) bool {
	return now.After(d.ExpiresAt)
}

type CreatePendingDecisionParams struct {
	ID              string
	DeviceToken     string
	ToolUseID       string
	ClaudeSessionID string
	Title           string
	Message         string
	CreatedAt       time.Time
	ExpiresAt       time.Time
}
