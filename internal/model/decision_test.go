package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecisionOutcome_Valid(t *testing.T) {
	assert.True(t, DecisionAllow.Valid())
	assert.True(t, DecisionDismiss.Valid())
	assert.False(t, DecisionOutcome("deny").Valid())
	assert.False(t, DecisionOutcome("").Valid())
}

func TestPendingDecision_IsExpiredAt(t *testing.T) {
	expiresAt := time.Date(2026, 1, 1, 12, 5, 0, 0, time.UTC)
	d := &PendingDecision{ExpiresAt: expiresAt}

	assert.False(t, d.IsExpiredAt(expiresAt.Add(-time.Second)))
	assert.False(t, d.IsExpiredAt(expiresAt), "the boundary instant is still inside the window")
	assert.True(t, d.IsExpiredAt(expiresAt.Add(time.Millisecond)))
}
