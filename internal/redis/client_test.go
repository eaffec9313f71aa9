package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient(context.Background(), "not a url")
	assert.ErrorContains(t, err, "parse redis url")
}

func TestNewClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := NewClient(ctx, "redis://127.0.0.1:1/0")
	assert.ErrorContains(t, err, "ping redis")
}

func TestDecisionChannel(t *testing.T) {
	assert.Equal(t, "afk:decision:abc", DecisionChannel("abc"))
}
