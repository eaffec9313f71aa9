package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Client is the optional shared backend for rate limiting and decision
// event fan-out across server instances.
type Client struct {
	*redis.Client
}

// NewClient parses a redis:// or rediss:// URL and verifies the server
// answers within ctx.
func NewClient(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	c := &Client{redis.NewClient(opts)}
	if err := c.Check(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Check is the health probe used at startup and by /health.
func (c *Client) Check(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// DecisionChannel is the pub/sub channel carrying resolution events for one decision.
func DecisionChannel(decisionID string) string {
	return "afk:decision:" + decisionID
}
