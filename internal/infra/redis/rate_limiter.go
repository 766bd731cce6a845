package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter is a fixed-window counter shared by every replica.
type RateLimiter struct {
	client RedisClient
	prefix string
	limit  int
	window time.Duration
}

func NewRateLimiter(client RedisClient, prefix string, limit int, window time.Duration) *RateLimiter {
	if prefix == "" {
		prefix = "mindfulbot:"
	}
	return &RateLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

// Allow counts one hit for key and reports whether it is inside the window budget.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := r.client.Hit(ctx, SubmitKey(r.prefix, key), r.window)
	if err != nil {
		return false, err
	}
	return count <= int64(r.limit), nil
}

func SubmitKey(prefix, sessionID string) string {
	return fmt.Sprintf("%srate_limit:%s:submit", prefix, sessionID)
}
