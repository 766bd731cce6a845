//go:build !integration

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocalBurstAndRefill(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocal(3, 3*time.Second)
	l.now = func() time.Time { return now }

	for i := range 3 {
		ok, _ := l.Allow(ctx, "s")
		assert.True(t, ok, "hit %d", i)
	}
	ok, _ := l.Allow(ctx, "s")
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "other")
	assert.True(t, ok)

	now = now.Add(time.Second)
	ok, _ = l.Allow(ctx, "s")
	assert.True(t, ok)
}

func TestLocalPrunesIdleBuckets(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocal(5, time.Minute)
	l.now = func() time.Time { return now }

	_, _ = l.Allow(ctx, "a")
	_, _ = l.Allow(ctx, "b")
	assert.Equal(t, 2, l.size())

	now = now.Add(2 * time.Minute)
	_, _ = l.Allow(ctx, "c")
	assert.Equal(t, 1, l.size())
}
