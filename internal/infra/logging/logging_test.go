//go:build !integration

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindfulbot/internal/config"
)

func TestWithAddsContextFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(&buf, config.LogConfig{Level: "debug", Format: "json"}, false)

	ctx := WithTraceID(context.Background(), "t-1")
	ctx = WithSessID(ctx, "s-1")
	ctx = WithChatID(ctx, 42)
	With(ctx, base).Info().Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "t-1", line["trace_id"])
	assert.Equal(t, "s-1", line["session_id"])
	assert.EqualValues(t, 42, line["chat_id"])
	assert.Equal(t, "t-1", TraceID(ctx))
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, config.LogConfig{Level: "warn"}, false)
	l.Info().Msg("dropped")
	assert.Zero(t, buf.Len())
	l.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "short", Redact("short", true))
	assert.Equal(t, "***", Redact("short", false))
	assert.Equal(t, "I fe...ay", Redact("I feel anxious today", false))
}
