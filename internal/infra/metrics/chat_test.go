//go:build !integration

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gathered returns the summed value of a counter/gauge family, optionally
// restricted to one label value.
func gathered(t *testing.T, name, label, value string) float64 {
	t.Helper()
	mfs, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	var sum float64
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label != "" {
				match := false
				for _, lp := range m.GetLabel() {
					if lp.GetName() == label && lp.GetValue() == value {
						match = true
					}
				}
				if !match {
					continue
				}
			}
			sum += m.GetCounter().GetValue() + m.GetGauge().GetValue()
		}
	}
	return sum
}

func TestChatMetrics(t *testing.T) {
	MustRegister()
	MustRegister()

	before := gathered(t, "chat_turns_total", "category", "anxiety")
	IncTurn(" Anxiety ")
	assert.Equal(t, before+1, gathered(t, "chat_turns_total", "category", "anxiety"))

	g := gathered(t, "chat_typing_sessions", "", "")
	TypingStarted()
	assert.Equal(t, g+1, gathered(t, "chat_typing_sessions", "", ""))
	TypingStopped()
	assert.Equal(t, g, gathered(t, "chat_typing_sessions", "", ""))

	exp := gathered(t, "chat_sessions_ended_total", "reason", "expired")
	AddSessionsExpired(3)
	assert.Equal(t, exp+3, gathered(t, "chat_sessions_ended_total", "reason", "expired"))

	IncTelegramUpdate("")
	assert.GreaterOrEqual(t, gathered(t, "telegram_updates_received_total", "command", "text"), 1.0)

	ObserveReplyDelay(1500 * time.Millisecond)
	ObserveHTTP("", "GET", 404, time.Millisecond)
	assert.GreaterOrEqual(t, gathered(t, "http_requests_total", "route", "unmatched"), 1.0)
}

func TestRegisterToCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterTo(reg))
	require.NoError(t, RegisterTo(reg))

	IncRejected("")
	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["chat_submissions_rejected_total"])
}
