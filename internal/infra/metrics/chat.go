package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		chatSessionsStartedTotal,
		chatSessionsEndedTotal,
		chatTurnsTotal,
		chatSubmissionsRejectedTotal,
		chatReplyDelaySeconds,
		chatTypingSessions,
	)
}

var (
	chatSessionsStartedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_sessions_started_total",
			Help: "Conversations started (seeded with the greeting).",
		},
	)

	chatSessionsEndedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_sessions_ended_total",
			Help: "Conversations discarded, by reason (ended/expired).",
		},
		[]string{"reason"},
	)

	chatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Completed turns by matched response category.",
		},
		[]string{"category"},
	)

	chatSubmissionsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_submissions_rejected_total",
			Help: "Submissions refused, by reason (pending/rate_limited/not_found).",
		},
		[]string{"reason"},
	)

	chatReplyDelaySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_reply_delay_seconds",
			Help:    "Randomized delay drawn before each bot reply.",
			Buckets: []float64{0.5, 1, 1.5, 2, 2.5, 3, 4},
		},
	)

	chatTypingSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_typing_sessions",
			Help: "Conversations currently waiting for a bot reply.",
		},
	)
)

func IncSessionStarted() { chatSessionsStartedTotal.Inc() }

func IncSessionEnded(reason string) {
	chatSessionsEndedTotal.WithLabelValues(norm(reason)).Add(1)
}

func AddSessionsExpired(n int) {
	chatSessionsEndedTotal.WithLabelValues("expired").Add(float64(n))
}

func IncTurn(category string) {
	chatTurnsTotal.WithLabelValues(norm(category)).Inc()
}

func IncRejected(reason string) {
	chatSubmissionsRejectedTotal.WithLabelValues(norm(reason)).Inc()
}

func ObserveReplyDelay(d time.Duration) {
	chatReplyDelaySeconds.Observe(d.Seconds())
}

// TypingStarted and TypingStopped bracket one pending reply.
func TypingStarted() { chatTypingSessions.Inc() }
func TypingStopped() { chatTypingSessions.Dec() }
