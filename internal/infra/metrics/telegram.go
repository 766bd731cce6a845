package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(telegramUpdatesTotal, telegramSendErrorsTotal)
}

var (
	telegramUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_updates_received_total",
			Help: "Counts incoming messages and commands from users.",
		},
		[]string{"command"},
	)

	telegramSendErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telegram_send_errors_total",
			Help: "Outgoing Telegram calls that failed.",
		},
	)
)

// IncTelegramUpdate counts one update; plain text is reported as "text".
func IncTelegramUpdate(command string) {
	if command == "" {
		command = "text"
	}
	telegramUpdatesTotal.WithLabelValues(norm(command)).Inc()
}

func IncTelegramSendError() { telegramSendErrorsTotal.Inc() }
