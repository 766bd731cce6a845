package metrics

import (
	"errors"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu         sync.Mutex
	collectors []prometheus.Collector
)

// register queues collectors from each file's init; nothing is exported
// until MustRegister or RegisterTo runs.
func register(cs ...prometheus.Collector) {
	mu.Lock()
	defer mu.Unlock()
	collectors = append(collectors, cs...)
}

// RegisterTo adds every queued collector to reg. Collectors already present
// in reg are skipped, so repeated calls are harmless.
func RegisterTo(reg prometheus.Registerer) error {
	mu.Lock()
	defer mu.Unlock()
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// MustRegister exports the collectors on the default registry served by
// /metrics and panics on a conflicting registration.
func MustRegister() {
	if err := RegisterTo(prometheus.DefaultRegisterer); err != nil {
		panic(err)
	}
}

// norm lower-cases a label value; empty values collapse to "unknown".
func norm(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	return s
}
