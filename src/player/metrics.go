package player

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsDispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidbox_engine_events_total",
		Help: "Number of native engine events dispatched, by kind",
	}, []string{"kind"})

	staleEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidbox_stale_events_total",
		Help: "Number of native events discarded as stale against the caller's latest intent",
	})

	redundantEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidbox_redundant_events_total",
		Help: "Number of state events dropped because they re-confirmed the current state",
	})

	retriesScheduledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidbox_retries_scheduled_total",
		Help: "Number of recovery attempts scheduled",
	})

	retriesExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidbox_retries_exhausted_total",
		Help: "Number of errors on which auto-retry gave up",
	})

	networkErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidbox_network_errors_total",
		Help: "Number of network errors reported by the engine",
	})
)
