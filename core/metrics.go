package core

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce sync.Once

	actorsSpawned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kestrel",
			Subsystem: "runtime",
			Name:      "actors_spawned_total",
			Help:      "Total actors spawned.",
		},
	)
	actorsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kestrel",
			Subsystem: "runtime",
			Name:      "actors_running",
			Help:      "Actors currently alive.",
		},
	)
	messagesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kestrel",
			Subsystem: "runtime",
			Name:      "messages_processed_total",
			Help:      "Messages processed per actor.",
		},
		[]string{"actor"},
	)
	mailboxDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kestrel",
			Subsystem: "runtime",
			Name:      "mailbox_dropped_total",
			Help:      "Messages rejected by full mailboxes.",
		},
		[]string{"actor"},
	)
	childRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kestrel",
			Subsystem: "supervisor",
			Name:      "child_restarts_total",
			Help:      "Child actor restarts per child name.",
		},
		[]string{"child"},
	)
	shutdowns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kestrel",
			Subsystem: "runtime",
			Name:      "shutdowns_total",
			Help:      "Runtime shutdowns by outcome.",
		},
		[]string{"outcome"},
	)
)

// RegisterMetrics registers the runtime metrics with the default
// prometheus registry. Safe to call from multiple packages.
func RegisterMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(
			actorsSpawned,
			actorsRunning,
			messagesProcessed,
			mailboxDropped,
			childRestarts,
			shutdowns,
		)
	})
}

func recordSpawn() {
	RegisterMetrics()
	actorsSpawned.Inc()
	actorsRunning.Inc()
}

func recordActorExit() {
	RegisterMetrics()
	actorsRunning.Dec()
}

func recordMessageProcessed(actor string) {
	RegisterMetrics()
	messagesProcessed.WithLabelValues(actor).Inc()
}

func recordMailboxDrop(actor string) {
	RegisterMetrics()
	mailboxDropped.WithLabelValues(actor).Inc()
}

// RecordChildRestart counts a supervisor-initiated child restart.
func RecordChildRestart(child string) {
	RegisterMetrics()
	childRestarts.WithLabelValues(child).Inc()
}

func recordShutdown(ok bool) {
	RegisterMetrics()
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	shutdowns.WithLabelValues(outcome).Inc()
}
