package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	passesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelsync",
			Subsystem: "manager",
			Name:      "passes_total",
			Help:      "Total number of passes executed on the mutation queue",
		},
		[]string{"op"},
	)

	mergeConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "modelsync",
			Subsystem: "manager",
			Name:      "merge_conflicts_total",
			Help:      "Total number of nodes rejected by the merger",
		},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelsync",
			Subsystem: "manager",
			Name:      "notifications_total",
			Help:      "Notifications by outcome (delivered, skipped, dropped)",
		},
		[]string{"result"},
	)

	prunedEntriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "modelsync",
			Subsystem: "manager",
			Name:      "pruned_entries_total",
			Help:      "Registry entries removed because their listener was collected",
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "modelsync",
			Subsystem: "manager",
			Name:      "queue_depth",
			Help:      "Tasks waiting on the mutation queue, sampled per pass",
		},
	)

	deliverySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "modelsync",
			Subsystem: "manager",
			Name:      "delivery_seconds",
			Help:      "Time from handing a batch to the executor until all listeners returned",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(passesTotal, mergeConflictsTotal, notificationsTotal, prunedEntriesTotal, queueDepth, deliverySeconds)
}
