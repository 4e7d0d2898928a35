package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_events_ingested_total",
			Help: "Total number of events accepted by the router.",
		},
		[]string{"event_type", "priority"},
	)

	EventsUnroutedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "herald_events_unrouted_total",
			Help: "Total number of events that matched no route.",
		},
	)

	EventsInvalidTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "herald_events_invalid_total",
			Help: "Total number of events rejected at ingress.",
		},
	)

	TasksCoalescedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "herald_tasks_coalesced_total",
			Help: "Total number of duplicate submissions coalesced into a live task.",
		},
	)

	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_deliveries_total",
			Help: "Total number of terminal delivery outcomes by state and channel.",
		},
		[]string{"state", "channel"},
	)

	DeliveryLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "herald_delivery_latency_seconds",
			Help:    "Latency of individual delivery attempts by channel.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_retries_total",
			Help: "Total number of delivery retries by channel and reason.",
		},
		[]string{"channel", "reason"}, // e.g. http_5xx, timeout, rate_limited
	)

	DeadLettersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_dead_letters_total",
			Help: "Total number of tasks moved to the dead-letter sink by state.",
		},
		[]string{"state"}, // rejected or exhausted
	)

	ReplaysTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "herald_dead_letter_replays_total",
			Help: "Total number of dead letters replayed.",
		},
	)

	ChannelInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "herald_channel_in_flight",
			Help: "Delivery attempts currently in flight per channel.",
		},
		[]string{"channel"},
	)

	ChannelBacklog = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "herald_channel_backlog",
			Help: "Tasks waiting for dispatch per channel.",
		},
		[]string{"channel"},
	)
)

func MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(
		EventsIngestedTotal,
		EventsUnroutedTotal,
		EventsInvalidTotal,
		TasksCoalescedTotal,
		DeliveriesTotal,
		DeliveryLatency,
		RetriesTotal,
		DeadLettersTotal,
		ReplaysTotal,
		ChannelInFlight,
		ChannelBacklog,
	)
}

// RecordEventIngested counts an accepted event.
func RecordEventIngested(eventType, priority string) {
	EventsIngestedTotal.WithLabelValues(eventType, priority).Inc()
}

// RecordDelivery counts a terminal outcome and its attempt latency.
func RecordDelivery(state, channel string, latency time.Duration) {
	DeliveriesTotal.WithLabelValues(state, channel).Inc()
	if latency > 0 {
		DeliveryLatency.WithLabelValues(channel).Observe(latency.Seconds())
	}
}

// RecordRetry counts a scheduled retry.
func RecordRetry(channel, reason string) {
	RetriesTotal.WithLabelValues(channel, reason).Inc()
}

// RecordDeadLetter counts a task moved to the dead-letter sink.
func RecordDeadLetter(state string) {
	DeadLettersTotal.WithLabelValues(state).Inc()
}
