// Package metrics provides Prometheus collectors for the swarm runtime.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// FiringBuckets covers handler bodies ranging from sub-millisecond transforms
// to multi-second LLM calls.
var FiringBuckets = []float64{0.001, 0.005, 0.025, 0.1, 0.5, 1, 2, 5, 10, 30, 60}

var (
	// PublishedTotal counts envelopes published by producer.
	PublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentswarm_published_total",
			Help: "Published envelopes",
		},
		[]string{"producer"},
	)

	// DeliveredTotal counts envelopes enqueued into a handler mailbox.
	DeliveredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentswarm_delivered_total",
			Help: "Delivered envelopes",
		},
		[]string{"handler"},
	)

	// RejectedTotal counts payloads turned away by a gate or slot guard.
	RejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentswarm_rejected_total",
			Help: "Rejected payloads",
		},
		[]string{"handler", "stage"},
	)

	// FiringsTotal counts handler firings by outcome.
	FiringsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentswarm_firings_total",
			Help: "Handler firings",
		},
		[]string{"handler", "status"},
	)

	// FiringDuration records handler body duration in seconds.
	FiringDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentswarm_firing_duration_seconds",
			Help:    "Handler firing duration",
			Buckets: FiringBuckets,
		},
		[]string{"handler"},
	)

	// EvictedTotal counts join entries dropped before they could fire.
	EvictedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentswarm_join_evicted_total",
			Help: "Evicted join entries",
		},
		[]string{"handler", "reason"},
	)

	// MailboxDepth tracks undelivered envelopes per handler.
	MailboxDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agentswarm_mailbox_depth",
			Help: "Queued envelopes per handler",
		},
		[]string{"handler"},
	)

	// InFlight tracks running handler invocations.
	InFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentswarm_inflight_firings",
			Help: "Running handler firings",
		},
	)

	// GenerationAttemptsTotal counts retry loop attempts by outcome
	// (accepted, rejected, error).
	GenerationAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentswarm_generation_attempts_total",
			Help: "Generation attempts",
		},
		[]string{"outcome"},
	)

	// GenerationLatency records generator call latency in seconds.
	GenerationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentswarm_generation_latency_seconds",
			Help:    "Generation latency",
			Buckets: FiringBuckets,
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		PublishedTotal,
		DeliveredTotal,
		RejectedTotal,
		FiringsTotal,
		FiringDuration,
		EvictedTotal,
		MailboxDepth,
		InFlight,
		GenerationAttemptsTotal,
		GenerationLatency,
	)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
