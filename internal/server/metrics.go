package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus counters for the DNS side of the fixture. The management API
// exposes them on /metrics alongside its own verdict counters.
var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "faultdns_queries_total",
		Help: "DNS queries received, by transport.",
	}, []string{"transport"})

	responsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "faultdns_responses_total",
		Help: "DNS responses sent, by rcode.",
	}, []string{"rcode"})

	truncatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "faultdns_truncated_responses_total",
		Help: "UDP responses cut down to the classic 512-byte limit.",
	})

	droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "faultdns_dropped_queries_total",
		Help: "UDP queries dropped because every handler slot was busy.",
	})

	activationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "faultdns_scenario_activations_total",
		Help: "Scenario activations, by scenario id.",
	}, []string{"scenario"})
)
