// Package metrics holds the Prometheus collectors for the gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RouteBranchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_route_branch_total",
		Help: "Requests routed, by selected branch",
	}, []string{"branch"})

	FallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_fallback_total",
		Help: "Branch demotions after a backend failure",
	}, []string{"from", "to"})

	TerminalErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_terminal_errors_total",
		Help: "Streams that ended with a user-visible error line",
	}, []string{"subsystem", "class"})

	StreamFragmentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_stream_fragments_total",
		Help: "Word fragments delivered to clients",
	})

	AdapterLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_adapter_loads_total",
		Help: "Adapter load attempts, by result",
	}, []string{"result"})

	AdapterLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_adapter_load_duration_seconds",
		Help:    "Time spent loading an adapter onto the base model",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	AdaptersLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_adapters_loaded",
		Help: "Adapters currently in the ready state",
	})

	RetrievalQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_retrieval_queries_total",
		Help: "Retrieval store queries, by outcome",
	}, []string{"outcome"})
)
