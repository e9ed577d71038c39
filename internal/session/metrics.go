package session

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gend",
			Subsystem: "session",
			Name:      "loads_total",
			Help:      "Total model load attempts by outcome",
		},
		[]string{"outcome"},
	)

	cpuFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gend",
			Subsystem: "session",
			Name:      "cpu_fallbacks_total",
			Help:      "Total loads retried on the CPU after a device failure",
		},
	)

	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gend",
			Subsystem: "session",
			Name:      "generations_total",
			Help:      "Total generation runs by outcome",
		},
		[]string{"outcome"},
	)

	tokensGeneratedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gend",
			Subsystem: "session",
			Name:      "tokens_generated_total",
			Help:      "Total tokens emitted across all runs",
		},
	)

	tokensPerSecond = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gend",
			Subsystem: "session",
			Name:      "tokens_per_second",
			Help:      "Mean throughput of the most recent completed run",
		},
	)

	controlTokensScrubbed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gend",
			Subsystem: "session",
			Name:      "control_tokens_scrubbed_total",
			Help:      "Total control-token matches removed from model output",
		},
	)
)

func init() {
	prometheus.MustRegister(
		loadsTotal,
		cpuFallbacksTotal,
		generationsTotal,
		tokensGeneratedTotal,
		tokensPerSecond,
		controlTokensScrubbed,
	)
}
