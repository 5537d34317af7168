package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		llmCallsLatencyMs,
		llmRetriesTotal,
		llmExtractFailures,
	)
}

var (
	llmCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_calls_latency_ms",
			Help:    "LLM call latency (all attempts included) in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000, 32000, 64000},
		},
		[]string{"provider", "model", "task", "success"},
	)

	llmRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_retries_total",
			Help: "Retried LLM attempts per provider and reason (throttled|server|network).",
		},
		[]string{"provider", "reason"},
	)

	llmExtractFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_extract_failures_total",
			Help: "Completions whose JSON payload could not be recovered, per task.",
		},
		[]string{"task"},
	)
)

func ObserveLLMCall(provider, model, task string, elapsed time.Duration, success bool) {
	llmCallsLatencyMs.WithLabelValues(norm(provider), norm(model), norm(task), strconv.FormatBool(success)).
		Observe(float64(elapsed.Milliseconds()))
}

func IncLLMRetry(provider, reason string) {
	llmRetriesTotal.WithLabelValues(norm(provider), norm(reason)).Inc()
}

func IncExtractFailure(task string) {
	llmExtractFailures.WithLabelValues(norm(task)).Inc()
}
