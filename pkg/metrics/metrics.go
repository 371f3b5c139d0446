// Package metrics provides the Prometheus recorder shared by the
// pipeline and the canvas engine.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tiktoken-go/tokenizer"
)

// Recorder implements the pipeline and canvas observation interfaces
// on top of Prometheus metrics.
type Recorder struct {
	turnsTotal    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	tokensTotal   *prometheus.CounterVec
	actionsTotal  *prometheus.CounterVec
	codec         tokenizer.Codec
}

var (
	recorderOnce sync.Once
	recorder     *Recorder
)

// NewRecorder returns the process-wide recorder. Metrics register with
// the default registry exactly once regardless of how many components
// ask for a recorder.
func NewRecorder() *Recorder {
	recorderOnce.Do(func() {
		// All supported providers are close enough to GPT-4 encoding
		// for usage accounting.
		codec, err := tokenizer.ForModel(tokenizer.GPT4)
		if err != nil {
			codec = nil
		}

		recorder = &Recorder{
			turnsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tutor_turns_total",
					Help: "Total number of pipeline turns by outcome",
				},
				[]string{"status"},
			),
			stageDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "llm_request_duration_seconds",
					Help:    "Duration of LLM stage requests in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"stage", "model", "status"},
			),
			tokensTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "llm_tokens_total",
					Help: "Total number of tokens used in LLM requests",
				},
				[]string{"stage", "type"},
			),
			actionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "canvas_actions_total",
					Help: "Total number of canvas actions by kind and outcome",
				},
				[]string{"kind", "status"},
			),
			codec: codec,
		}
	})

	return recorder
}

// ObserveStage records one stage call's duration and outcome.
func (r *Recorder) ObserveStage(stage, model string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	r.stageDuration.WithLabelValues(stage, model, status).Observe(duration.Seconds())
}

// ObserveTokens counts the tokens of one message. direction is "input"
// or "output".
func (r *Recorder) ObserveTokens(stage, direction, text string) {
	r.tokensTotal.WithLabelValues(stage, direction).Add(float64(r.countTokens(text)))
}

// ObserveTurn records one completed or failed pipeline turn.
func (r *Recorder) ObserveTurn(status string) {
	r.turnsTotal.WithLabelValues(status).Inc()
}

// ObserveAction records one applied or skipped canvas action.
func (r *Recorder) ObserveAction(kind, status string) {
	r.actionsTotal.WithLabelValues(kind, status).Inc()
}

func (r *Recorder) countTokens(text string) int {
	if r.codec == nil {
		// Fallback to character-based estimation (4 chars ≈ 1 token)
		return len(text) / 4
	}
	count, err := r.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}
