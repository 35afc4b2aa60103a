// Package metrics exposes pipeline counters to Prometheus. All methods are
// safe on a nil *Metrics, which disables recording.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tool call outcomes.
const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeTimeout    = "timeout"
	OutcomeTerminated = "terminated"
	OutcomeUnknown    = "unknown_tool"
	OutcomeInvalid    = "invalid_args"
	OutcomeCached     = "cached"
)

type Metrics struct {
	MessagesTotal    *prometheus.CounterVec
	RateLimitedTotal prometheus.Counter
	PlannerErrors    prometheus.Counter
	ToolCallsTotal   *prometheus.CounterVec
	ToolCallDuration *prometheus.HistogramVec
	CacheLookups     *prometheus.CounterVec
	CacheEntries     prometheus.Gauge
	ProviderUp       *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in
// tests to keep instances isolated.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MessagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "spritebot_messages_total",
			Help: "Messages handled by the pipeline, by final path",
		}, []string{"path"}),
		RateLimitedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "spritebot_rate_limited_total",
			Help: "Messages rejected by the per-user rate limit",
		}),
		PlannerErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "spritebot_planner_errors_total",
			Help: "Planner requests that failed and degraded to no tool",
		}),
		ToolCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "spritebot_tool_calls_total",
			Help: "Tool invocations by tool and outcome",
		}, []string{"tool", "outcome"}),
		ToolCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spritebot_tool_call_duration_seconds",
			Help:    "Wall time of tool provider calls",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 360},
		}, []string{"tool"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "spritebot_cache_lookups_total",
			Help: "Result cache lookups by result (hit or miss)",
		}, []string{"result"}),
		CacheEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "spritebot_cache_entries",
			Help: "Tool results currently held in the result cache",
		}),
		ProviderUp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spritebot_provider_up",
			Help: "1 when the tool provider connection is alive",
		}, []string{"provider"}),
		gatherer: reg,
	}
}

func (m *Metrics) RecordMessage(path string) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(path).Inc()
}

func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.RateLimitedTotal.Inc()
}

func (m *Metrics) RecordPlannerError() {
	if m == nil {
		return
	}
	m.PlannerErrors.Inc()
}

func (m *Metrics) RecordToolCall(tool, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ToolCallsTotal.WithLabelValues(tool, outcome).Inc()
	if elapsed > 0 {
		m.ToolCallDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) SetCacheEntries(n int) {
	if m == nil {
		return
	}
	m.CacheEntries.Set(float64(n))
}

func (m *Metrics) SetProviderUp(provider string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.ProviderUp.WithLabelValues(provider).Set(v)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics server listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
