// Package metrics exposes Prometheus collectors for the dispatch path.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rockfish84/kakaotalk-server-backend/pkg/dispatch"
)

const namespace = "push"

// Collector records dispatch calls and per-recipient outcomes.
type Collector struct {
	calls      *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewCollector registers the collectors on reg. registrySize is sampled on
// every scrape to report the current number of registered tokens.
func NewCollector(reg prometheus.Registerer, registrySize func() int) *Collector {
	c := &Collector{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_calls_total",
			Help:      "Dispatch calls by strategy and call-level result.",
		}, []string{"strategy", "result"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Per-recipient delivery outcomes by provider.",
		}, []string{"provider", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Wall time of dispatch calls that reached the provider.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"strategy"}),
	}

	reg.MustRegister(c.calls, c.deliveries, c.duration)
	if registrySize != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered_tokens",
			Help:      "Number of device tokens currently registered.",
		}, func() float64 { return float64(registrySize()) }))
	}
	return c
}

// ObserveDispatch records one finished dispatch call.
func (c *Collector) ObserveDispatch(strategy, provider string, report *dispatch.Report, err error, elapsed time.Duration) {
	c.calls.WithLabelValues(strategy, callResult(err)).Inc()
	if report == nil {
		return
	}
	c.duration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	c.deliveries.WithLabelValues(provider, "success").Add(float64(report.SuccessCount))
	c.deliveries.WithLabelValues(provider, "failure").Add(float64(report.FailureCount))
}

func callResult(err error) string {
	var vErr *dispatch.ValidationError
	var pErr *dispatch.ProviderWideError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, dispatch.ErrEmptyRegistry):
		return "empty_registry"
	case errors.As(err, &vErr):
		return "invalid_payload"
	case errors.As(err, &pErr):
		return "provider_error"
	default:
		return "error"
	}
}
