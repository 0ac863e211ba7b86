package loader

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the loader's Prometheus collectors.
type Metrics struct {
	fetchDuration *prometheus.HistogramVec
	failures      *prometheus.CounterVec
	loads         prometheus.Counter
}

// NewMetrics creates the loader collectors and registers them with registry.
// Collectors already registered by another loader are reused.
func NewMetrics(registry prometheus.Registerer) (*Metrics, error) {
	fetchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pricer",
		Subsystem: "loader",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of each remote read made while loading a pool.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"step"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pricer",
		Subsystem: "loader",
		Name:      "failures_total",
		Help:      "Failed remote reads, by step.",
	}, []string{"step"})
	loads := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pricer",
		Subsystem: "loader",
		Name:      "pools_loaded_total",
		Help:      "Pools successfully loaded.",
	})

	var err error
	if fetchDuration, err = register(registry, fetchDuration); err != nil {
		return nil, err
	}
	if failures, err = register(registry, failures); err != nil {
		return nil, err
	}
	if loads, err = register(registry, loads); err != nil {
		return nil, err
	}
	return &Metrics{fetchDuration: fetchDuration, failures: failures, loads: loads}, nil
}

func register[C prometheus.Collector](registry prometheus.Registerer, c C) (C, error) {
	if err := registry.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// observe times fn under step and counts its failure.
func (m *Metrics) observe(step string, fn func() error) error {
	timer := prometheus.NewTimer(m.fetchDuration.WithLabelValues(step))
	err := fn()
	timer.ObserveDuration()
	if err != nil {
		m.failures.WithLabelValues(step).Inc()
	}
	return err
}
