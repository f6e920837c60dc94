package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	serviceSpawns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llmstack",
			Subsystem: "service",
			Name:      "spawns_total",
			Help:      "Number of service processes spawned.",
		}, []string{"service"},
	)
	serviceReady = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llmstack",
			Subsystem: "service",
			Name:      "ready_total",
			Help:      "Number of services that reached readiness.",
		}, []string{"service"},
	)
	serviceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llmstack",
			Subsystem: "service",
			Name:      "startup_failures_total",
			Help:      "Startup failures by probe result.",
		}, []string{"service", "reason"},
	)
	readinessDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "llmstack",
			Subsystem: "service",
			Name:      "readiness_duration_seconds",
			Help:      "Time from spawn to readiness.",
			Buckets:   []float64{1, 2, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"service"},
	)
	serviceUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "llmstack",
			Subsystem: "service",
			Name:      "up",
			Help:      "Whether the service is currently running (1) or not (0).",
		}, []string{"service"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{serviceSpawns, serviceReady, serviceFailures, readinessDuration, serviceUp}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op until Register has been called.

func IncSpawn(service string) {
	if regOK.Load() {
		serviceSpawns.WithLabelValues(service).Inc()
	}
}

func IncReady(service string) {
	if regOK.Load() {
		serviceReady.WithLabelValues(service).Inc()
	}
}

func IncStartupFailure(service, reason string) {
	if regOK.Load() {
		serviceFailures.WithLabelValues(service, reason).Inc()
	}
}

func ObserveReadinessDuration(service string, seconds float64) {
	if regOK.Load() {
		readinessDuration.WithLabelValues(service).Observe(seconds)
	}
}

func SetUp(service string, up bool) {
	if regOK.Load() {
		v := 0.0
		if up {
			v = 1
		}
		serviceUp.WithLabelValues(service).Set(v)
	}
}
