// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the service's metric instruments.
type Collector struct {
	SimulationsTotal   *prometheus.CounterVec
	SimulationDuration prometheus.Histogram
	SimulationSteps    prometheus.Histogram

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	WeatherFetchTotal *prometheus.CounterVec
	WSClients         prometheus.Gauge
}

// NewCollector registers the instruments under the given namespace.
func NewCollector(namespace string) *Collector {
	return &Collector{
		SimulationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "simulations_total",
				Help:      "Total number of simulation runs by outcome",
			},
			[]string{"status"},
		),

		SimulationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "simulation_duration_seconds",
				Help:      "Wall-clock duration of simulation runs",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		),

		SimulationSteps: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "simulation_steps",
				Help:      "Number of timesteps per simulation run",
				Buckets:   []float64{1000, 5000, 10000, 50000, 100000, 500000},
			},
		),

		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by endpoint, method and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"endpoint"},
		),

		WeatherFetchTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "weather_fetch_total",
				Help:      "Weather source fetches by source and outcome",
			},
			[]string{"source", "status"},
		),

		WSClients: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ws_clients",
				Help:      "Currently connected WebSocket clients",
			},
		),
	}
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
