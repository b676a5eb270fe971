// Package metrics exposes operational counters on an instance registry.
package metrics

import (
	"net/http"

	"bloodbank-ops/internal/infra/cache"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bloodbank"

type Metrics struct {
	registry *prometheus.Registry

	cacheLookups      *prometheus.CounterVec
	storeHealthy      prometheus.Gauge
	reconnectAttempts *prometheus.CounterVec
	temperature       *prometheus.GaugeVec
	anomalies         *prometheus.CounterVec
	reports           *prometheus.CounterVec
	expiredUnits      prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Inventory cache lookups by class and result.",
		}, []string{"class", "result"}),
		storeHealthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_healthy",
			Help:      "1 when the backing store connection is healthy.",
		}),
		reconnectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_reconnect_attempts_total",
			Help:      "Store reconnect attempts by outcome.",
		}, []string{"outcome"}),
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "storage_temperature_celsius",
			Help:      "Last sampled temperature per storage location.",
		}, []string{"location"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "temperature_anomalies_total",
			Help:      "Detected temperature anomalies per location and kind.",
		}, []string{"location", "kind"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_generated_total",
			Help:      "Performance report generations by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		expiredUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_expired_total",
			Help:      "Units moved to expired by the sweeper.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cacheLookups,
		m.storeHealthy,
		m.reconnectAttempts,
		m.temperature,
		m.anomalies,
		m.reports,
		m.expiredUnits,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) CacheHit(class cache.Class) {
	m.cacheLookups.WithLabelValues(string(class), "hit").Inc()
}

func (m *Metrics) CacheMiss(class cache.Class) {
	m.cacheLookups.WithLabelValues(string(class), "miss").Inc()
}

func (m *Metrics) StoreHealthy(healthy bool) {
	if healthy {
		m.storeHealthy.Set(1)
		return
	}
	m.storeHealthy.Set(0)
}

func (m *Metrics) ReconnectAttempt(success bool) {
	m.reconnectAttempts.WithLabelValues(outcome(success)).Inc()
}

func (m *Metrics) TemperatureObserved(locationID string, celsius float64) {
	m.temperature.WithLabelValues(locationID).Set(celsius)
}

func (m *Metrics) AnomalyDetected(locationID, kind string) {
	m.anomalies.WithLabelValues(locationID, kind).Inc()
}

func (m *Metrics) ReportGenerated(trigger string, success bool) {
	m.reports.WithLabelValues(trigger, outcome(success)).Inc()
}

func (m *Metrics) UnitsExpired(n int) {
	m.expiredUnits.Add(float64(n))
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
