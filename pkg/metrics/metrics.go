package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	RequestCount       *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	SettlementsTotal   *prometheus.CounterVec
	SettlementDuration *prometheus.HistogramVec
	PriceLookups       *prometheus.CounterVec
	RelayMessages      *prometheus.CounterVec
	RelayReconnects    *prometheus.CounterVec
	StreamClients      prometheus.Gauge
}

// New creates the collectors and registers them on registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		RequestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		SettlementsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_settlements_total",
				Help: "Settlements attempted, by kind and outcome code.",
			},
			[]string{"kind", "outcome"},
		),
		SettlementDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wallet_settlement_duration_seconds",
				Help:    "Settlement duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		PriceLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_price_lookups_total",
				Help: "Price cache lookups, by result.",
			},
			[]string{"result"},
		),
		RelayMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_relay_messages_total",
				Help: "Messages handled by the market relays.",
			},
			[]string{"relay"},
		),
		RelayReconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_relay_reconnects_total",
				Help: "Upstream reconnect attempts by the market relays.",
			},
			[]string{"relay"},
		),
		StreamClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "wallet_stream_clients",
				Help: "Connected websocket stream clients.",
			},
		),
	}

	registry.MustRegister(
		m.RequestCount,
		m.RequestDuration,
		m.SettlementsTotal,
		m.SettlementDuration,
		m.PriceLookups,
		m.RelayMessages,
		m.RelayReconnects,
		m.StreamClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestCount.WithLabelValues(method, path, http.StatusText(status)).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// ObserveSettlement records one settlement; outcome is "ok" or an error code.
func (m *Metrics) ObserveSettlement(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.SettlementsTotal.WithLabelValues(kind, outcome).Inc()
	m.SettlementDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) IncPriceLookup(result string) {
	if m == nil {
		return
	}
	m.PriceLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) IncRelayMessage(relay string) {
	if m == nil {
		return
	}
	m.RelayMessages.WithLabelValues(relay).Inc()
}

func (m *Metrics) IncRelayReconnect(relay string) {
	if m == nil {
		return
	}
	m.RelayReconnects.WithLabelValues(relay).Inc()
}

func (m *Metrics) StreamClientConnected() {
	if m == nil {
		return
	}
	m.StreamClients.Inc()
}

func (m *Metrics) StreamClientDisconnected() {
	if m == nil {
		return
	}
	m.StreamClients.Dec()
}
