// Package metrics provides application-level metrics collection.
// Collectors live on a private Prometheus registry served by the gallery server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "avatars"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Probe kinds.
const (
	ProbeTokenURI = "token_uri"
	ProbeOwner    = "owner"
)

// Metrics holds the Prometheus collectors for chain, wallet and gallery activity.
type Metrics struct {
	registry *prometheus.Registry

	rpcCalls   *prometheus.CounterVec
	rpcLatency *prometheus.HistogramVec
	walletOps  *prometheus.CounterVec
	probes     *prometheus.CounterVec
	mints      *prometheus.CounterVec
	gallery    *prometheus.GaugeVec
	generation prometheus.Gauge
}

// Global is the process-wide metrics instance.
//
//nolint:gochecknoglobals // Intentional global for metrics access
var Global = New()

// New creates a Metrics with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_calls_total",
			Help:      "Contract and node calls by method and result.",
		}, []string{"method", "result"}),
		rpcLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_latency_seconds",
			Help:      "Latency of contract and node calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		walletOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_ops_total",
			Help:      "Wallet provider requests by operation and result.",
		}, []string{"op", "result"}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_probes_total",
			Help:      "Token status probes by kind and outcome.",
		}, []string{"kind", "status"}),
		mints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mints_total",
			Help:      "Mint attempts by result code.",
		}, []string{"result"}),
		gallery: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gallery_tokens",
			Help:      "Tokens in the last committed gallery snapshot by state.",
		}, []string{"state"}),
		generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gallery_generation",
			Help:      "Generation of the last committed gallery snapshot.",
		}),
	}

	m.registry.MustRegister(
		m.rpcCalls, m.rpcLatency, m.walletOps, m.probes, m.mints, m.gallery, m.generation,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordRPCCall records a remote call with its duration and outcome.
func (m *Metrics) RecordRPCCall(method string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.rpcCalls.WithLabelValues(method, result(err)).Inc()
	m.rpcLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordWalletOp records a wallet provider request.
func (m *Metrics) RecordWalletOp(op string, err error) {
	if m == nil {
		return
	}
	m.walletOps.WithLabelValues(op, result(err)).Inc()
}

// RecordProbe records a per-token lookup outcome. kind is ProbeTokenURI or
// ProbeOwner.
func (m *Metrics) RecordProbe(kind, status string) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(kind, status).Inc()
}

// RecordMint records a mint attempt. code is "ok" or an error code.
func (m *Metrics) RecordMint(code string) {
	if m == nil {
		return
	}
	m.mints.WithLabelValues(code).Inc()
}

// SetGallery publishes the counts of a committed snapshot.
func (m *Metrics) SetGallery(generation uint64, minted, mintable, unknown int) {
	if m == nil {
		return
	}
	m.generation.Set(float64(generation))
	m.gallery.WithLabelValues("minted").Set(float64(minted))
	m.gallery.WithLabelValues("mintable").Set(float64(mintable))
	m.gallery.WithLabelValues("unknown").Set(float64(unknown))
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
