package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsCollector holds every Prometheus instrument the gateway
// exposes. Counters and gauges are registered against a private
// registry so /metrics never picks up the default Go runtime
// collectors' noise unless explicitly added.
type metricsCollector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.GaugeVec
	errorsTotal     *prometheus.GaugeVec
	tokensTotal     *prometheus.GaugeVec
	providerHealthy *prometheus.GaugeVec
}

func newMetricsCollector() *metricsCollector {
	registry := prometheus.NewRegistry()

	m := &metricsCollector{
		registry: registry,
		requestsTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gateway",
			Name:      "requests_total",
			Help:      "Completed chat completion requests by provider, from the usage ledger.",
		}, []string{"provider"}),
		errorsTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gateway",
			Name:      "request_errors_total",
			Help:      "Completed requests that ended in a non-ok status, by provider.",
		}, []string{"provider"}),
		tokensTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gateway",
			Name:      "tokens_total",
			Help:      "Total tokens recorded in the usage ledger, by provider.",
		}, []string{"provider"}),
		providerHealthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gateway",
			Name:      "provider_healthy",
			Help:      "1 if the last health probe for a (model, provider) pair succeeded, else 0.",
		}, []string{"model", "provider"}),
	}

	registry.MustRegister(m.requestsTotal, m.errorsTotal, m.tokensTotal, m.providerHealthy)
	return m
}

func (m *metricsCollector) setProviderHealth(model, provider string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	m.providerHealthy.WithLabelValues(model, provider).Set(value)
}

// handleMetrics serves the Prometheus exposition format for the
// collector's private registry.
func (a *Application) handleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(a.metrics.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

// refreshLedgerGauges resyncs the request/error/token gauges from the
// usage ledger's rolling per-provider summary. Gauges rather than
// counters because the ledger itself is a bounded ring: a counter would
// have to track deltas against eviction, a gauge just mirrors the
// ledger's current view.
func (a *Application) refreshLedgerGauges() {
	for _, summary := range a.admin.Usage() {
		a.metrics.requestsTotal.WithLabelValues(summary.Provider).Set(float64(summary.RequestCount))
		a.metrics.errorsTotal.WithLabelValues(summary.Provider).Set(float64(summary.ErrorCount))
		a.metrics.tokensTotal.WithLabelValues(summary.Provider).Set(float64(summary.TotalTokens))
	}
}
